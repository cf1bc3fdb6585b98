package handler

import (
	"net/http"
	"testing"

	"saas-platform/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	c, rec := newContext(t, http.MethodGet, "/health", "")
	require.NoError(t, HealthCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

// The readiness gate stays shut until migration and seeding report done.
func TestReadyGate(t *testing.T) {
	c, rec := newContext(t, http.MethodGet, "/ready", "")
	require.NoError(t, Ready(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	database.SetReady()

	c, rec = newContext(t, http.MethodGet, "/ready", "")
	require.NoError(t, Ready(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")
}

func TestMetricsEndpoint(t *testing.T) {
	c, rec := newContext(t, http.MethodGet, "/metrics", "")
	require.NoError(t, MetricsHandler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "saas_")
}
