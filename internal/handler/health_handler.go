package handler

import (
	"net/http"

	"saas-platform/pkg/database"
	"saas-platform/prometheus"

	"github.com/labstack/echo/v4"
)

// HealthCheck handles the health check endpoint
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": "saas-platform",
	})
}

// Ready reports whether store-side initialization (migrations and the
// idempotent seed) has completed.
func Ready(c echo.Context) error {
	if !database.Ready() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "initializing"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}

// MetricsHandler exposes Prometheus metrics
func MetricsHandler(c echo.Context) error {
	handler := prometheus.GetPrometheusHandler()
	handler.ServeHTTP(c.Response(), c.Request())
	return nil
}
