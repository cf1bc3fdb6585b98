package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"saas-platform/pkg/config"
	"saas-platform/pkg/database"
	"saas-platform/pkg/jwtutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	tenantA = "aaaaaaaa-0000-0000-0000-000000000001"
	tenantB = "bbbbbbbb-0000-0000-0000-000000000002"
	proj1   = "cccccccc-0000-0000-0000-000000000003"
	task1   = "dddddddd-0000-0000-0000-000000000004"
	userA   = "eeeeeeee-0000-0000-0000-000000000005"
)

func init() {
	jwtutil.Initialize(&config.JWTConfig{SigningKey: "handler-test-key", ExpirationHours: 1})
}

// setupMockDB wires a sqlmock-backed gorm connection into the package-level
// database handle the handlers read from.
func setupMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	prev := database.DB
	database.DB = gdb
	t.Cleanup(func() { database.DB = prev })
	return mock
}

func newContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	httpReq := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		httpReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(httpReq, rec)
	c.Set("logger", zap.NewNop())
	return c, rec
}
