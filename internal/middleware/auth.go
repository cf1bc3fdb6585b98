package middleware

import (
	"net/http"
	"strings"

	"saas-platform/internal/authz"
	"saas-platform/internal/model"
	"saas-platform/pkg/jwtutil"
	"saas-platform/pkg/logger"
	"saas-platform/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthContextKey is where the resolved authz.Context lives in the echo
// context.
const AuthContextKey = "auth_context"

// AuthContext returns the request's resolved authorization context.
func AuthContext(c echo.Context) (authz.Context, bool) {
	actx, ok := c.Get(AuthContextKey).(authz.Context)
	return actx, ok
}

// AuthMiddleware validates the JWT token from the Authorization header and
// resolves it into an authz.Context. Tenant identity comes exclusively from
// the verified token, never from body or query parameters.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Warn("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		role := model.Role(claims.Role)
		if !role.Valid() {
			log.Warn("Token carries unknown role", zap.String("role", claims.Role))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// A tenantless token is only ever valid for the super-admin; any
		// other role without a tenant is malformed.
		var actx authz.Context
		if claims.TenantID == nil {
			if role != model.RoleSuperAdmin {
				log.Warn("Tenantless token with non-super-admin role", zap.String("role", claims.Role))
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			actx = authz.Unscoped(claims.UserID, claims.Email)
		} else {
			if role == model.RoleSuperAdmin {
				log.Warn("Super-admin token carries a tenant id")
				prometheus.RecordAuthError("invalid_token")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			actx = authz.Scoped(claims.UserID, claims.Email, role, *claims.TenantID)
		}

		c.Set(AuthContextKey, actx)
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)

		if tenantID, ok := actx.TenantID(); ok {
			log.Debug("Request authenticated with tenant context",
				zap.String("tenant_id", tenantID),
				zap.String("role", claims.Role))
		}

		return next(c)
	}
}

// RequireTenantContext rejects requests whose context is not scoped to a
// tenant. Used on endpoints that create rows inside a tenant, where an
// unscoped super-admin context has no tenant to stamp.
func RequireTenantContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actx, ok := AuthContext(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}
		if _, scoped := actx.TenantID(); !scoped {
			prometheus.RecordAuthError("tenant_context_required")
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant context required"})
		}
		return next(c)
	}
}
