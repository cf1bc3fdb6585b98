package handler

import (
	"errors"
	"net/http"
	"time"

	"saas-platform/internal/middleware"
	"saas-platform/internal/model"
	"saas-platform/pkg/database"
	"saas-platform/pkg/logger"
	"saas-platform/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListTenants returns every tenant. Platform-level view, super-admin only.
func ListTenants(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("tenant", "list")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if !actx.IsSuperAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenants []model.Tenant
	if result := database.GetDB().Order("created_at DESC").Find(&tenants); result.Error != nil {
		log.Error("Failed to list tenants", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"tenants": tenants})
}

// GetTenant returns one tenant. A scoped caller only ever sees its own
// tenant; anything else is reported as absent.
func GetTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("tenant", "access")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenant model.Tenant
	if result := database.GetDB().First(&tenant, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load tenant", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Tenant not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	if !actx.Allow(tenant.ID) {
		prometheus.RecordScopeDenial("tenant")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"tenant": tenant})
}

// UpdateTenant updates a tenant's name, and for super-admins the plan and
// limits. Tenant admins can rename their own tenant only.
func UpdateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("tenant", "update")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name        *string `json:"name"`
		Plan        *string `json:"plan"`
		MaxUsers    *int    `json:"max_users"`
		MaxProjects *int    `json:"max_projects"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("update")(time.Now())
	var tenant model.Tenant
	if result := database.GetDB().First(&tenant, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load tenant", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Tenant not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	// Cross-tenant update attempts look exactly like a missing tenant
	if !actx.Allow(tenant.ID) {
		prometheus.RecordScopeDenial("tenant")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	// Role gate: members cannot touch the tenant record at all
	if !actx.IsSuperAdmin() && !actx.IsTenantAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}

	// Plan and limits are platform-level knobs
	if req.Plan != nil || req.MaxUsers != nil || req.MaxProjects != nil {
		if !actx.IsSuperAdmin() {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "plan and limits can only be changed by the platform"})
		}
		if req.Plan != nil {
			plan := model.Plan(*req.Plan)
			if !plan.Valid() {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plan"})
			}
			updates["plan"] = plan
		}
		if req.MaxUsers != nil {
			updates["max_users"] = *req.MaxUsers
		}
		if req.MaxProjects != nil {
			updates["max_projects"] = *req.MaxProjects
		}
	}

	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	if result := database.GetDB().Model(&tenant).Updates(updates); result.Error != nil {
		log.Error("Failed to update tenant", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	log.Info("Tenant updated", zap.String("tenant_id", tenant.ID))
	return c.JSON(http.StatusOK, echo.Map{"tenant": tenant})
}
