package handler

import (
	"errors"
	"net/http"
	"time"

	"saas-platform/internal/authz"
	"saas-platform/internal/middleware"
	"saas-platform/internal/model"
	"saas-platform/pkg/database"
	"saas-platform/pkg/logger"
	"saas-platform/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateProject creates a project in the caller's tenant. The tenant id is
// stamped from the context, and the capacity check shares the insert's
// transaction.
func CreateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "create")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	tenantID, scoped := actx.TenantID()
	if !scoped {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant context required"})
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse project creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}

	project := model.Project{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := authz.CheckProjectCapacity(tx, tenantID); err != nil {
			return err
		}
		return tx.Create(&project).Error
	})
	if err != nil {
		if errors.Is(err, authz.ErrLimitExceeded) {
			log.Warn("Project limit reached", zap.String("tenant_id", tenantID))
			prometheus.RecordLimitExceeded("project")
			return c.JSON(http.StatusConflict, echo.Map{"error": "plan limit exceeded"})
		}
		log.Error("Failed to create project", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "project creation failed"})
	}

	log.Info("Project created",
		zap.String("project_id", project.ID),
		zap.String("tenant_id", tenantID))

	return c.JSON(http.StatusCreated, echo.Map{"project": project})
}

// ListProjects returns the projects visible to the caller, filtered at the
// query by the tenant scope.
func ListProjects(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "list")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var projects []model.Project
	result := database.GetDB().Scopes(authz.TenantScope(actx)).Order("created_at DESC").Find(&projects)
	if result.Error != nil {
		log.Error("Failed to list projects", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"projects": projects})
}

// GetProject returns one project; cross-tenant rows look absent.
func GetProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "access")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var project model.Project
	if result := database.GetDB().First(&project, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load project", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Project not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	if !actx.Allow(project.TenantID) {
		prometheus.RecordScopeDenial("project")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"project": project})
}

// UpdateProject updates a project's metadata.
func UpdateProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "update")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse project update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("update")(time.Now())
	var project model.Project
	if result := database.GetDB().First(&project, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load project", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Project not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	if !actx.Allow(project.TenantID) {
		prometheus.RecordScopeDenial("project")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	if result := database.GetDB().Model(&project).Updates(updates); result.Error != nil {
		log.Error("Failed to update project", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	log.Info("Project updated", zap.String("project_id", project.ID))
	return c.JSON(http.StatusOK, echo.Map{"project": project})
}

// DeleteProject removes a project and its tasks.
func DeleteProject(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("project", "delete")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("delete")(time.Now())
	var project model.Project
	if result := database.GetDB().First(&project, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load project", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Project not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	if !actx.Allow(project.TenantID) {
		prometheus.RecordScopeDenial("project")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
	}

	// Tasks go with their parent so no orphan can outlive the project
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if result := tx.Where("project_id = ?", project.ID).Delete(&model.Task{}); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to delete project tasks", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if result := tx.Delete(&project); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to delete project", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit project deletion", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	log.Info("Project deleted", zap.String("project_id", id))
	return c.NoContent(http.StatusNoContent)
}
