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

// CreateTask creates a task under a project. The parent is ownership-
// validated first and its tenant id is what gets stamped onto the task;
// nothing tenant-related is accepted from the request body.
func CreateTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "create")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	projectID := c.Param("id")

	defer prometheus.TrackDBOperation("insert")(time.Now())
	project, err := authz.ValidateProject(database.GetDB(), actx, projectID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			log.Warn("Parent project not visible", zap.String("project_id", projectID))
			prometheus.RecordScopeDenial("task")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
		}
		log.Error("Failed to validate parent project", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
		Status      string `json:"status,omitempty"`
		Priority    string `json:"priority,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse task creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}

	status := model.TaskStatusTodo
	if req.Status != "" {
		status = model.TaskStatus(req.Status)
		if !status.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
	}
	priority := model.TaskPriorityMedium
	if req.Priority != "" {
		priority = model.TaskPriority(req.Priority)
		if !priority.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid priority"})
		}
	}

	task := model.Task{
		ProjectID:   project.ID,
		TenantID:    project.TenantID,
		Title:       req.Title,
		Description: req.Description,
		Status:      status,
		Priority:    priority,
	}

	if result := database.GetDB().Create(&task); result.Error != nil {
		log.Error("Failed to create task", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "task creation failed"})
	}

	log.Info("Task created",
		zap.String("task_id", task.ID),
		zap.String("project_id", project.ID),
		zap.String("tenant_id", project.TenantID))

	return c.JSON(http.StatusCreated, echo.Map{"task": task})
}

// ListTasks returns the tasks of one project, after ownership validation.
func ListTasks(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "list")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	projectID := c.Param("id")

	defer prometheus.TrackDBOperation("query")(time.Now())
	project, err := authz.ValidateProject(database.GetDB(), actx, projectID)
	if err != nil {
		if errors.Is(err, authz.ErrNotFound) {
			log.Warn("Parent project not visible", zap.String("project_id", projectID))
			prometheus.RecordScopeDenial("task")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "project not found"})
		}
		log.Error("Failed to validate parent project", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var tasks []model.Task
	result := database.GetDB().Where("project_id = ?", project.ID).Order("created_at DESC").Find(&tasks)
	if result.Error != nil {
		log.Error("Failed to list tasks", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"tasks": tasks})
}

// GetTask returns one task; cross-tenant rows look absent.
func GetTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "access")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("query")(time.Now())
	var task model.Task
	if result := database.GetDB().First(&task, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load task", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Task not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}

	if !actx.Allow(task.TenantID) {
		prometheus.RecordScopeDenial("task")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

// UpdateTask updates a task's fields. Status and priority accept any valid
// enum value; there is no transition graph.
func UpdateTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "update")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse task update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("update")(time.Now())
	var task model.Task
	if result := database.GetDB().First(&task, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load task", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Task not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}

	if !actx.Allow(task.TenantID) {
		prometheus.RecordScopeDenial("task")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if *req.Title == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "title cannot be empty"})
		}
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		if !status.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
		updates["status"] = status
	}
	if req.Priority != nil {
		priority := model.TaskPriority(*req.Priority)
		if !priority.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid priority"})
		}
		updates["priority"] = priority
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}

	if result := database.GetDB().Model(&task).Updates(updates); result.Error != nil {
		log.Error("Failed to update task", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	log.Info("Task updated", zap.String("task_id", task.ID))
	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

// DeleteTask removes a task.
func DeleteTask(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("task", "delete")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	id := c.Param("id")

	defer prometheus.TrackDBOperation("delete")(time.Now())
	var task model.Task
	if result := database.GetDB().First(&task, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load task", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Task not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}

	if !actx.Allow(task.TenantID) {
		prometheus.RecordScopeDenial("task")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "task not found"})
	}

	if result := database.GetDB().Delete(&task); result.Error != nil {
		log.Error("Failed to delete task", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	log.Info("Task deleted", zap.String("task_id", id))
	return c.NoContent(http.StatusNoContent)
}
