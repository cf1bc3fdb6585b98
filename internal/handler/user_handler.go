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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// CreateUser adds a user to the caller's tenant. Tenant-admin only; the
// new row's tenant comes from the caller's context, and the insert runs in
// the same transaction as the capacity check.
func CreateUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("user", "create")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if !actx.IsTenantAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	tenantID, scoped := actx.TenantID()
	if !scoped {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant context required"})
	}

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse user creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	role := model.RoleUser
	if req.Role != "" {
		role = model.Role(req.Role)
		// Tenant admins mint tenant roles only; the super-admin is seeded
		if !role.Valid() || role == model.RoleSuperAdmin {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user creation failed"})
	}

	user := model.User{
		TenantID:     &tenantID,
		Email:        req.Email,
		PasswordHash: string(hashed),
		Role:         role,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := authz.CheckUserCapacity(tx, tenantID); err != nil {
			return err
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, authz.ErrLimitExceeded) {
			log.Warn("User limit reached", zap.String("tenant_id", tenantID))
			prometheus.RecordLimitExceeded("user")
			return c.JSON(http.StatusConflict, echo.Map{"error": "plan limit exceeded"})
		}
		log.Error("Failed to create user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "user creation failed"})
	}

	log.Info("User created",
		zap.String("user_id", user.ID),
		zap.String("tenant_id", tenantID),
		zap.String("role", string(user.Role)))

	return c.JSON(http.StatusCreated, echo.Map{"user": user})
}

// ListUsers returns the users visible to the caller: the whole platform for
// the super-admin, the caller's tenant for everyone else.
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("user", "list")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var users []model.User
	result := database.GetDB().Scopes(authz.TenantScope(actx)).Order("created_at DESC").Find(&users)
	if result.Error != nil {
		log.Error("Failed to list users", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// GetProfile returns the calling user's own record.
func GetProfile(c echo.Context) error {
	log := logger.FromContext(c)

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := database.GetDB().First(&user, "id = ?", actx.UserID); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load profile", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Profile not found", zap.String("user_id", actx.UserID))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// DeleteUser removes a user from the caller's tenant. Cross-tenant targets
// and the tenantless super-admin row are reported as absent.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordResourceOperation("user", "delete")

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	if !actx.IsSuperAdmin() && !actx.IsTenantAdmin() {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	id := c.Param("id")
	if id == actx.UserID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete the authenticated user"})
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())
	var user model.User
	if result := database.GetDB().First(&user, "id = ?", id); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load user", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("User not found", zap.String("id", id))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if user.TenantID == nil || !actx.Allow(*user.TenantID) {
		prometheus.RecordScopeDenial("user")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	if result := database.GetDB().Delete(&user); result.Error != nil {
		log.Error("Failed to delete user", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	log.Info("User deleted", zap.String("user_id", id))
	return c.NoContent(http.StatusNoContent)
}
