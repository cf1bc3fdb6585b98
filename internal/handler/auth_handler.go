package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"saas-platform/internal/audit"
	"saas-platform/internal/middleware"
	"saas-platform/internal/model"
	"saas-platform/pkg/database"
	"saas-platform/pkg/jwtutil"
	"saas-platform/pkg/logger"
	"saas-platform/prometheus"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Login authenticates a tenant user. The tenant is identified by subdomain
// or tenant id; the issued token carries the resolved tenant and role.
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	// Parse request
	var req struct {
		Tenant   string `json:"tenant"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Tenant == "" || req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_login")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant, email and password are required"})
	}

	// Resolve tenant by subdomain first, then by id - track DB query
	defer prometheus.TrackDBOperation("query")(time.Now())
	var tenant model.Tenant
	result := database.GetDB().Where("subdomain = ?", strings.ToLower(req.Tenant)).First(&tenant)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		if _, err := uuid.Parse(req.Tenant); err == nil {
			result = database.GetDB().Where("id = ?", req.Tenant).First(&tenant)
		}
	}
	if result.Error != nil {
		// A store outage must stay distinguishable from a missing tenant
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to resolve tenant", zap.Error(result.Error))
			prometheus.RecordAuthError("database_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Tenant not found for login", zap.String("tenant", req.Tenant))
		prometheus.RecordAuthError("tenant_not_found")
		audit.Record(c, audit.Event{Type: audit.EventLogin, Outcome: audit.OutcomeFailure, Detail: "tenant not found"})
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}

	// Locate the user within the resolved tenant
	var user model.User
	result = database.GetDB().Where("tenant_id = ?", tenant.ID).Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load user", zap.Error(result.Error))
			prometheus.RecordAuthError("database_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("User not found for login", zap.String("email", req.Email), zap.String("tenant_id", tenant.ID))
		prometheus.RecordAuthError("user_not_found")
		audit.Record(c, audit.Event{Type: audit.EventLogin, TenantID: tenant.ID, Outcome: audit.OutcomeFailure, Detail: "user not found"})
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Verify password; constant-time comparison is bcrypt's job
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email), zap.String("tenant_id", tenant.ID))
		prometheus.RecordAuthError("invalid_password")
		audit.Record(c, audit.Event{Type: audit.EventLogin, UserID: user.ID, TenantID: tenant.ID, Outcome: audit.OutcomeFailure, Detail: "invalid password"})
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Issue token with the resolved tenant context
	token, err := jwtutil.GenerateToken(user.ID, user.Email, &tenant.ID, string(user.Role))
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.ActiveTokensGauge.Inc()
	audit.Record(c, audit.Event{Type: audit.EventLogin, UserID: user.ID, TenantID: tenant.ID, Outcome: audit.OutcomeSuccess})

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.String("tenant_id", tenant.ID),
		zap.String("role", string(user.Role)))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
		"tenant": map[string]interface{}{
			"id":        tenant.ID,
			"name":      tenant.Name,
			"subdomain": tenant.Subdomain,
		},
	})
}

// SuperAdminLogin authenticates the platform super-admin. Lookup is
// restricted to tenantless rows and the issued token carries no tenant.
func SuperAdminLogin(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.SuperAdminLoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse super-admin login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("tenant_id IS NULL").Where("role = ?", model.RoleSuperAdmin).Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			log.Error("Failed to load super-admin", zap.Error(result.Error))
			prometheus.RecordAuthError("database_error")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		log.Warn("Super-admin not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		audit.Record(c, audit.Event{Type: audit.EventLogin, Outcome: audit.OutcomeFailure, Detail: "super-admin not found"})
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid super-admin password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		audit.Record(c, audit.Event{Type: audit.EventLogin, UserID: user.ID, Outcome: audit.OutcomeFailure, Detail: "invalid password"})
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := jwtutil.GenerateToken(user.ID, user.Email, nil, string(model.RoleSuperAdmin))
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.ActiveTokensGauge.Inc()
	audit.Record(c, audit.Event{Type: audit.EventLogin, UserID: user.ID, Outcome: audit.OutcomeSuccess, Detail: "super-admin"})

	log.Info("Super-admin logged in", zap.String("email", user.Email))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// Register creates a new tenant together with its first tenant-admin user.
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		TenantName string `json:"tenant_name"`
		Subdomain  string `json:"subdomain"`
		Plan       string `json:"plan,omitempty"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.TenantName == "" || req.Subdomain == "" || req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_name, subdomain, email and password are required"})
	}

	plan := model.PlanFree
	if req.Plan != "" {
		plan = model.Plan(req.Plan)
		if !plan.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid plan"})
		}
	}

	subdomain := strings.ToLower(req.Subdomain)

	// Reject an already-taken subdomain up front - track DB query
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.Tenant
	result := database.GetDB().Where("subdomain = ?", subdomain).First(&existing)
	if result.Error == nil {
		log.Warn("Subdomain already registered", zap.String("subdomain", subdomain))
		prometheus.RecordAuthError("subdomain_taken")
		return c.JSON(http.StatusConflict, echo.Map{"error": "subdomain already registered"})
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		log.Error("Failed to check subdomain", zap.Error(result.Error))
		prometheus.RecordAuthError("database_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	maxUsers, maxProjects := model.PlanLimits(plan)
	tenant := model.Tenant{
		Name:        req.TenantName,
		Subdomain:   subdomain,
		Plan:        plan,
		MaxUsers:    maxUsers,
		MaxProjects: maxProjects,
	}

	// Tenant and its admin are created atomically
	defer prometheus.TrackDBOperation("insert")(time.Now())
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Error("Failed to begin transaction", zap.Error(tx.Error))
		prometheus.RecordAuthError("database_error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if result := tx.Create(&tenant); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create tenant", zap.Error(result.Error))
		prometheus.RecordAuthError("tenant_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	admin := model.User{
		TenantID:     &tenant.ID,
		Email:        req.Email,
		PasswordHash: string(hashed),
		Role:         model.RoleTenantAdmin,
	}
	if result := tx.Create(&admin); result.Error != nil {
		tx.Rollback()
		log.Error("Failed to create tenant admin", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	if err := tx.Commit().Error; err != nil {
		log.Error("Failed to commit registration", zap.Error(err))
		prometheus.RecordAuthError("transaction_commit_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	prometheus.RecordResourceOperation("tenant", "create")
	audit.Record(c, audit.Event{Type: audit.EventRegister, UserID: admin.ID, TenantID: tenant.ID, Outcome: audit.OutcomeSuccess})

	log.Info("Tenant registered",
		zap.String("tenant_id", tenant.ID),
		zap.String("subdomain", tenant.Subdomain),
		zap.String("admin_email", admin.Email))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Tenant registered successfully",
		"tenant":  tenant,
		"user": map[string]interface{}{
			"id":    admin.ID,
			"email": admin.Email,
			"role":  admin.Role,
		},
	})
}

// Logout records the logout event. Tokens stay valid until expiry; there is
// no revocation infrastructure.
func Logout(c echo.Context) error {
	log := logger.FromContext(c)

	actx, ok := middleware.AuthContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	tenantID, _ := actx.TenantID()
	audit.Record(c, audit.Event{Type: audit.EventLogout, UserID: actx.UserID, TenantID: tenantID, Outcome: audit.OutcomeSuccess})
	prometheus.ActiveTokensGauge.Dec()

	log.Info("User logged out", zap.String("user_id", actx.UserID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out"})
}
