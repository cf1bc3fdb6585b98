package main

import (
	"saas-platform/internal/handler"
	"saas-platform/internal/middleware"
	"saas-platform/pkg/config"
	"saas-platform/pkg/database"
	"saas-platform/pkg/jwtutil"
	"saas-platform/pkg/logger"
	"saas-platform/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting saas-platform...", cfg.LogConfig()...)

	// Initialize database: connect, migrate, seed, then open the gate
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	if err := database.Seed(cfg); err != nil {
		log.Fatal("Failed to seed database", zap.Error(err))
	}
	database.SetReady()
	log.Info("Database migrated and seeded")

	// Initialize JWT utility with the process-wide signing key
	jwtutil.Initialize(&cfg.JWT)
	log.Info("JWT utility initialized")

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/ready", handler.Ready)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes - these don't belong under /api since they're
	// for getting access to the API
	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)
	auth.POST("/super-admin/login", handler.SuperAdminLogin)

	// API routes - all require authentication
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)

	api.POST("/auth/logout", handler.Logout)

	// Tenant management
	tenants := api.Group("/tenants")
	tenants.GET("", handler.ListTenants)
	tenants.GET("/:id", handler.GetTenant)
	tenants.PATCH("/:id", handler.UpdateTenant)

	// User management
	users := api.Group("/users")
	users.GET("/me", handler.GetProfile)
	users.GET("", handler.ListUsers)
	users.POST("", handler.CreateUser, middleware.RequireTenantContext)
	users.DELETE("/:id", handler.DeleteUser)

	// Projects - creation needs a tenant to stamp, so unscoped contexts
	// are rejected there
	projects := api.Group("/projects")
	projects.GET("", handler.ListProjects)
	projects.POST("", handler.CreateProject, middleware.RequireTenantContext)
	projects.GET("/:id", handler.GetProject)
	projects.PATCH("/:id", handler.UpdateProject)
	projects.DELETE("/:id", handler.DeleteProject)

	// Tasks nested under their parent project
	projects.POST("/:id/tasks", handler.CreateTask)
	projects.GET("/:id/tasks", handler.ListTasks)

	tasks := api.Group("/tasks")
	tasks.GET("/:id", handler.GetTask)
	tasks.PATCH("/:id", handler.UpdateTask)
	tasks.DELETE("/:id", handler.DeleteTask)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
