package database

import (
	"fmt"
	"sync/atomic"

	"saas-platform/internal/model"
	"saas-platform/pkg/config"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// ready flips to true only after migration and seeding complete; the
// readiness endpoint reports it.
var ready atomic.Bool

// InitDB connects to PostgreSQL and migrates the schema.
func InitDB(cfg *config.Config) error {
	// Connect with PreferSimpleProtocol to prevent "prepared statement
	// already exists" errors behind connection poolers.
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true,
	}

	var err error
	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.DB.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	// AutoMigrate will automatically create or update the table structure
	// based on our models
	if err := DB.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Project{},
		&model.Task{},
		&model.AuditLog{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Seed creates the platform super-admin if no super-admin row exists yet.
// It is idempotent and safe to run on every startup. A seed_completed audit
// row is written directly here; the audit package depends on this one.
func Seed(cfg *config.Config) error {
	var count int64
	if err := DB.Model(&model.User{}).Where("tenant_id IS NULL AND role = ?", model.RoleSuperAdmin).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count super-admin users: %w", err)
	}
	if count > 0 {
		return nil
	}

	if cfg.Seed.SuperAdminPassword == "" {
		return fmt.Errorf("SUPERADMIN_PASSWORD is required for the initial seed")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Seed.SuperAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash super-admin password: %w", err)
	}

	admin := model.User{
		Email:        cfg.Seed.SuperAdminEmail,
		PasswordHash: string(hashed),
		Role:         model.RoleSuperAdmin,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create super-admin: %w", err)
	}

	event := model.AuditLog{
		EventType: "seed_completed",
		UserID:    &admin.ID,
		Outcome:   "success",
		Detail:    "initial super-admin created",
	}
	if err := DB.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record seed audit event: %w", err)
	}

	return nil
}

// SetReady marks store-side initialization as complete.
func SetReady() {
	ready.Store(true)
}

// Ready reports whether migration and seeding have completed.
func Ready() bool {
	return ready.Load()
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
