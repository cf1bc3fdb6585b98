package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of roles a user can hold. Authorization gates
// switch on these values exhaustively; there is no catch-all branch.
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleTenantAdmin Role = "tenant_admin"
	RoleUser        Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleUser:
		return true
	}
	return false
}

// User represents a platform account. TenantID is null only for the
// platform-wide super-admin; every other role requires a tenant.
type User struct {
	ID           string         `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID     *string        `json:"tenant_id" gorm:"type:uuid;index;uniqueIndex:idx_users_tenant_email"`
	Email        string         `json:"email" gorm:"type:varchar(100);not null;uniqueIndex:idx_users_tenant_email"`
	PasswordHash string         `json:"-" gorm:"type:varchar(255);not null"`
	Role         Role           `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
