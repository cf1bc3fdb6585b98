package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan is a tenant's subscription tier. The tier only picks the default
// limits stamped onto the tenant at registration; the per-tenant columns
// are what the entitlement checks compare against, so a super-admin can
// override limits without changing the plan.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// PlanLimits returns the default maxUsers and maxProjects for a plan.
func PlanLimits(p Plan) (maxUsers, maxProjects int) {
	switch p {
	case PlanPro:
		return 25, 20
	case PlanEnterprise:
		return 500, 200
	default:
		return 5, 3
	}
}

// Tenant represents an isolated organization sharing the platform database.
// Tenants are never physically deleted; the soft-delete column keeps the
// filter cheap.
type Tenant struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string         `json:"name" gorm:"type:varchar(100);not null"`
	Subdomain   string         `json:"subdomain" gorm:"type:varchar(63);uniqueIndex;not null"`
	Plan        Plan           `json:"plan" gorm:"type:varchar(20);not null;default:'free'"`
	MaxUsers    int            `json:"max_users" gorm:"not null"`
	MaxProjects int            `json:"max_projects" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
