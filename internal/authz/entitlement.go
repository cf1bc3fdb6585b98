package authz

import (
	"errors"

	"saas-platform/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The capacity checks below must run on the same transaction as the insert
// they guard. Each one takes a FOR UPDATE lock on the tenant row first, so
// two concurrent creations serialize on the lock and the second one
// re-counts after the first commits.

func lockTenant(tx *gorm.DB, tenantID string) (*model.Tenant, error) {
	var tenant model.Tenant
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&tenant, "id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// CheckUserCapacity fails with ErrLimitExceeded when the tenant is at its
// user limit.
func CheckUserCapacity(tx *gorm.DB, tenantID string) error {
	tenant, err := lockTenant(tx, tenantID)
	if err != nil {
		return err
	}
	var count int64
	if err := tx.Model(&model.User{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(tenant.MaxUsers) {
		return ErrLimitExceeded
	}
	return nil
}

// CheckProjectCapacity fails with ErrLimitExceeded when the tenant is at
// its project limit.
func CheckProjectCapacity(tx *gorm.DB, tenantID string) error {
	tenant, err := lockTenant(tx, tenantID)
	if err != nil {
		return err
	}
	var count int64
	if err := tx.Model(&model.Project{}).Where("tenant_id = ?", tenantID).Count(&count).Error; err != nil {
		return err
	}
	if count >= int64(tenant.MaxProjects) {
		return ErrLimitExceeded
	}
	return nil
}
