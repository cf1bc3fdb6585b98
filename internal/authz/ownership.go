package authz

import (
	"errors"

	"saas-platform/internal/model"

	"gorm.io/gorm"
)

// ValidateProject loads the parent project for a child operation and
// confirms it belongs to the caller's tenant. An absent parent and a
// foreign-tenant parent both return ErrNotFound. The returned project's
// TenantID is what gets stamped onto child rows.
func ValidateProject(db *gorm.DB, ctx Context, projectID string) (*model.Project, error) {
	var project model.Project
	if err := db.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !ctx.Allow(project.TenantID) {
		return nil, ErrNotFound
	}
	return &project, nil
}
