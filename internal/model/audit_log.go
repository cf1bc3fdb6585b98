package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog is one recorded security event. UserID and TenantID are nullable
// because failed logins may not resolve either.
type AuditLog struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	EventType string    `json:"event_type" gorm:"type:varchar(50);index;not null"`
	UserID    *string   `json:"user_id,omitempty" gorm:"type:uuid;index"`
	TenantID  *string   `json:"tenant_id,omitempty" gorm:"type:uuid;index"`
	Outcome   string    `json:"outcome" gorm:"type:varchar(20);not null"`
	Detail    string    `json:"detail,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
