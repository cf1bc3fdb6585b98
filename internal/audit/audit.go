package audit

import (
	"saas-platform/internal/model"
	"saas-platform/pkg/database"
	"saas-platform/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Event types recorded to the audit sink.
const (
	EventLogin    = "login"
	EventLogout   = "logout"
	EventRegister = "register"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is one security-relevant occurrence. UserID and TenantID are left
// empty when the attempt never resolved them.
type Event struct {
	Type     string
	UserID   string
	TenantID string
	Outcome  string
	Detail   string
}

// Record persists the event and mirrors it to the service log. Audit
// failures are logged but never surfaced into the request path.
func Record(c echo.Context, e Event) {
	log := logger.FromContext(c)

	row := model.AuditLog{
		EventType: e.Type,
		Outcome:   e.Outcome,
		Detail:    e.Detail,
	}
	if e.UserID != "" {
		row.UserID = &e.UserID
	}
	if e.TenantID != "" {
		row.TenantID = &e.TenantID
	}

	if err := database.GetDB().Create(&row).Error; err != nil {
		log.Error("Failed to record audit event",
			zap.String("event_type", e.Type),
			zap.Error(err))
		return
	}

	log.Info("Audit event recorded",
		zap.String("event_type", e.Type),
		zap.String("outcome", e.Outcome),
		zap.String("user_id", e.UserID),
		zap.String("tenant_id", e.TenantID))
}
