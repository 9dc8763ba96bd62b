package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/storefront-backend/pkg/db/types"
)

// AuditLog is an append-only record of a privileged state transition.
type AuditLog struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID    `gorm:"column:user_id;type:uuid;index"`
	Action    string        `gorm:"column:action;not null;index"`
	Entity    string        `gorm:"column:entity;not null;index:idx_audit_logs_entity"`
	EntityID  string        `gorm:"column:entity_id;not null;index:idx_audit_logs_entity"`
	OldValue  dbtypes.JSONB `gorm:"column:old_value;type:jsonb"`
	NewValue  dbtypes.JSONB `gorm:"column:new_value;type:jsonb"`
	IPAddress *string       `gorm:"column:ip_address"`
	UserAgent *string       `gorm:"column:user_agent"`
	RequestID *string       `gorm:"column:request_id"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime;index"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
