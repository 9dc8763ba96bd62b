package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Refund is the customer request to reverse a captured payment. One per order.
type Refund struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID   uuid.UUID          `gorm:"column:payment_id;type:uuid;not null"`
	OrderID     uuid.UUID          `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	UserID      uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Reason      string             `gorm:"column:reason;not null"`
	Status      enums.RefundStatus `gorm:"column:status;type:text;not null;index"`
	AdminNotes  *string            `gorm:"column:admin_notes"`
	ProcessedBy *uuid.UUID         `gorm:"column:processed_by;type:uuid"`
	ProcessedAt *time.Time         `gorm:"column:processed_at"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Refund) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
