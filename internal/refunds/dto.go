package refunds

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// RequestInput asks for a refund of an order.
type RequestInput struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
	Reason  string    `json:"reason" validate:"required"`
}

// AdjudicateInput is an admin or finance decision on a refund.
type AdjudicateInput struct {
	Action enums.RefundAction `json:"action" validate:"required,oneof=APPROVE REJECT"`
	Notes  *string            `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type View struct {
	ID          uuid.UUID          `json:"id"`
	OrderID     uuid.UUID          `json:"order_id"`
	PaymentID   uuid.UUID          `json:"payment_id"`
	UserID      uuid.UUID          `json:"user_id"`
	Amount      decimal.Decimal    `json:"amount"`
	Reason      string             `json:"reason"`
	Status      enums.RefundStatus `json:"status"`
	AdminNotes  *string            `json:"admin_notes,omitempty"`
	ProcessedBy *uuid.UUID         `json:"processed_by,omitempty"`
	ProcessedAt *time.Time         `json:"processed_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func toView(refund *models.Refund) View {
	return View{
		ID:          refund.ID,
		OrderID:     refund.OrderID,
		PaymentID:   refund.PaymentID,
		UserID:      refund.UserID,
		Amount:      refund.Amount,
		Reason:      refund.Reason,
		Status:      refund.Status,
		AdminNotes:  refund.AdminNotes,
		ProcessedBy: refund.ProcessedBy,
		ProcessedAt: refund.ProcessedAt,
		CreatedAt:   refund.CreatedAt,
		UpdatedAt:   refund.UpdatedAt,
	}
}

func toViews(refunds []models.Refund) []View {
	out := make([]View, 0, len(refunds))
	for i := range refunds {
		out = append(out, toView(&refunds[i]))
	}
	return out
}
