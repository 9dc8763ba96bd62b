package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// CreateResult is what the client needs to open the hosted checkout.
type CreateResult struct {
	ProviderOrderID string    `json:"provider_order_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	OrderID         uuid.UUID `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	KeyID           string    `json:"key_id"`
}

// VerifyInput carries the provider callback fields.
type VerifyInput struct {
	OrderID           uuid.UUID `json:"order_id" validate:"required"`
	ProviderOrderID   string    `json:"provider_order_id" validate:"required"`
	ProviderPaymentID string    `json:"provider_payment_id" validate:"required"`
	Signature         string    `json:"signature" validate:"required"`
}

// VerifyResult reports the captured payment.
type VerifyResult struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
}

// StatusView is the combined order and payment state.
type StatusView struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Total         decimal.Decimal     `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// minorUnits converts a major-unit amount to the provider's integer minor units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
