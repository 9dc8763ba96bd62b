package outbox

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID     uuid.UUID       `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      uuid.UUID       `json:"userId"`
	VendorIDs   []uuid.UUID     `json:"vendorIds"`
	Total       decimal.Decimal `json:"total"`
}

type OrderPaidEvent struct {
	OrderID           uuid.UUID       `json:"orderId"`
	PaymentID         uuid.UUID       `json:"paymentId"`
	ProviderPaymentID string          `json:"providerPaymentId"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
}

type OrderStateChangedEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	From    string    `json:"from"`
	To      string    `json:"to"`
}

type RefundRequestedEvent struct {
	RefundID uuid.UUID       `json:"refundId"`
	OrderID  uuid.UUID       `json:"orderId"`
	Amount   decimal.Decimal `json:"amount"`
}

type RefundResolvedEvent struct {
	RefundID uuid.UUID `json:"refundId"`
	OrderID  uuid.UUID `json:"orderId"`
	Status   string    `json:"status"`
}
