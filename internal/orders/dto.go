package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const maxNotesLength = 500

// CreateInput is a checkout request for the caller's current cart.
type CreateInput struct {
	UserID    uuid.UUID
	AddressID uuid.UUID `json:"address_id" validate:"required"`
	Notes     *string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// StatusUpdateInput moves an order to Status.
type StatusUpdateInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus `json:"status" validate:"required"`
}

// OrderView is the API shape of an order.
type OrderView struct {
	ID           uuid.UUID         `json:"id"`
	OrderNumber  string            `json:"order_number"`
	UserID       uuid.UUID         `json:"user_id"`
	AddressID    uuid.UUID         `json:"address_id"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	Tax          decimal.Decimal   `json:"tax"`
	ShippingCost decimal.Decimal   `json:"shipping_cost"`
	Total        decimal.Decimal   `json:"total"`
	Status       enums.OrderStatus `json:"status"`
	Notes        *string           `json:"notes,omitempty"`
	Lines        []LineView        `json:"lines"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// LineView is one order line as captured at checkout.
type LineView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	VendorID  uuid.UUID       `json:"vendor_id,omitempty"`
	Title     string          `json:"title"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// VendorOrderSummary groups a vendor's lines under their order.
type VendorOrderSummary struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Status      enums.OrderStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	Lines       []LineView        `json:"lines"`
	VendorTotal decimal.Decimal   `json:"vendor_total"`
}

// VendorOrderDetail is the order header with only the vendor's lines.
type VendorOrderDetail struct {
	OrderView
	VendorTotal decimal.Decimal `json:"vendor_total"`
}

func toOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		UserID:       order.UserID,
		AddressID:    order.AddressID,
		Subtotal:     order.Subtotal,
		Tax:          order.Tax,
		ShippingCost: order.ShippingCost,
		Total:        order.Total,
		Status:       order.Status,
		Notes:        order.Notes,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
	}
	view.Lines = toLineViews(order.Lines)
	return view
}

func toLineViews(lines []models.OrderLine) []LineView {
	out := make([]LineView, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineView{
			ID:        line.ID,
			ProductID: line.ProductID,
			VendorID:  line.VendorID,
			Title:     line.Title,
			SKU:       line.SKU,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal().Round(2),
		})
	}
	return out
}

func sumLines(lines []LineView) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal)
	}
	return total.Round(2)
}

// groupVendorLines folds joined rows into one summary per order, keeping the
// newest-first row order.
func groupVendorLines(rows []VendorLineRow) []VendorOrderSummary {
	out := []VendorOrderSummary{}
	index := map[uuid.UUID]int{}
	for _, row := range rows {
		pos, ok := index[row.OrderID]
		if !ok {
			pos = len(out)
			index[row.OrderID] = pos
			out = append(out, VendorOrderSummary{
				OrderID:     row.OrderID,
				OrderNumber: row.OrderNumber,
				Status:      row.OrderStatus,
				CreatedAt:   row.OrderCreatedAt,
				Lines:       []LineView{},
			})
		}
		line := LineView{
			ID:        row.LineID,
			ProductID: row.ProductID,
			Title:     row.Title,
			SKU:       row.SKU,
			UnitPrice: row.UnitPrice,
			Quantity:  row.Quantity,
			LineTotal: row.UnitPrice.Mul(decimal.NewFromInt(int64(row.Quantity))).Round(2),
		}
		out[pos].Lines = append(out[pos].Lines, line)
	}
	for i := range out {
		out[i].VendorTotal = sumLines(out[i].Lines)
	}
	return out
}
