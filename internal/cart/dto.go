package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// View is the cart as returned to the buyer, priced at current product prices.
type View struct {
	ID        uuid.UUID       `json:"id"`
	Items     []ItemView      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	ItemCount int             `json:"item_count"`
}

// ItemView is one cart line.
type ItemView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	VendorID  uuid.UUID       `json:"vendor_id"`
	Title     string          `json:"title"`
	SKU       string          `json:"sku"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	IsActive  bool            `json:"is_active"`
}

// AddItemInput adds quantity units of a product, merging with an existing line.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// UpdateItemInput sets the quantity of a line. Zero or less removes it.
type UpdateItemInput struct {
	Quantity int `json:"quantity"`
}

func toView(cart *models.Cart) *View {
	view := &View{
		ID:       cart.ID,
		Items:    make([]ItemView, 0, len(cart.Items)),
		Subtotal: decimal.Zero,
	}
	for _, item := range cart.Items {
		line := ItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: decimal.Zero,
			LineTotal: decimal.Zero,
		}
		if item.Product != nil {
			line.VendorID = item.Product.VendorID
			line.Title = item.Product.Title
			line.SKU = item.Product.SKU
			line.IsActive = item.Product.IsActive
			line.UnitPrice = item.Product.BasePrice
			line.LineTotal = item.Product.BasePrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		}
		view.Items = append(view.Items, line)
		view.Subtotal = view.Subtotal.Add(line.LineTotal)
		view.ItemCount += item.Quantity
	}
	view.Subtotal = view.Subtotal.Round(2)
	return view
}
