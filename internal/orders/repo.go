package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error)
	LoadCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, order *models.Order) error
	FindForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error)
	VendorHasLine(ctx context.Context, orderID, vendorID uuid.UUID) (bool, error)
	ListVendorLines(ctx context.Context, vendorID uuid.UUID, status *enums.OrderStatus) ([]VendorLineRow, error)
	FindVendorLines(ctx context.Context, orderID, vendorID uuid.UUID) ([]models.OrderLine, error)
}

// VendorLineRow is one vendor line joined with its order header.
type VendorLineRow struct {
	OrderID        uuid.UUID
	OrderNumber    string
	OrderStatus    enums.OrderStatus
	OrderCreatedAt time.Time
	LineID         uuid.UUID
	ProductID      uuid.UUID
	Title          string
	SKU            string
	UnitPrice      decimal.Decimal
	Quantity       int
}

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindAddress(ctx context.Context, addressID, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.DB(ctx).Where("id = ? AND user_id = ?", addressID, userID).First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// LoadCart reads the cart and current product rows. Prices are never cached.
func (r *repository) LoadCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC").Order("id ASC") }).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts the order and its lines.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

func (r *repository) FindForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Lines", orderLines).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Lines", orderLines).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockByID selects the order row FOR UPDATE. Lines are not loaded.
func (r *repository) LockByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.ForUpdate(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus) ([]models.Order, error) {
	query := r.DB(ctx).Preload("Lines", orderLines).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var orders []models.Order
	if err := query.Order("created_at DESC").Order("id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus moves the order from -> to. Zero rows means the order was no
// longer in from.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *repository) VendorHasLine(ctx context.Context, orderID, vendorID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ? AND vendor_id = ?", orderID, vendorID).
		Count(&count).Error
	return count > 0, err
}

// ListVendorLines returns the vendor's lines, newest order first.
func (r *repository) ListVendorLines(ctx context.Context, vendorID uuid.UUID, status *enums.OrderStatus) ([]VendorLineRow, error) {
	query := r.DB(ctx).
		Table("order_lines AS l").
		Select(`o.id AS order_id, o.order_number AS order_number, o.status AS order_status,
			o.created_at AS order_created_at, l.id AS line_id, l.product_id AS product_id,
			l.title AS title, l.sku AS sku, l.unit_price AS unit_price, l.quantity AS quantity`).
		Joins("JOIN orders AS o ON o.id = l.order_id").
		Where("l.vendor_id = ?", vendorID)
	if status != nil {
		query = query.Where("o.status = ?", *status)
	}

	var rows []VendorLineRow
	err := query.
		Order("o.created_at DESC").
		Order("o.id DESC").
		Order("l.created_at ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) FindVendorLines(ctx context.Context, orderID, vendorID uuid.UUID) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := orderLines(r.DB(ctx)).
		Where("order_id = ? AND vendor_id = ?", orderID, vendorID).
		Find(&lines).Error
	return lines, err
}

func orderLines(tx *gorm.DB) *gorm.DB {
	return tx.Order("created_at ASC").Order("id ASC")
}
