package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Reserver decrements stock inside the caller's transaction.
type Reserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Reader reports sellable stock.
type Reader interface {
	Available(ctx context.Context, productID uuid.UUID) (int, error)
}

// Ledger guards the inventory table. Stock only ever decreases through Reserve.
type Ledger struct {
	db *gorm.DB
}

// NewLedger builds the inventory ledger over db.
func NewLedger(db *gorm.DB) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("inventory db required")
	}
	return &Ledger{db: db}, nil
}

type stockRow struct {
	Title     string
	Available int
}

// Reserve takes qty units of productID with one conditional UPDATE so two
// concurrent reservations can never drive the quantity below zero.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("product_id = ? AND quantity >= ?", productID, qty).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve inventory")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	row, err := l.stock(ctx, tx, productID)
	if err != nil {
		return err
	}
	return InsufficientStock(row.Title, row.Available, qty)
}

// Available reports the quantity on hand. A product without an inventory row has none.
func (l *Ledger) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	row, err := l.stock(ctx, l.db, productID)
	if err != nil {
		return 0, err
	}
	return row.Available, nil
}

func (l *Ledger) stock(ctx context.Context, conn *gorm.DB, productID uuid.UUID) (*stockRow, error) {
	var row stockRow
	err := conn.WithContext(ctx).
		Table("products AS p").
		Select("p.title AS title, COALESCE(i.quantity, 0) AS available").
		Joins("LEFT JOIN inventory AS i ON i.product_id = p.id").
		Where("p.id = ?", productID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").WithReason(pkgerrors.ReasonProductNotFound)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read inventory")
	}
	return &row, nil
}

// InsufficientStock builds the typed failure returned when qty exceeds stock.
func InsufficientStock(productTitle string, available, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", productTitle)).
		WithReason(pkgerrors.ReasonInsufficientStock).
		WithDetails(map[string]any{
			"product_title": productTitle,
			"available":     available,
			"requested":     requested,
		})
}
