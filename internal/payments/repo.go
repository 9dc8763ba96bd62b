package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists payments and the order transitions they drive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByProviderOrder(ctx context.Context, orderID uuid.UUID, providerOrderID string) (*models.Payment, error)
	Lock(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	MarkFailed(ctx context.Context, paymentID uuid.UUID) (int64, error)
	Capture(ctx context.Context, paymentID uuid.UUID, providerPaymentID, signature string) (int64, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error)
	OrderProductIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
}

type repository struct {
	repo.Base
}

// NewRepository builds a payments repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) FindOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB(ctx).Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.ForUpdate(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProviderOrder(ctx context.Context, orderID uuid.UUID, providerOrderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.DB(ctx).
		Where("order_id = ? AND provider_order_id = ?", orderID, providerOrderID).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Lock(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.ForUpdate(ctx).Where("id = ?", paymentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.DB(ctx).Create(payment).Error
}

// MarkFailed moves a PENDING payment to FAILED. Other statuses are left alone.
func (r *repository) MarkFailed(ctx context.Context, paymentID uuid.UUID) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, enums.PaymentStatusPending).
		Updates(map[string]any{"status": enums.PaymentStatusFailed, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// Capture records the provider ids on a PENDING payment and marks it CAPTURED.
func (r *repository) Capture(ctx context.Context, paymentID uuid.UUID, providerPaymentID, signature string) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":              enums.PaymentStatusCaptured,
			"provider_payment_id": providerPaymentID,
			"provider_signature":  signature,
			"updated_at":          time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *repository) OrderProductIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.OrderLine{}).
		Where("order_id = ?", orderID).
		Distinct().
		Pluck("product_id", &ids).Error
	return ids, err
}
