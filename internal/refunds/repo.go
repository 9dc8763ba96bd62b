package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository persists refund requests and the reversals they apply.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrderForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	FindPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	Create(ctx context.Context, refund *models.Refund) error
	FindByID(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	Lock(ctx context.Context, refundID uuid.UUID) (*models.Refund, error)
	Resolve(ctx context.Context, refundID uuid.UUID, resolution Resolution) (int64, error)
	MarkOrderRefunded(ctx context.Context, orderID uuid.UUID) error
	MarkPaymentRefunded(ctx context.Context, paymentID uuid.UUID) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Refund, error)
	List(ctx context.Context, status *enums.RefundStatus) ([]models.Refund, error)
}

// Resolution is the adjudication outcome written onto a REQUESTED refund.
type Resolution struct {
	Status      enums.RefundStatus
	ProcessedBy uuid.UUID
	ProcessedAt time.Time
	Notes       *string
}

type repository struct {
	repo.Base
}

// NewRepository builds a refunds repository bound to db.
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

func (r *repository) FindPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.DB(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Refund{}).Where("order_id = ?", orderID).Count(&count).Error
	return count > 0, err
}

func (r *repository) Create(ctx context.Context, refund *models.Refund) error {
	return r.DB(ctx).Create(refund).Error
}

func (r *repository) FindByID(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	if err := r.DB(ctx).Where("id = ?", refundID).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

func (r *repository) Lock(ctx context.Context, refundID uuid.UUID) (*models.Refund, error) {
	var refund models.Refund
	if err := r.ForUpdate(ctx).Where("id = ?", refundID).First(&refund).Error; err != nil {
		return nil, err
	}
	return &refund, nil
}

// Resolve applies resolution only while the refund is still REQUESTED.
func (r *repository) Resolve(ctx context.Context, refundID uuid.UUID, resolution Resolution) (int64, error) {
	res := r.DB(ctx).
		Model(&models.Refund{}).
		Where("id = ? AND status = ?", refundID, enums.RefundStatusRequested).
		Updates(map[string]any{
			"status":       resolution.Status,
			"processed_by": resolution.ProcessedBy,
			"processed_at": resolution.ProcessedAt,
			"admin_notes":  resolution.Notes,
			"updated_at":   resolution.ProcessedAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) MarkOrderRefunded(ctx context.Context, orderID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"status": enums.OrderStatusRefunded, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) MarkPaymentRefunded(ctx context.Context, paymentID uuid.UUID) error {
	return r.DB(ctx).
		Model(&models.Payment{}).
		Where("id = ?", paymentID).
		Updates(map[string]any{"status": enums.PaymentStatusRefunded, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.DB(ctx).Where("user_id = ?", userID).Order("created_at DESC").Order("id DESC").Find(&refunds).Error
	return refunds, err
}

func (r *repository) List(ctx context.Context, status *enums.RefundStatus) ([]models.Refund, error) {
	query := r.DB(ctx)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var refunds []models.Refund
	err := query.Order("created_at DESC").Order("id DESC").Find(&refunds).Error
	return refunds, err
}
