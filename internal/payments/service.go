package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
	"github.com/angelmondragon/storefront-backend/pkg/tracing"
)

const orderIDConstraint = "order_id"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway opens provider-side orders for the hosted checkout.
type Gateway interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	KeyID() string
}

// Verifier checks the provider's callback signature.
type Verifier interface {
	Verify(providerOrderID, providerPaymentID, signature string) bool
}

type signatureFailures interface {
	IncSignatureFailure()
}

// Service drives an order's payment from provider order to capture.
type Service interface {
	Create(ctx context.Context, userID, orderID uuid.UUID) (*CreateResult, error)
	Verify(ctx context.Context, userID uuid.UUID, input VerifyInput) (*VerifyResult, error)
	Status(ctx context.Context, userID, orderID uuid.UUID) (*StatusView, error)
}

// Deps wires the payment service.
type Deps struct {
	Repo        Repository
	Tx          txRunner
	Gateway     Gateway
	Verifier    Verifier
	Cart        cart.Clearer
	ClearPolicy string
	Currency    string
	Outbox      outbox.Emitter
	Audit       audit.Recorder
	Metrics     tracing.Recorder
	Failures    signatureFailures
	Logger      *logger.Logger
}

type service struct {
	repo        Repository
	tx          txRunner
	gateway     Gateway
	verifier    Verifier
	cart        cart.Clearer
	clearPolicy string
	currency    string
	outbox      outbox.Emitter
	audit       audit.Recorder
	metrics     tracing.Recorder
	failures    signatureFailures
	logg        *logger.Logger
}

// NewService builds the payment service.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart clearer required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	policy := strings.ToLower(strings.TrimSpace(deps.ClearPolicy))
	switch policy {
	case "":
		policy = config.CartClearAll
	case config.CartClearAll, config.CartClearOrdered:
	default:
		return nil, fmt.Errorf("unknown cart clear policy %q", deps.ClearPolicy)
	}
	if strings.TrimSpace(deps.Currency) == "" {
		return nil, fmt.Errorf("payment currency required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &service{
		repo:        deps.Repo,
		tx:          deps.Tx,
		gateway:     deps.Gateway,
		verifier:    deps.Verifier,
		cart:        deps.Cart,
		clearPolicy: policy,
		currency:    strings.ToUpper(deps.Currency),
		outbox:      deps.Outbox,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		failures:    deps.Failures,
		logg:        deps.Logger,
	}, nil
}

// Create opens a provider order for one of the caller's orders. Cancelled and
// refunded orders cannot be paid. An existing PENDING payment is returned as-is. The gateway is called before anything
// is written, so a gateway failure leaves no payment behind.
func (s *service) Create(ctx context.Context, userID, orderID uuid.UUID) (result *CreateResult, err error) {
	ctx, done := tracing.Operation(ctx, s.metrics, "payment.create", attribute.String("order_id", orderID.String()))
	defer func() { done(err) }()

	order, err := s.repo.FindOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, repo.NotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
	}

	existing, err := s.findPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.existingResult(order, existing)
	}
	if !payable(order.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s and cannot be paid", order.Status)).
			WithReason(pkgerrors.ReasonInvalidTransition).
			WithDetails(map[string]any{"status": order.Status})
	}

	amount := minorUnits(order.Total)
	providerOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  order.OrderNumber,
		Notes: map[string]string{
			"orderId": order.ID.String(),
			"userId":  userID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		OrderID:         order.ID,
		ProviderOrderID: providerOrder.ID,
		Status:          enums.PaymentStatusPending,
		Amount:          order.Total,
		Currency:        s.currency,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, orderIDConstraint) {
			existing, findErr := s.findPayment(ctx, order.ID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return s.existingResult(order, existing)
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment")
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "payment order created")

	return &CreateResult{
		ProviderOrderID: payment.ProviderOrderID,
		Amount:          amount,
		Currency:        payment.Currency,
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		KeyID:           s.gateway.KeyID(),
	}, nil
}

func (s *service) existingResult(order *models.Order, payment *models.Payment) (*CreateResult, error) {
	switch payment.Status {
	case enums.PaymentStatusPending:
		return &CreateResult{
			ProviderOrderID: payment.ProviderOrderID,
			Amount:          minorUnits(payment.Amount),
			Currency:        payment.Currency,
			OrderID:         order.ID,
			OrderNumber:     order.OrderNumber,
			KeyID:           s.gateway.KeyID(),
		}, nil
	default:
		return nil, paymentConflict(payment.Status)
	}
}

// Verify checks the provider signature and, when it matches, captures the
// payment, confirms a PENDING order and clears the cart in one transaction.
func (s *service) Verify(ctx context.Context, userID uuid.UUID, input VerifyInput) (result *VerifyResult, err error) {
	ctx, done := tracing.Operation(ctx, s.metrics, "payment.verify", attribute.String("order_id", input.OrderID.String()))
	defer func() { done(err) }()

	order, err := s.repo.FindOrderForUser(ctx, input.OrderID, userID)
	if err != nil {
		return nil, repo.NotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
	}
	payment, err := s.repo.FindByProviderOrder(ctx, order.ID, input.ProviderOrderID)
	if err != nil {
		return nil, repo.NotFound(err, pkgerrors.ReasonPaymentRecordNotFound, "payment record not found")
	}

	if !s.verifier.Verify(input.ProviderOrderID, input.ProviderPaymentID, input.Signature) {
		return nil, s.rejectSignature(ctx, userID, order, payment)
	}

	if alreadyCaptured(payment, input.ProviderPaymentID) {
		return capturedResult(order, payment), nil
	}
	if payment.Status != enums.PaymentStatusPending {
		return nil, paymentConflict(payment.Status)
	}

	idempotent := false
	var previousStatus, orderStatus enums.OrderStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		locked, err := repo.Lock(ctx, payment.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
		}
		if alreadyCaptured(locked, input.ProviderPaymentID) {
			idempotent = true
			return nil
		}
		if locked.Status != enums.PaymentStatusPending {
			return paymentConflict(locked.Status)
		}

		lockedOrder, err := repo.LockOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		previousStatus = lockedOrder.Status
		orderStatus = lockedOrder.Status

		captured, err := repo.Capture(ctx, payment.ID, input.ProviderPaymentID, input.Signature)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture payment")
		}
		if captured == 0 {
			return paymentConflict(enums.PaymentStatusCaptured)
		}

		// A vendor may have moved the order on before the buyer paid; the
		// capture is recorded either way and only a PENDING order is confirmed.
		if lockedOrder.Status == enums.OrderStatusPending {
			confirmed, err := repo.UpdateOrderStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
			}
			if confirmed == 0 {
				return pkgerrors.New(pkgerrors.CodeConflict, "order changed while capturing payment")
			}
			orderStatus = enums.OrderStatusConfirmed
		}

		var productIDs []uuid.UUID
		if s.clearPolicy == config.CartClearOrdered {
			productIDs, err = repo.OrderProductIDs(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order products")
			}
			if productIDs == nil {
				productIDs = []uuid.UUID{}
			}
		}
		if err := s.cart.ClearItems(ctx, tx, order.UserID, productIDs); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: outbox.OrderPaidEvent{
				OrderID:           order.ID,
				PaymentID:         payment.ID,
				ProviderPaymentID: input.ProviderPaymentID,
				Amount:            payment.Amount,
				Currency:          payment.Currency,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	if idempotent {
		if fresh, err := s.repo.FindOrderForUser(ctx, order.ID, userID); err == nil {
			order = fresh
		}
		payment.Status = enums.PaymentStatusCaptured
		return capturedResult(order, payment), nil
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   &userID,
		Action:   enums.AuditPaymentCaptured,
		Entity:   enums.AuditEntityPayment,
		EntityID: payment.ID.String(),
		OldValue: map[string]any{"status": enums.PaymentStatusPending},
		NewValue: map[string]any{
			"status":              enums.PaymentStatusCaptured,
			"provider_payment_id": input.ProviderPaymentID,
			"order_status":        orderStatus,
		},
	})
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	if previousStatus == enums.OrderStatusCancelled {
		s.logg.Warn(logCtx, "payment captured for cancelled order")
	} else {
		s.logg.Info(logCtx, "payment captured")
	}

	return &VerifyResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentID:     payment.ID,
		PaymentStatus: enums.PaymentStatusCaptured,
		OrderStatus:   orderStatus,
	}, nil
}

func (s *service) rejectSignature(ctx context.Context, userID uuid.UUID, order *models.Order, payment *models.Payment) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":          order.ID.String(),
		"payment_id":        payment.ID.String(),
		"provider_order_id": payment.ProviderOrderID,
	})
	if _, err := s.repo.MarkFailed(ctx, payment.ID); err != nil {
		s.logg.Error(logCtx, "failed to mark payment failed", err)
	}
	s.logg.Warn(logCtx, "payment signature mismatch")
	if s.failures != nil {
		s.failures.IncSignatureFailure()
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   &userID,
		Action:   enums.AuditPaymentFailed,
		Entity:   enums.AuditEntityPayment,
		EntityID: payment.ID.String(),
		OldValue: map[string]any{"status": payment.Status},
		NewValue: map[string]any{"reason": pkgerrors.ReasonInvalidSignature},
	})
	return pkgerrors.New(pkgerrors.CodeSecurity, "payment signature verification failed").
		WithReason(pkgerrors.ReasonInvalidSignature)
}

// Status reports the order's state next to its payment's.
func (s *service) Status(ctx context.Context, userID, orderID uuid.UUID) (*StatusView, error) {
	order, err := s.repo.FindOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, repo.NotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
	}
	payment, err := s.findPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	status := enums.PaymentStatusNone
	if payment != nil {
		status = payment.Status
	}
	return &StatusView{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		OrderStatus:   order.Status,
		PaymentStatus: status,
		Total:         order.Total,
	}, nil
}

func (s *service) findPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func alreadyCaptured(payment *models.Payment, providerPaymentID string) bool {
	return payment.Status == enums.PaymentStatusCaptured &&
		payment.ProviderPaymentID != nil &&
		*payment.ProviderPaymentID == providerPaymentID
}

func capturedResult(order *models.Order, payment *models.Payment) *VerifyResult {
	return &VerifyResult{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentID:     payment.ID,
		PaymentStatus: payment.Status,
		OrderStatus:   order.Status,
	}
}

func paymentConflict(status enums.PaymentStatus) error {
	switch status {
	case enums.PaymentStatusFailed:
		return pkgerrors.New(pkgerrors.CodeConflict, "a previous payment attempt for this order failed").
			WithReason(pkgerrors.ReasonPaymentPreviouslyFailed)
	default:
		return pkgerrors.New(pkgerrors.CodeConflict, "order is already paid").
			WithReason(pkgerrors.ReasonAlreadyPaid).
			WithDetails(map[string]any{"payment_status": status})
	}
}

func payable(status enums.OrderStatus) bool {
	return status != enums.OrderStatusCancelled && status != enums.OrderStatusRefunded
}
