package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/tracing"
)

const (
	defaultWindowDays      = 7
	defaultMinReasonLength = 10
	orderIDConstraint      = "order_id"
	day                    = 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the refund request and adjudication workflow.
type Service interface {
	Request(ctx context.Context, userID uuid.UUID, input RequestInput) (*View, error)
	Adjudicate(ctx context.Context, caps access.Capabilities, refundID uuid.UUID, input AdjudicateInput) (*View, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]View, error)
	List(ctx context.Context, caps access.Capabilities, status *enums.RefundStatus) ([]View, error)
	Get(ctx context.Context, caps access.Capabilities, refundID uuid.UUID) (*View, error)
}

// Deps wires the refund service.
type Deps struct {
	Repo            Repository
	Tx              txRunner
	Outbox          outbox.Emitter
	Audit           audit.Recorder
	WindowDays      int
	MinReasonLength int
	Metrics         tracing.Recorder
	Logger          *logger.Logger
	Now             func() time.Time
}

type service struct {
	repo            Repository
	tx              txRunner
	outbox          outbox.Emitter
	audit           audit.Recorder
	windowDays      int
	minReasonLength int
	metrics         tracing.Recorder
	logg            *logger.Logger
	now             func() time.Time
}

// NewService builds the refund service. Zero window and reason settings fall
// back to 7 days and 10 characters.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("refunds repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if deps.WindowDays <= 0 {
		deps.WindowDays = defaultWindowDays
	}
	if deps.MinReasonLength <= 0 {
		deps.MinReasonLength = defaultMinReasonLength
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{
		repo:            deps.Repo,
		tx:              deps.Tx,
		outbox:          deps.Outbox,
		audit:           deps.Audit,
		windowDays:      deps.WindowDays,
		minReasonLength: deps.MinReasonLength,
		metrics:         deps.Metrics,
		logg:            deps.Logger,
		now:             deps.Now,
	}, nil
}

// Request files a refund for a paid order. The order must be within the
// refund window unless it was delivered.
func (s *service) Request(ctx context.Context, userID uuid.UUID, input RequestInput) (view *View, err error) {
	ctx, done := tracing.Operation(ctx, s.metrics, "refund.request", attribute.String("order_id", input.OrderID.String()))
	defer func() { done(err) }()

	reason := strings.TrimSpace(input.Reason)
	if len([]rune(reason)) < s.minReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("reason must be at least %d characters", s.minReasonLength)).
			WithDetails(map[string]any{"field": "reason", "min_length": s.minReasonLength})
	}

	var refund *models.Refund
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindOrderForUser(ctx, input.OrderID, userID)
		if err != nil {
			return mapNotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
		}

		payment, err := repo.FindPayment(ctx, order.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment == nil || payment.Status != enums.PaymentStatusCaptured {
			return pkgerrors.New(pkgerrors.CodeConflict, "order has no captured payment").
				WithReason(pkgerrors.ReasonNoCapturedPayment)
		}

		exists, err := repo.ExistsForOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing refund")
		}
		if exists {
			return alreadyRequested()
		}

		ageDays := int(s.now().Sub(order.CreatedAt) / day)
		if ageDays > s.windowDays && order.Status != enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("refunds must be requested within %d days", s.windowDays)).
				WithReason(pkgerrors.ReasonRefundWindowExpired).
				WithDetails(map[string]any{"age_days": ageDays, "window_days": s.windowDays})
		}

		refund = &models.Refund{
			PaymentID: payment.ID,
			OrderID:   order.ID,
			UserID:    userID,
			Amount:    order.Total,
			Reason:    reason,
			Status:    enums.RefundStatusRequested,
		}
		if err := repo.Create(ctx, refund); err != nil {
			if db.IsUniqueViolation(err, orderIDConstraint) {
				return alreadyRequested()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: outbox.RefundRequestedEvent{
				RefundID: refund.ID,
				OrderID:  order.ID,
				Amount:   refund.Amount,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   &userID,
		Action:   enums.AuditRefundRequested,
		Entity:   enums.AuditEntityRefund,
		EntityID: refund.ID.String(),
		NewValue: map[string]any{
			"order_id": refund.OrderID,
			"amount":   refund.Amount,
			"status":   refund.Status,
		},
	})

	out := toView(refund)
	return &out, nil
}

// Adjudicate approves or rejects a REQUESTED refund. Approval reverses the
// order and payment in the same transaction.
func (s *service) Adjudicate(ctx context.Context, caps access.Capabilities, refundID uuid.UUID, input AdjudicateInput) (view *View, err error) {
	ctx, done := tracing.Operation(ctx, s.metrics, "refund.adjudicate",
		attribute.String("refund_id", refundID.String()),
		attribute.String("action", string(input.Action)))
	defer func() { done(err) }()

	if !canAdjudicate(caps) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refund adjudication requires admin or finance")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "action must be APPROVE or REJECT").
			WithDetails(map[string]any{"action": input.Action})
	}
	notes := normalizeNotes(input.Notes)

	after := input.Action.ResultingStatus()
	var (
		before  enums.RefundStatus
		orderID uuid.UUID
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		refund, err := repo.Lock(ctx, refundID)
		if err != nil {
			return mapNotFound(err, pkgerrors.ReasonRefundNotFound, "refund not found")
		}
		before = refund.Status
		orderID = refund.OrderID
		if refund.Status != enums.RefundStatusRequested {
			return alreadyProcessed(refund.Status)
		}

		updated, err := repo.Resolve(ctx, refund.ID, Resolution{
			Status:      after,
			ProcessedBy: caps.UserID,
			ProcessedAt: s.now().UTC(),
			Notes:       notes,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve refund")
		}
		if updated == 0 {
			return alreadyProcessed(refund.Status)
		}

		if input.Action == enums.RefundActionApprove {
			if err := repo.MarkOrderRefunded(ctx, refund.OrderID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order refunded")
			}
			if err := repo.MarkPaymentRefunded(ctx, refund.PaymentID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment refunded")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundResolved,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			Actor:         &outbox.ActorRef{UserID: caps.UserID, Roles: caps.RoleNames()},
			Data: outbox.RefundResolvedEvent{
				RefundID: refund.ID,
				OrderID:  refund.OrderID,
				Status:   after.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	action := enums.AuditRefundRejected
	if input.Action == enums.RefundActionApprove {
		action = enums.AuditRefundApproved
	}
	s.audit.Record(ctx, audit.Entry{
		UserID:   &caps.UserID,
		Action:   action,
		Entity:   enums.AuditEntityRefund,
		EntityID: refundID.String(),
		OldValue: map[string]any{"status": before},
		NewValue: map[string]any{"status": after, "notes": notes},
	})
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"refund_id": refundID.String(),
		"order_id":  orderID.String(),
		"status":    after,
	})
	s.logg.Info(logCtx, "refund adjudicated")

	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, mapNotFound(err, pkgerrors.ReasonRefundNotFound, "refund not found")
	}
	out := toView(refund)
	return &out, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]View, error) {
	refunds, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return toViews(refunds), nil
}

func (s *service) List(ctx context.Context, caps access.Capabilities, status *enums.RefundStatus) ([]View, error) {
	if !canAdjudicate(caps) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "refund listing requires admin or finance")
	}
	refunds, err := s.repo.List(ctx, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return toViews(refunds), nil
}

// Get returns a refund to its requester or to admin and finance staff.
// Anyone else sees NotFound.
func (s *service) Get(ctx context.Context, caps access.Capabilities, refundID uuid.UUID) (*View, error) {
	refund, err := s.repo.FindByID(ctx, refundID)
	if err != nil {
		return nil, mapNotFound(err, pkgerrors.ReasonRefundNotFound, "refund not found")
	}
	if refund.UserID != caps.UserID && !canAdjudicate(caps) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund not found").WithReason(pkgerrors.ReasonRefundNotFound)
	}
	out := toView(refund)
	return &out, nil
}

func canAdjudicate(caps access.Capabilities) bool {
	return caps.HasAnyRole(enums.RoleAdmin, enums.RoleFinance)
}

func alreadyRequested() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "a refund was already requested for this order").
		WithReason(pkgerrors.ReasonRefundAlreadyRequested)
}

func alreadyProcessed(status enums.RefundStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "refund was already processed").
		WithReason(pkgerrors.ReasonAlreadyProcessed).
		WithDetails(map[string]any{"status": status})
}

func mapNotFound(err error, reason pkgerrors.Reason, message string) error {
	return repo.NotFound(err, reason, message)
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
