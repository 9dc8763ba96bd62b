package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/internal/vendors"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/tracing"
)

const (
	defaultNumberAttempts = 3
	numberRetryDelay      = 10 * time.Millisecond
	orderNumberConstraint = "order_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service covers order creation, buyer reads, status transitions and the
// vendor-scoped view.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*OrderView, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error)
	List(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus) ([]OrderView, error)
	UpdateStatus(ctx context.Context, caps access.Capabilities, input StatusUpdateInput) (*OrderView, error)
	ListVendorOrders(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus) ([]VendorOrderSummary, error)
	GetVendorOrder(ctx context.Context, userID, orderID uuid.UUID) (*VendorOrderDetail, error)
}

// Deps wires the order service.
type Deps struct {
	Repo           Repository
	Tx             txRunner
	Inventory      inventory.Reserver
	Outbox         outbox.Emitter
	Audit          audit.Recorder
	Vendors        vendors.Lookup
	Pricing        Pricing
	NumberAttempts int
	Numbers        NumberGenerator
	Metrics        tracing.Recorder
	Logger         *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	inventory inventory.Reserver
	outbox    outbox.Emitter
	audit     audit.Recorder
	vendors   vendors.Lookup
	pricing   Pricing
	attempts  int
	numbers   NumberGenerator
	metrics   tracing.Recorder
	logg      *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Inventory == nil {
		return nil, fmt.Errorf("inventory reserver required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if deps.Vendors == nil {
		return nil, fmt.Errorf("vendor lookup required")
	}
	if deps.Pricing.TaxRate.IsNegative() || deps.Pricing.FlatShippingFee.IsNegative() {
		return nil, fmt.Errorf("pricing must not be negative")
	}
	if deps.NumberAttempts <= 0 {
		deps.NumberAttempts = defaultNumberAttempts
	}
	if deps.Numbers == nil {
		deps.Numbers = NewOrderNumber
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &service{
		repo:      deps.Repo,
		tx:        deps.Tx,
		inventory: deps.Inventory,
		outbox:    deps.Outbox,
		audit:     deps.Audit,
		vendors:   deps.Vendors,
		pricing:   deps.Pricing,
		attempts:  deps.NumberAttempts,
		numbers:   deps.Numbers,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
	}, nil
}

// Create turns the caller's cart into a PENDING order, reserving stock for
// every line in the same transaction. A colliding order number retries the
// whole transaction. The cart is left untouched.
func (s *service) Create(ctx context.Context, input CreateInput) (view *OrderView, err error) {
	ctx, done := tracing.Operation(ctx, s.metrics, "order.create", attribute.String("user_id", input.UserID.String()))
	defer func() { done(err) }()

	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address_id is required")
	}
	input.Notes = normalizeNotes(input.Notes)
	if input.Notes != nil && len(*input.Notes) > maxNotesLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notes are too long").
			WithDetails(map[string]any{"max_length": maxNotesLength})
	}

	var order *models.Order
	backoff := retry.WithMaxRetries(uint64(s.attempts-1), retry.NewConstant(numberRetryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		created, err := s.createOnce(ctx, input)
		if err != nil {
			if db.IsUniqueViolation(err, orderNumberConstraint) {
				s.logg.Warn(ctx, "order number collision, retrying")
				return retry.RetryableError(err)
			}
			return err
		}
		order = created
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, orderNumberConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate an order number")
		}
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(logCtx, "order created")
	s.audit.Record(ctx, audit.Entry{
		UserID:   &input.UserID,
		Action:   enums.AuditOrderCreated,
		Entity:   enums.AuditEntityOrder,
		EntityID: order.ID.String(),
		NewValue: map[string]any{
			"order_number": order.OrderNumber,
			"status":       order.Status,
			"total":        order.Total,
		},
	})

	out := toOrderView(order)
	return &out, nil
}

func (s *service) createOnce(ctx context.Context, input CreateInput) (*models.Order, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindAddress(ctx, input.AddressID, input.UserID); err != nil {
			return mapNotFound(err, pkgerrors.ReasonAddressNotFound, "address not found")
		}

		cart, err := repo.LoadCart(ctx, input.UserID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if cart == nil || len(cart.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").WithReason(pkgerrors.ReasonEmptyCart)
		}

		items := append([]models.CartItem(nil), cart.Items...)
		for _, item := range items {
			if item.Product == nil || !item.Product.IsActive {
				title := "unknown product"
				if item.Product != nil {
					title = item.Product.Title
				}
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("product %s is no longer available", title)).
					WithReason(pkgerrors.ReasonInactiveProduct).
					WithDetails(map[string]any{"product_id": item.ProductID, "product_title": title})
			}
		}

		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductID.String() < items[j].ProductID.String()
		})
		for _, item := range items {
			if err := s.inventory.Reserve(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		lines := make([]models.OrderLine, 0, len(cart.Items))
		vendorIDs := []uuid.UUID{}
		seenVendors := map[uuid.UUID]struct{}{}
		for _, item := range cart.Items {
			line := models.OrderLine{
				ProductID: item.ProductID,
				VendorID:  item.Product.VendorID,
				Title:     item.Product.Title,
				SKU:       item.Product.SKU,
				UnitPrice: item.Product.BasePrice.Round(2),
				Quantity:  item.Quantity,
			}
			lines = append(lines, line)
			if _, ok := seenVendors[line.VendorID]; !ok {
				seenVendors[line.VendorID] = struct{}{}
				vendorIDs = append(vendorIDs, line.VendorID)
			}
		}

		subtotal := sumModelLines(lines)
		totals := s.pricing.Price(subtotal)

		order = &models.Order{
			UserID:       input.UserID,
			AddressID:    input.AddressID,
			OrderNumber:  s.numbers(time.Now()),
			Subtotal:     totals.Subtotal,
			Tax:          totals.Tax,
			ShippingCost: totals.Shipping,
			Total:        totals.Total,
			Status:       enums.OrderStatusPending,
			Notes:        input.Notes,
			Lines:        lines,
		}
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: outbox.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				UserID:      order.UserID,
				VendorIDs:   vendorIDs,
				Total:       order.Total,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindForUser(ctx, orderID, userID)
	if err != nil {
		return nil, mapNotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
	}
	view := toOrderView(order)
	return &view, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus) ([]OrderView, error) {
	orders, err := s.repo.ListForUser(ctx, userID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderView, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderView(&orders[i]))
	}
	return out, nil
}

// UpdateStatus applies one state-machine transition. Admins may move any
// order; merchants only orders containing at least one of their lines. The
// whole order moves, not just the vendor's lines.
func (s *service) UpdateStatus(ctx context.Context, caps access.Capabilities, input StatusUpdateInput) (view *OrderView, err error) {
	ctx, done := tracing.Operation(ctx, s.metrics, "order.update_status",
		attribute.String("order_id", input.OrderID.String()),
		attribute.String("target_status", input.Status.String()))
	defer func() { done(err) }()

	if caps.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !caps.HasAnyRole(enums.RoleAdmin, enums.RoleMerchant) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order status updates require merchant or admin")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").
			WithDetails(map[string]any{"status": input.Status})
	}

	var from enums.OrderStatus
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.LockByID(ctx, input.OrderID)
		if err != nil {
			return mapNotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
		}

		if !caps.IsAdmin() {
			vendor, err := s.vendors.ForUser(ctx, tx, caps.UserID)
			if err != nil {
				return err
			}
			owns, err := repo.VendorHasLine(ctx, order.ID, vendor.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check vendor lines")
			}
			if !owns {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order has no lines from this vendor")
			}
		}

		from = order.Status
		if !from.CanTransitionTo(input.Status) {
			return invalidTransition(from, input.Status)
		}

		updated, err := repo.UpdateStatus(ctx, order.ID, from, input.Status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if updated == 0 {
			return invalidTransition(from, input.Status)
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStateChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: caps.UserID, Roles: caps.RoleNames()},
			Data: outbox.OrderStateChangedEvent{
				OrderID: order.ID,
				From:    from.String(),
				To:      input.Status.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, audit.Entry{
		UserID:   &caps.UserID,
		Action:   enums.AuditOrderStatusUpdated,
		Entity:   enums.AuditEntityOrder,
		EntityID: input.OrderID.String(),
		OldValue: map[string]any{"status": from},
		NewValue: map[string]any{"status": input.Status},
	})

	order, err := s.repo.FindByID(ctx, input.OrderID)
	if err != nil {
		return nil, mapNotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
	}
	out := toOrderView(order)
	return &out, nil
}

// ListVendorOrders groups the caller's vendor lines by order, newest first.
func (s *service) ListVendorOrders(ctx context.Context, userID uuid.UUID, status *enums.OrderStatus) ([]VendorOrderSummary, error) {
	vendor, err := s.vendors.ForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListVendorLines(ctx, vendor.ID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vendor orders")
	}
	return groupVendorLines(rows), nil
}

// GetVendorOrder returns the order header with only the caller's lines. An
// order with none of the vendor's lines is reported as not found.
func (s *service) GetVendorOrder(ctx context.Context, userID, orderID uuid.UUID) (*VendorOrderDetail, error) {
	vendor, err := s.vendors.ForUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.FindVendorLines(ctx, orderID, vendor.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor lines")
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithReason(pkgerrors.ReasonOrderNotFound)
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapNotFound(err, pkgerrors.ReasonOrderNotFound, "order not found")
	}
	order.Lines = lines

	view := toOrderView(order)
	return &VendorOrderDetail{OrderView: view, VendorTotal: sumLines(view.Lines)}, nil
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", from, to)).
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{"from": from, "to": to, "allowed": from.AllowedTransitions()})
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

func sumModelLines(lines []models.OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}
