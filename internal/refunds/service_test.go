package refunds

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/testutil"
	"github.com/angelmondragon/storefront-backend/internal/testutil/recorder"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const validReason = "arrived broken in transit"

type fixture struct {
	conn  *gorm.DB
	svc   Service
	audit *recorder.Audit
	now   time.Time
}

func newFixture(t *testing.T, name string) *fixture {
	t.Helper()
	conn := testutil.OpenDB(t, name)
	f := &fixture{conn: conn, audit: &recorder.Audit{}, now: time.Now().UTC()}
	svc, err := NewService(Deps{
		Repo:   NewRepository(conn),
		Tx:     testutil.Client(conn),
		Outbox: recorder.Outbox(conn),
		Audit:  f.audit,
		Now:    func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

type paidOrder struct {
	buyer   models.User
	order   models.Order
	payment models.Payment
}

// paid seeds an order in status with a CAPTURED payment, created ageDays ago.
func (f *fixture) paid(t *testing.T, status enums.OrderStatus, ageDays int) paidOrder {
	t.Helper()
	buyer := testutil.CreateUser(t, f.conn, enums.RoleCustomer)
	_, vendor := testutil.CreateVendor(t, f.conn, "Shop")
	product := testutil.CreateProduct(t, f.conn, vendor.ID, "Chair", "120.00", 5)
	order := testutil.CreateOrder(t, f.conn, buyer.ID, product, 1, status)

	createdAt := f.now.Add(-time.Duration(ageDays) * 24 * time.Hour)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("created_at", createdAt).Error)

	paymentID := "pay_" + uuid.NewString()[:8]
	payment := models.Payment{
		OrderID:           order.ID,
		ProviderOrderID:   "order_" + uuid.NewString()[:8],
		ProviderPaymentID: &paymentID,
		Status:            enums.PaymentStatusCaptured,
		Amount:            order.Total,
		Currency:          "INR",
	}
	require.NoError(t, f.conn.Create(&payment).Error)
	return paidOrder{buyer: buyer, order: order, payment: payment}
}

func TestRequestCreatesRefundForOrderTotal(t *testing.T) {
	f := newFixture(t, "refunds_request")
	p := f.paid(t, enums.OrderStatusConfirmed, 2)

	view, err := f.svc.Request(context.Background(), p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: "  " + validReason + "  "})
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusRequested, view.Status)
	require.True(t, view.Amount.Equal(p.order.Total))
	require.Equal(t, validReason, view.Reason)
	require.Equal(t, p.payment.ID, view.PaymentID)

	require.Len(t, recorder.OutboxEvents(t, f.conn, enums.EventRefundRequested), 1)
	require.Equal(t, []enums.AuditAction{enums.AuditRefundRequested}, f.audit.Actions())

	_, err = f.svc.Request(context.Background(), p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: validReason})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonRefundAlreadyRequested))
}

func TestRequestValidatesReasonLength(t *testing.T) {
	f := newFixture(t, "refunds_reason")
	p := f.paid(t, enums.OrderStatusConfirmed, 0)

	_, err := f.svc.Request(context.Background(), p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: "too short"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Request(context.Background(), p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: "exactly10!"})
	require.NoError(t, err)
}

func TestRequestWindow(t *testing.T) {
	f := newFixture(t, "refunds_window")
	ctx := context.Background()

	expired := f.paid(t, enums.OrderStatusConfirmed, 10)
	_, err := f.svc.Request(ctx, expired.buyer.ID, RequestInput{OrderID: expired.order.ID, Reason: validReason})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonRefundWindowExpired))

	edge := f.paid(t, enums.OrderStatusShipped, 7)
	_, err = f.svc.Request(ctx, edge.buyer.ID, RequestInput{OrderID: edge.order.ID, Reason: validReason})
	require.NoError(t, err)

	delivered := f.paid(t, enums.OrderStatusDelivered, 30)
	_, err = f.svc.Request(ctx, delivered.buyer.ID, RequestInput{OrderID: delivered.order.ID, Reason: validReason})
	require.NoError(t, err)
}

func TestRequestRequiresCapturedPaymentAndOwnership(t *testing.T) {
	f := newFixture(t, "refunds_preconditions")
	ctx := context.Background()

	buyer := testutil.CreateUser(t, f.conn)
	_, vendor := testutil.CreateVendor(t, f.conn, "Shop")
	product := testutil.CreateProduct(t, f.conn, vendor.ID, "Desk", "300.00", 5)
	unpaid := testutil.CreateOrder(t, f.conn, buyer.ID, product, 1, enums.OrderStatusPending)

	_, err := f.svc.Request(ctx, buyer.ID, RequestInput{OrderID: unpaid.ID, Reason: validReason})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonNoCapturedPayment))

	p := f.paid(t, enums.OrderStatusConfirmed, 1)
	_, err = f.svc.Request(ctx, buyer.ID, RequestInput{OrderID: p.order.ID, Reason: validReason})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonOrderNotFound))
}

func TestApproveReversesOrderAndPayment(t *testing.T) {
	f := newFixture(t, "refunds_approve")
	p := f.paid(t, enums.OrderStatusDelivered, 3)
	ctx := context.Background()

	requested, err := f.svc.Request(ctx, p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: validReason})
	require.NoError(t, err)

	finance := testutil.CreateUser(t, f.conn, enums.RoleFinance)
	caps := access.NewCapabilities(finance.ID, enums.RoleFinance)
	notes := "  approved after inspection "
	view, err := f.svc.Adjudicate(ctx, caps, requested.ID, AdjudicateInput{Action: enums.RefundActionApprove, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusApproved, view.Status)
	require.NotNil(t, view.ProcessedBy)
	require.Equal(t, finance.ID, *view.ProcessedBy)
	require.NotNil(t, view.ProcessedAt)
	require.Equal(t, "approved after inspection", *view.AdminNotes)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", p.order.ID).Error)
	require.Equal(t, enums.OrderStatusRefunded, order.Status)
	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", p.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusRefunded, payment.Status)

	require.Len(t, recorder.OutboxEvents(t, f.conn, enums.EventRefundResolved), 1)
	entries := f.audit.Entries()
	last := entries[len(entries)-1]
	require.Equal(t, enums.AuditRefundApproved, last.Action)
	require.Equal(t, map[string]any{"status": enums.RefundStatusRequested}, last.OldValue)

	admin := testutil.CreateUser(t, f.conn, enums.RoleAdmin)
	_, err = f.svc.Adjudicate(ctx, access.NewCapabilities(admin.ID, enums.RoleAdmin), requested.ID,
		AdjudicateInput{Action: enums.RefundActionReject})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonAlreadyProcessed))

	var refund models.Refund
	require.NoError(t, f.conn.First(&refund, "id = ?", requested.ID).Error)
	require.Equal(t, enums.RefundStatusApproved, refund.Status)
	require.NotNil(t, refund.ProcessedBy)
	require.Equal(t, finance.ID, *refund.ProcessedBy)
	require.Equal(t, "approved after inspection", *refund.AdminNotes)
	require.NoError(t, f.conn.First(&order, "id = ?", p.order.ID).Error)
	require.Equal(t, enums.OrderStatusRefunded, order.Status)
	require.NoError(t, f.conn.First(&payment, "id = ?", p.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusRefunded, payment.Status)
	require.Len(t, recorder.OutboxEvents(t, f.conn, enums.EventRefundResolved), 1)
	require.Len(t, f.audit.Entries(), len(entries))
}

type failingPaymentRepo struct {
	Repository
}

func (r failingPaymentRepo) WithTx(tx *gorm.DB) Repository {
	return failingPaymentRepo{Repository: r.Repository.WithTx(tx)}
}

func (failingPaymentRepo) MarkPaymentRefunded(context.Context, uuid.UUID) error {
	return errors.New("connection reset by peer")
}

func TestApproveRollsBackWhenPaymentUpdateFails(t *testing.T) {
	f := newFixture(t, "refunds_approve_rollback")
	p := f.paid(t, enums.OrderStatusConfirmed, 1)
	ctx := context.Background()

	requested, err := f.svc.Request(ctx, p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: validReason})
	require.NoError(t, err)

	svc, err := NewService(Deps{
		Repo:   failingPaymentRepo{Repository: NewRepository(f.conn)},
		Tx:     testutil.Client(f.conn),
		Outbox: recorder.Outbox(f.conn),
		Audit:  f.audit,
		Now:    func() time.Time { return f.now },
	})
	require.NoError(t, err)

	admin := testutil.CreateUser(t, f.conn, enums.RoleAdmin)
	_, err = svc.Adjudicate(ctx, access.NewCapabilities(admin.ID, enums.RoleAdmin), requested.ID,
		AdjudicateInput{Action: enums.RefundActionApprove})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	var refund models.Refund
	require.NoError(t, f.conn.First(&refund, "id = ?", requested.ID).Error)
	require.Equal(t, enums.RefundStatusRequested, refund.Status)
	require.Nil(t, refund.ProcessedBy)
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", p.order.ID).Error)
	require.Equal(t, enums.OrderStatusConfirmed, order.Status)
	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", p.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusCaptured, payment.Status)
	require.Empty(t, recorder.OutboxEvents(t, f.conn, enums.EventRefundResolved))
	require.Equal(t, []enums.AuditAction{enums.AuditRefundRequested}, f.audit.Actions())
}

func TestRejectLeavesOrderUntouched(t *testing.T) {
	f := newFixture(t, "refunds_reject")
	p := f.paid(t, enums.OrderStatusConfirmed, 1)
	ctx := context.Background()

	requested, err := f.svc.Request(ctx, p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: validReason})
	require.NoError(t, err)

	admin := testutil.CreateUser(t, f.conn, enums.RoleAdmin)
	view, err := f.svc.Adjudicate(ctx, access.NewCapabilities(admin.ID, enums.RoleAdmin), requested.ID,
		AdjudicateInput{Action: enums.RefundActionReject})
	require.NoError(t, err)
	require.Equal(t, enums.RefundStatusRejected, view.Status)
	require.Nil(t, view.AdminNotes)

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", p.order.ID).Error)
	require.Equal(t, enums.OrderStatusConfirmed, order.Status)
	var payment models.Payment
	require.NoError(t, f.conn.First(&payment, "id = ?", p.payment.ID).Error)
	require.Equal(t, enums.PaymentStatusCaptured, payment.Status)

	actions := f.audit.Actions()
	require.Equal(t, enums.AuditRefundRejected, actions[len(actions)-1])
}

func TestAdjudicateRequiresAdminOrFinance(t *testing.T) {
	f := newFixture(t, "refunds_forbidden")
	p := f.paid(t, enums.OrderStatusConfirmed, 1)
	ctx := context.Background()

	requested, err := f.svc.Request(ctx, p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: validReason})
	require.NoError(t, err)

	merchant := testutil.CreateUser(t, f.conn, enums.RoleMerchant)
	_, err = f.svc.Adjudicate(ctx, access.NewCapabilities(merchant.ID, enums.RoleMerchant), requested.ID,
		AdjudicateInput{Action: enums.RefundActionApprove})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	admin := access.NewCapabilities(uuid.New(), enums.RoleAdmin)
	_, err = f.svc.Adjudicate(ctx, admin, uuid.New(), AdjudicateInput{Action: enums.RefundActionApprove})
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonRefundNotFound))

	_, err = f.svc.Adjudicate(ctx, admin, requested.ID, AdjudicateInput{Action: "MAYBE"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRefundReads(t *testing.T) {
	f := newFixture(t, "refunds_reads")
	ctx := context.Background()
	first := f.paid(t, enums.OrderStatusConfirmed, 1)
	second := f.paid(t, enums.OrderStatusConfirmed, 1)

	a, err := f.svc.Request(ctx, first.buyer.ID, RequestInput{OrderID: first.order.ID, Reason: validReason})
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, second.buyer.ID, RequestInput{OrderID: second.order.ID, Reason: validReason})
	require.NoError(t, err)

	admin := access.NewCapabilities(uuid.New(), enums.RoleAdmin)
	_, err = f.svc.Adjudicate(ctx, admin, a.ID, AdjudicateInput{Action: enums.RefundActionReject})
	require.NoError(t, err)

	own, err := f.svc.ListForUser(ctx, first.buyer.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)

	all, err := f.svc.List(ctx, admin, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	requested := enums.RefundStatusRequested
	pending, err := f.svc.List(ctx, admin, &requested)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.svc.List(ctx, access.NewCapabilities(first.buyer.ID, enums.RoleCustomer), nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	got, err := f.svc.Get(ctx, access.NewCapabilities(first.buyer.ID, enums.RoleCustomer), a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)

	_, err = f.svc.Get(ctx, access.NewCapabilities(second.buyer.ID, enums.RoleCustomer), a.ID)
	require.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonRefundNotFound))

	_, err = f.svc.Get(ctx, admin, a.ID)
	require.NoError(t, err)
}

func TestNewServiceDefaults(t *testing.T) {
	_, err := NewService(Deps{})
	require.Error(t, err)

	f := newFixture(t, "refunds_defaults")
	p := f.paid(t, enums.OrderStatusConfirmed, 0)
	_, err = f.svc.Request(context.Background(), p.buyer.ID, RequestInput{OrderID: p.order.ID, Reason: strings.Repeat("a", 9)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
