package refunds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/access"
	refundsvc "github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubRefundsService struct {
	requestInput  refundsvc.RequestInput
	adjudicated   refundsvc.AdjudicateInput
	listStatus    *enums.RefundStatus
	adjudicateErr error
}

func (s *stubRefundsService) Request(_ context.Context, userID uuid.UUID, input refundsvc.RequestInput) (*refundsvc.View, error) {
	s.requestInput = input
	return &refundsvc.View{ID: uuid.New(), OrderID: input.OrderID, UserID: userID, Status: enums.RefundStatusRequested}, nil
}

func (s *stubRefundsService) Adjudicate(_ context.Context, _ access.Capabilities, refundID uuid.UUID, input refundsvc.AdjudicateInput) (*refundsvc.View, error) {
	s.adjudicated = input
	if s.adjudicateErr != nil {
		return nil, s.adjudicateErr
	}
	return &refundsvc.View{ID: refundID, Status: input.Action.ResultingStatus()}, nil
}

func (s *stubRefundsService) ListForUser(context.Context, uuid.UUID) ([]refundsvc.View, error) {
	return []refundsvc.View{}, nil
}

func (s *stubRefundsService) List(_ context.Context, _ access.Capabilities, status *enums.RefundStatus) ([]refundsvc.View, error) {
	s.listStatus = status
	return []refundsvc.View{}, nil
}

func (s *stubRefundsService) Get(_ context.Context, _ access.Capabilities, refundID uuid.UUID) (*refundsvc.View, error) {
	return &refundsvc.View{ID: refundID}, nil
}

func authed(req *http.Request, roles ...enums.Role) *http.Request {
	return req.WithContext(access.WithCapabilities(req.Context(), access.NewCapabilities(uuid.New(), roles...)))
}

func withRefundID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("refundId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestRequestCreatesRefund(t *testing.T) {
	svc := &stubRefundsService{}
	orderID := uuid.New()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/refunds", strings.NewReader(`{"order_id":"`+orderID.String()+`","reason":"arrived broken"}`)))
	resp := httptest.NewRecorder()

	Request(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, orderID, svc.requestInput.OrderID)
	require.Equal(t, "arrived broken", svc.requestInput.Reason)
}

func TestProcessValidatesAction(t *testing.T) {
	svc := &stubRefundsService{}
	req := authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"MAYBE"}`)), enums.RoleFinance)
	req = withRefundID(req, uuid.NewString())
	resp := httptest.NewRecorder()
	Process(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	ok := authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"APPROVE","notes":"verified"}`)), enums.RoleFinance)
	ok = withRefundID(ok, uuid.NewString())
	resp = httptest.NewRecorder()
	Process(svc, nil).ServeHTTP(resp, ok)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, enums.RefundActionApprove, svc.adjudicated.Action)
	require.Contains(t, resp.Body.String(), `"APPROVED"`)
}

func TestProcessAlreadyProcessed(t *testing.T) {
	svc := &stubRefundsService{adjudicateErr: pkgerrors.New(pkgerrors.CodeStateConflict, "refund already processed").WithReason(pkgerrors.ReasonAlreadyProcessed)}
	req := authed(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"action":"REJECT"}`)), enums.RoleAdmin)
	req = withRefundID(req, uuid.NewString())
	resp := httptest.NewRecorder()
	Process(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.Contains(t, resp.Body.String(), "ALREADY_PROCESSED")
}

func TestAdminListStatusFilter(t *testing.T) {
	svc := &stubRefundsService{}
	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/refunds/admin?status=requested", nil), enums.RoleAdmin)
	resp := httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, enums.RefundStatusRequested, *svc.listStatus)

	bad := authed(httptest.NewRequest(http.MethodGet, "/api/v1/refunds/admin?status=lost", nil), enums.RoleAdmin)
	resp = httptest.NewRecorder()
	AdminList(svc, nil).ServeHTTP(resp, bad)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
