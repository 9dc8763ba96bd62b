package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/access"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type stubOrdersService struct {
	createInput  internalorders.CreateInput
	statusInput  internalorders.StatusUpdateInput
	statusCaps   access.Capabilities
	listStatus   *enums.OrderStatus
	createErr    error
	statusErr    error
	vendorDetail *internalorders.VendorOrderDetail
}

func (s *stubOrdersService) Create(_ context.Context, input internalorders.CreateInput) (*internalorders.OrderView, error) {
	s.createInput = input
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &internalorders.OrderView{ID: uuid.New(), OrderNumber: "ORD-TEST-0001", Status: enums.OrderStatusPending}, nil
}

func (s *stubOrdersService) Get(_ context.Context, _, orderID uuid.UUID) (*internalorders.OrderView, error) {
	return &internalorders.OrderView{ID: orderID}, nil
}

func (s *stubOrdersService) List(_ context.Context, _ uuid.UUID, status *enums.OrderStatus) ([]internalorders.OrderView, error) {
	s.listStatus = status
	return []internalorders.OrderView{}, nil
}

func (s *stubOrdersService) UpdateStatus(_ context.Context, caps access.Capabilities, input internalorders.StatusUpdateInput) (*internalorders.OrderView, error) {
	s.statusCaps = caps
	s.statusInput = input
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &internalorders.OrderView{ID: input.OrderID, Status: input.Status}, nil
}

func (s *stubOrdersService) ListVendorOrders(_ context.Context, _ uuid.UUID, status *enums.OrderStatus) ([]internalorders.VendorOrderSummary, error) {
	s.listStatus = status
	return []internalorders.VendorOrderSummary{}, nil
}

func (s *stubOrdersService) GetVendorOrder(context.Context, uuid.UUID, uuid.UUID) (*internalorders.VendorOrderDetail, error) {
	if s.vendorDetail == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithReason(pkgerrors.ReasonOrderNotFound)
	}
	return s.vendorDetail, nil
}

func withCaps(req *http.Request, roles ...enums.Role) (*http.Request, uuid.UUID) {
	userID := uuid.New()
	ctx := access.WithCapabilities(req.Context(), access.NewCapabilities(userID, roles...))
	return req.WithContext(ctx), userID
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var env types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env.Error
}

func TestCreateUsesCallerIdentity(t *testing.T) {
	svc := &stubOrdersService{}
	addressID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"address_id":"`+addressID.String()+`","notes":"leave at door"}`))
	req, userID := withCaps(req, enums.RoleCustomer)
	resp := httptest.NewRecorder()

	Create(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, userID, svc.createInput.UserID)
	require.Equal(t, addressID, svc.createInput.AddressID)
	require.Equal(t, "leave at door", *svc.createInput.Notes)
}

func TestCreateRequiresPrincipal(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	Create(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCreateSurfacesBusinessReason(t *testing.T) {
	svc := &stubOrdersService{createErr: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").WithReason(pkgerrors.ReasonEmptyCart)}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"address_id":"`+uuid.NewString()+`"}`))
	req, _ = withCaps(req)
	resp := httptest.NewRecorder()

	Create(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	apiErr := decodeError(t, resp)
	require.Equal(t, "EMPTY_CART", apiErr.Reason)
	require.Equal(t, "cart is empty", apiErr.Message)
}

func TestListParsesStatusFilter(t *testing.T) {
	svc := &stubOrdersService{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=shipped", nil)
	req, _ = withCaps(req)
	resp := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, svc.listStatus)
	require.Equal(t, enums.OrderStatusShipped, *svc.listStatus)

	bad := httptest.NewRequest(http.MethodGet, "/api/v1/orders?status=LOST", nil)
	bad, _ = withCaps(bad)
	resp = httptest.NewRecorder()
	List(svc, nil).ServeHTTP(resp, bad)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUpdateStatusPassesCapabilities(t *testing.T) {
	svc := &stubOrdersService{}
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/vendor-orders/"+orderID.String()+"/status", strings.NewReader(`{"status":"processing"}`))
	req, userID := withCaps(req, enums.RoleMerchant)
	req = withURLParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, orderID, svc.statusInput.OrderID)
	require.Equal(t, enums.OrderStatusProcessing, svc.statusInput.Status)
	require.Equal(t, userID, svc.statusCaps.UserID)
	require.True(t, svc.statusCaps.HasRole(enums.RoleMerchant))
}

func TestUpdateStatusInvalidTransitionIsUnprocessable(t *testing.T) {
	svc := &stubOrdersService{statusErr: pkgerrors.New(pkgerrors.CodeStateConflict, "order cannot move from SHIPPED to PROCESSING").
		WithReason(pkgerrors.ReasonInvalidTransition).
		WithDetails(map[string]any{"from": "SHIPPED", "to": "PROCESSING", "allowed": []string{"DELIVERED"}})}
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"PROCESSING"}`))
	req, _ = withCaps(req, enums.RoleAdmin)
	req = withURLParam(req, "orderId", orderID.String())
	resp := httptest.NewRecorder()

	UpdateStatus(svc, nil).ServeHTTP(resp, req)

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	apiErr := decodeError(t, resp)
	require.Equal(t, "INVALID_TRANSITION", apiErr.Reason)
	require.NotNil(t, apiErr.Details)
}

func TestVendorDetailRejectsBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req, _ = withCaps(req, enums.RoleMerchant)
	req = withURLParam(req, "orderId", "nope")
	resp := httptest.NewRecorder()
	VendorDetail(&stubOrdersService{}, nil).ServeHTTP(resp, req)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	good := httptest.NewRequest(http.MethodGet, "/", nil)
	good, _ = withCaps(good, enums.RoleMerchant)
	good = withURLParam(good, "orderId", uuid.NewString())
	resp = httptest.NewRecorder()
	VendorDetail(&stubOrdersService{}, nil).ServeHTTP(resp, good)
	require.Equal(t, http.StatusNotFound, resp.Code)
}
