package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/testutil"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

// stubAccess resolves every user to a fixed role set keyed by user id.
type stubAccess struct {
	roles map[uuid.UUID][]enums.Role
}

func (s stubAccess) Resolve(_ context.Context, userID uuid.UUID) (access.Capabilities, error) {
	return access.NewCapabilities(userID, s.roles[userID]...), nil
}

func (stubAccess) ListRoles() []access.RoleGrant { return nil }

func (stubAccess) UserRoles(context.Context, uuid.UUID) ([]enums.Role, error) { return nil, nil }

func (stubAccess) AssignRole(context.Context, access.Capabilities, uuid.UUID, enums.Role) error {
	return nil
}

func (stubAccess) RemoveRole(context.Context, access.Capabilities, uuid.UUID, enums.Role) error {
	return nil
}

type routerFixture struct {
	handler  http.Handler
	cfg      *config.Config
	customer uuid.UUID
	merchant uuid.UUID
	finance  uuid.UUID
	registry *prometheus.Registry
}

func newRouterFixture() *routerFixture {
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "storefront"},
	}
	f := &routerFixture{
		cfg:      cfg,
		customer: uuid.New(),
		merchant: uuid.New(),
		finance:  uuid.New(),
		registry: prometheus.NewRegistry(),
	}
	f.handler = NewRouter(Deps{
		Config:      cfg,
		Logger:      logger.Nop(),
		Ready:       map[string]controllers.Pinger{"db": stubPinger{}, "redis": stubPinger{}},
		HTTPMetrics: metrics.NewHTTP(f.registry),
		Gatherer:    f.registry,
		Access: stubAccess{roles: map[uuid.UUID][]enums.Role{
			f.customer: {enums.RoleCustomer},
			f.merchant: {enums.RoleMerchant},
			f.finance:  {enums.RoleFinance},
		}},
	})
	return f
}

func (f *routerFixture) do(t *testing.T, method, path string, userID *uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != nil {
		token := testutil.IssueToken(t, f.cfg.JWT, *userID)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestHealthRoutes(t *testing.T) {
	f := newRouterFixture()
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health/live", nil, "").Code)
	resp := f.do(t, http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestAPIRequiresToken(t *testing.T) {
	f := newRouterFixture()
	for _, path := range []string{"/api/v1/cart", "/api/v1/orders", "/api/v1/refunds", "/api/v1/audit"} {
		resp := f.do(t, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusUnauthorized, resp.Code, path)
	}
}

func TestRoleGates(t *testing.T) {
	f := newRouterFixture()

	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/vendor-orders", &f.customer, "").Code)
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/refunds/admin", &f.merchant, "").Code)
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/v1/refunds/"+uuid.NewString()+"/process", &f.customer, `{"action":"APPROVE"}`).Code)
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/v1/audit", &f.finance, "").Code)
	require.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/v1/rbac/assign-role", &f.finance, `{}`).Code)

	// Admitted callers reach the handler; nil services answer 500.
	require.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodGet, "/api/v1/vendor-orders", &f.merchant, "").Code)
	require.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodGet, "/api/v1/refunds/admin", &f.finance, "").Code)
}

func TestMetricsEndpointExposesRouteLabels(t *testing.T) {
	f := newRouterFixture()
	f.do(t, http.MethodGet, "/health/live", nil, "")

	resp := f.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `http_requests_total{method="GET",route="/health/live",status="200"} 1`)
}
