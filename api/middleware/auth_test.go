package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/testutil"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubResolver struct {
	roles []enums.Role
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, userID uuid.UUID) (access.Capabilities, error) {
	s.calls++
	if s.err != nil {
		return access.Capabilities{}, s.err
	}
	return access.NewCapabilities(userID, s.roles...), nil
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "storefront"}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID) string {
	t.Helper()
	return testutil.IssueToken(t, cfg, userID)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	resolver := &stubResolver{}
	handler := Auth(testJWT(), resolver, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if resolver.calls != 0 {
		t.Fatalf("resolver should not run without a token")
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT(), &stubResolver{}, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInactiveUser(t *testing.T) {
	cfg := testJWT()
	resolver := &stubResolver{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "user is inactive")}
	handler := Auth(cfg, resolver, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	cfg := testJWT()
	userID := uuid.New()
	token := mintTestToken(t, cfg, userID)

	var (
		capturedUser uuid.UUID
		capturedCaps access.Capabilities
	)
	handler := Auth(cfg, &stubResolver{roles: []enums.Role{enums.RoleMerchant}}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUser = UserIDFromContext(r.Context())
		capturedCaps, _ = access.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if capturedUser != userID {
		t.Fatalf("expected user %s got %s", userID, capturedUser)
	}
	if !capturedCaps.HasRole(enums.RoleMerchant) {
		t.Fatalf("expected merchant capabilities, got %v", capturedCaps.Roles())
	}
}

func TestRequireAnyRole(t *testing.T) {
	mw := RequireAnyRole(nil, enums.RoleAdmin, enums.RoleFinance)

	cases := []struct {
		name  string
		roles []enums.Role
		auth  bool
		want  int
	}{
		{"finance admitted", []enums.Role{enums.RoleFinance}, true, http.StatusOK},
		{"customer forbidden", []enums.Role{enums.RoleCustomer}, true, http.StatusForbidden},
		{"anonymous unauthorized", nil, false, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.auth {
			req = req.WithContext(access.WithCapabilities(req.Context(), access.NewCapabilities(uuid.New(), tc.roles...)))
		}
		resp := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.name, tc.want, resp.Code)
		}
	}
}

func TestRequirePermission(t *testing.T) {
	mw := RequirePermission(nil, enums.PermRolesAssign)

	admin := httptest.NewRequest(http.MethodPost, "/", nil)
	admin = admin.WithContext(access.WithCapabilities(admin.Context(), access.NewCapabilities(uuid.New(), enums.RoleAdmin)))
	resp := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("admin expected 200 got %d", resp.Code)
	}

	merchant := httptest.NewRequest(http.MethodPost, "/", nil)
	merchant = merchant.WithContext(access.WithCapabilities(merchant.Context(), access.NewCapabilities(uuid.New(), enums.RoleMerchant)))
	resp = httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(resp, merchant)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("merchant expected 403 got %d", resp.Code)
	}
}
