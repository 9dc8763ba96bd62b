package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/storefront-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/payments"
	refundcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/refunds"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Deps is everything the HTTP surface is wired to.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Ready       map[string]controllers.Pinger
	Idempotency redis.IdempotencyStore
	HTTPMetrics *metrics.HTTP
	Gatherer    prometheus.Gatherer

	Access   access.Service
	Audit    controllers.AuditLister
	Address  address.Service
	Cart     cart.Service
	Orders   orders.Service
	Payments payments.Service
	Refunds  refunds.Service
}

func NewRouter(d Deps) http.Handler {
	logg := d.Logger
	cfg := d.Config

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.HTTPMetrics),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})

	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Access, logg))
		orderKey := middleware.Idempotency(d.Idempotency, logg, middleware.OrderIdempotencyTTL)
		paymentKey := middleware.Idempotency(d.Idempotency, logg, middleware.PaymentIdempotencyTTL)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(d.Cart, logg))
			r.Delete("/", cartcontrollers.CartClear(d.Cart, logg))
			r.Post("/items", cartcontrollers.CartAddItem(d.Cart, logg))
			r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(d.Cart, logg))
			r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(d.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.With(orderKey).Post("/", ordercontrollers.Create(d.Orders, logg))
			r.Get("/addresses/list", controllers.AddressList(d.Address, logg))
			r.Post("/addresses", controllers.AddressCreate(d.Address, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
		})

		r.Route("/vendor-orders", func(r chi.Router) {
			r.Use(middleware.RequireAnyRole(logg, enums.RoleMerchant, enums.RoleAdmin))
			r.Get("/", ordercontrollers.VendorList(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.VendorDetail(d.Orders, logg))
			r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(d.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.With(paymentKey).Post("/create-order", paymentcontrollers.CreateOrder(d.Payments, logg))
			r.With(paymentKey).Post("/verify", paymentcontrollers.Verify(d.Payments, logg))
			r.Get("/status/{orderId}", paymentcontrollers.Status(d.Payments, logg))
		})

		r.Route("/refunds", func(r chi.Router) {
			r.With(paymentKey).Post("/", refundcontrollers.Request(d.Refunds, logg))
			r.Get("/", refundcontrollers.ListMine(d.Refunds, logg))
			r.With(middleware.RequireAnyRole(logg, enums.RoleAdmin, enums.RoleFinance)).
				Get("/admin", refundcontrollers.AdminList(d.Refunds, logg))
			r.Get("/{refundId}", refundcontrollers.Detail(d.Refunds, logg))
			r.With(middleware.RequireAnyRole(logg, enums.RoleAdmin, enums.RoleFinance), paymentKey).
				Post("/{refundId}/process", refundcontrollers.Process(d.Refunds, logg))
		})

		r.Route("/rbac", func(r chi.Router) {
			r.Get("/roles", controllers.RolesList(d.Access, logg))
			r.With(middleware.RequirePermission(logg, enums.PermRolesAssign)).
				Post("/assign-role", controllers.RoleAssign(d.Access, logg))
			r.With(middleware.RequirePermission(logg, enums.PermRolesAssign)).
				Post("/remove-role", controllers.RoleRemove(d.Access, logg))
		})

		r.With(middleware.RequireAnyRole(logg, enums.RoleAdmin)).
			Get("/audit", controllers.AuditLogs(d.Audit, logg))
	})

	return r
}
