package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/address"
	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/refunds"
	"github.com/angelmondragon/storefront-backend/internal/vendors"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	lifecycle := metrics.NewLifecycle(registry)

	deps, err := buildServices(cfg, logg, dbClient, lifecycle)
	if err != nil {
		return err
	}
	deps.Config = cfg
	deps.Logger = logg
	deps.Ready = map[string]controllers.Pinger{"db": dbClient, "redis": redisClient}
	deps.Idempotency = redisClient
	deps.HTTPMetrics = metrics.NewHTTP(registry)
	deps.Gatherer = registry

	addr := ":" + cfg.App.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, lifecycle *metrics.Lifecycle) (routes.Deps, error) {
	conn := dbClient.DB()

	auditSvc, err := audit.NewService(conn, logg, lifecycle)
	if err != nil {
		return routes.Deps{}, err
	}
	accessSvc, err := access.NewService(access.NewRepository(conn), auditSvc)
	if err != nil {
		return routes.Deps{}, err
	}
	ledger, err := inventory.NewLedger(conn)
	if err != nil {
		return routes.Deps{}, err
	}
	vendorSvc, err := vendors.NewService(conn)
	if err != nil {
		return routes.Deps{}, err
	}
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	cartSvc, err := cart.NewService(cart.NewRepository(conn), dbClient, ledger)
	if err != nil {
		return routes.Deps{}, err
	}
	addressSvc, err := address.NewService(conn, dbClient)
	if err != nil {
		return routes.Deps{}, err
	}

	ordersSvc, err := orders.NewService(orders.Deps{
		Repo:           orders.NewRepository(conn),
		Tx:             dbClient,
		Inventory:      ledger,
		Outbox:         emitter,
		Audit:          auditSvc,
		Vendors:        vendorSvc,
		Pricing:        orders.PricingFromConfig(cfg.Checkout),
		NumberAttempts: cfg.Checkout.OrderNumberAttempts,
		Metrics:        lifecycle,
		Logger:         logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	gateway, err := razorpay.NewClient(cfg.Payments.KeyID, cfg.Payments.KeySecret,
		razorpay.WithBaseURL(cfg.Payments.BaseURL),
		razorpay.WithTimeout(cfg.Payments.Timeout),
	)
	if err != nil {
		return routes.Deps{}, err
	}
	signer, err := razorpay.NewSigner(cfg.Payments.KeySecret)
	if err != nil {
		return routes.Deps{}, err
	}
	paymentsSvc, err := payments.NewService(payments.Deps{
		Repo:        payments.NewRepository(conn),
		Tx:          dbClient,
		Gateway:     gateway,
		Verifier:    signer,
		Cart:        cartSvc,
		ClearPolicy: cfg.Checkout.CartClearPolicy,
		Currency:    cfg.Payments.Currency,
		Outbox:      emitter,
		Audit:       auditSvc,
		Metrics:     lifecycle,
		Failures:    lifecycle,
		Logger:      logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	refundsSvc, err := refunds.NewService(refunds.Deps{
		Repo:            refunds.NewRepository(conn),
		Tx:              dbClient,
		Outbox:          emitter,
		Audit:           auditSvc,
		WindowDays:      cfg.Refunds.WindowDays,
		MinReasonLength: cfg.Refunds.MinReasonLength,
		Metrics:         lifecycle,
		Logger:          logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		Access:   accessSvc,
		Audit:    auditSvc,
		Address:  addressSvc,
		Cart:     cartSvc,
		Orders:   ordersSvc,
		Payments: paymentsSvc,
		Refunds:  refundsSvc,
	}, nil
}
