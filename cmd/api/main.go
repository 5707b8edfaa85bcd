package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/zerymnor-storefront/api/controllers"
	"github.com/angelmondragon/zerymnor-storefront/api/routes"
	"github.com/angelmondragon/zerymnor-storefront/internal/cart"
	"github.com/angelmondragon/zerymnor-storefront/internal/catalog"
	"github.com/angelmondragon/zerymnor-storefront/internal/checkout"
	"github.com/angelmondragon/zerymnor-storefront/internal/orders"
	"github.com/angelmondragon/zerymnor-storefront/pkg/airtable"
	"github.com/angelmondragon/zerymnor-storefront/pkg/config"
	"github.com/angelmondragon/zerymnor-storefront/pkg/db"
	"github.com/angelmondragon/zerymnor-storefront/pkg/instance"
	"github.com/angelmondragon/zerymnor-storefront/pkg/logger"
	"github.com/angelmondragon/zerymnor-storefront/pkg/metrics"
	"github.com/angelmondragon/zerymnor-storefront/pkg/migrate"
	"github.com/angelmondragon/zerymnor-storefront/pkg/redis"
	"github.com/angelmondragon/zerymnor-storefront/pkg/tracing"
)

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server failed", err)
		stop()
		os.Exit(1)
	}
}

// application holds the wired HTTP handler and the resources it owns.
type application struct {
	handler   http.Handler
	catalog   *catalog.Cache
	cartStore string
	closers   []func() error
}

func (a *application) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	app, err := bootstrap(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logg.Error(context.Background(), "error releasing resources", err)
		}
	}()

	addr := ":" + cfg.App.Port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.ID(),
		"cart_backend": app.cartStore,
		"articles":     len(app.catalog.List()),
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server stopped unexpectedly: %w", err)
		}
	case <-ctx.Done():
	}

	logg.Info(serverCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "graceful shutdown failed", err)
	}
	return nil
}

// bootstrap wires storage, the remote store client and the services behind
// the router. On error every resource opened so far is released.
func bootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger) (_ *application, err error) {
	app := &application{cartStore: cfg.Cart.Backend}
	defer func() {
		if err != nil {
			err = multierr.Append(err, app.Close())
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefrontMetrics(registry)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		app.closers = append(app.closers, redisClient.Close)
	}

	var storage cart.Storage
	switch cfg.Cart.Backend {
	case config.CartBackendRedis:
		storage = cart.NewRedisStorage(redisClient, cfg.Cart.TTL)
	case config.CartBackendSQL:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		app.closers = append(app.closers, dbClient.Close)
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, dbClient); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		storage = cart.NewSQLStorage(dbClient.DB())
	case config.CartBackendBolt:
		boltStorage, err := cart.OpenBoltStorage(cfg.Cart.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("open bolt cart storage: %w", err)
		}
		app.closers = append(app.closers, boltStorage.Close)
		storage = boltStorage
	default:
		logg.Warn(ctx, "cart backend is in-memory; carts are lost on restart")
		storage = cart.NewMemoryStorage()
	}

	tracing.Init()

	remote, err := airtable.NewClient(
		cfg.Airtable.Token,
		cfg.Airtable.BaseID,
		airtable.WithHTTPClient(tracing.NewHTTPClient(nil)),
		airtable.WithBaseURL(cfg.Airtable.BaseURL),
		airtable.WithTimeout(cfg.Airtable.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create remote store client: %w", err)
	}

	catalogCache := catalog.NewCache(
		remote,
		cfg.Airtable.ArticlesTable,
		catalog.WithLogger(logg),
		catalog.WithMetrics(storefrontMetrics),
		catalog.WithPlaceholderImage(cfg.Checkout.PlaceholderImage),
	)
	// Startup continues with an empty catalog when the remote store is down.
	_ = catalogCache.Refresh(ctx)
	app.catalog = catalogCache

	engine := checkout.NewEngine(
		remote,
		catalogCache,
		cfg.Airtable.ArticlesTable,
		checkout.WithCompensation(cfg.Checkout.CompensateOnFailure),
		checkout.WithEngineLogger(logg),
		checkout.WithEngineMetrics(storefrontMetrics),
	)

	recorder, err := orders.NewRecorder(remote, cfg.Airtable.OrdersTable, logg, storefrontMetrics)
	if err != nil {
		return nil, fmt.Errorf("create order recorder: %w", err)
	}

	checkoutService, err := checkout.NewService(engine, catalogCache, recorder, logg)
	if err != nil {
		return nil, fmt.Errorf("create checkout service: %w", err)
	}

	articleAdmin, err := catalog.NewAdmin(remote, catalogCache, cfg.Airtable.ArticlesTable, logg)
	if err != nil {
		return nil, fmt.Errorf("create article admin: %w", err)
	}

	readiness := map[string]controllers.Pinger{}
	if pinger, ok := storage.(controllers.Pinger); ok {
		readiness["cart_storage"] = pinger
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	router := routes.NewRouter(
		cfg,
		logg,
		redisClient,
		readiness,
		registry,
		catalogCache,
		cart.NewSessions(storage, catalogCache),
		checkoutService,
		articleAdmin,
	)
	app.handler = tracing.Middleware("storefront-api", "/health", "/metrics")(router)
	return app, nil
}
