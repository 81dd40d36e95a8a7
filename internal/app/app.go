package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/crystalbeauty/internal/backend"
	"github.com/utafrali/crystalbeauty/internal/bus"
	"github.com/utafrali/crystalbeauty/internal/cart"
	"github.com/utafrali/crystalbeauty/internal/checkout"
	"github.com/utafrali/crystalbeauty/internal/config"
	"github.com/utafrali/crystalbeauty/internal/event"
	handler "github.com/utafrali/crystalbeauty/internal/handler/http"
	"github.com/utafrali/crystalbeauty/internal/identity"
	"github.com/utafrali/crystalbeauty/internal/session"
	"github.com/utafrali/crystalbeauty/internal/storage"
	"github.com/utafrali/crystalbeauty/internal/storage/memory"
	redisstore "github.com/utafrali/crystalbeauty/internal/storage/redis"
	"github.com/utafrali/crystalbeauty/internal/wishlist"
	"github.com/utafrali/crystalbeauty/pkg/database"
	"github.com/utafrali/crystalbeauty/pkg/health"
	"github.com/utafrali/crystalbeauty/pkg/httpclient"
	pkgkafka "github.com/utafrali/crystalbeauty/pkg/kafka"
	"github.com/utafrali/crystalbeauty/pkg/middleware"
	"github.com/utafrali/crystalbeauty/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rdb            *redis.Client
	producer       *pkgkafka.Producer
	relay          *event.Relay
	detachRelay    func()
	wishlist       *wishlist.Store
	events         *handler.EventsHandler
	tracerShutdown func(context.Context) error
	httpServer     *http.Server
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Tracing. Propagators are installed even when export is off.
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler()

	// Client-state storage.
	st, err := a.openStorage(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	// Identity.
	tokens := identity.FromRequest
	if cfg.IdentitySource == config.IdentityStorage {
		tokens = identity.FromStorage(st)
	}
	resolver := identity.NewResolver(tokens)

	changes := bus.New(logger)

	// Remote backend behind retries and a circuit breaker.
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.BackendTimeout
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("storefront-backend"),
		logger,
	).WithFallback(backend.CircuitOpenFallback)
	api := backend.NewClient(breaker, cfg.BackendURL, tokens, logger)

	// Stores and services.
	cartStore := cart.NewStore(st, resolver, changes, logger)
	a.wishlist = wishlist.NewStore(st, resolver, changes, api, api, logger,
		wishlist.WithSyncTimeout(cfg.WishlistSyncTimeout))
	checkoutService := checkout.NewService(cartStore, api, resolver, changes, logger)

	var sessionOpts []session.Option
	if cfg.IdentitySource == config.IdentityStorage {
		sessionOpts = append(sessionOpts, session.WithTokenStorage(st))
	}
	sessionService := session.NewService(api, resolver, changes, logger, sessionOpts...)

	// Kafka relay for change notifications.
	if cfg.KafkaEnabled() {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.relay = event.NewRelay(a.producer, resolver, logger)
		a.detachRelay = a.relay.Attach(changes)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka relay enabled", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.events = handler.NewEventsHandler(changes, resolver, cartStore, a.wishlist, cfg.CORSAllowedOrigins, logger)

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(handler.RouterConfig{
		Cart:           cartStore,
		Wishlist:       a.wishlist,
		Checkout:       checkoutService,
		Catalog:        api,
		Session:        sessionService,
		Identity:       resolver,
		Events:         a.events,
		Health:         healthHandler,
		Logger:         logger,
		CORS:           cors,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

func (a *App) openStorage(ctx context.Context, h *health.Handler) (storage.Storage, error) {
	if a.cfg.StorageDriver != config.StorageRedis {
		a.logger.Info("using in-memory client-state storage")
		return memory.New(), nil
	}

	rcfg := database.DefaultRedisConfig()
	rcfg.Addr = a.cfg.RedisAddr
	rcfg.Password = a.cfg.RedisPass
	rcfg.DB = a.cfg.RedisDB
	rdb, err := database.NewRedisClient(ctx, rcfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.rdb = rdb
	a.logger.Info("connected to Redis",
		slog.String("addr", a.cfg.RedisAddr),
		slog.Int("db", a.cfg.RedisDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, rdb, serviceName); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			a.logger.Warn("failed to register redis pool metrics", slog.String("error", err.Error()))
		}
	}
	database.SetSlowCommandLogging(a.cfg.RedisSlowThreshold, a.logger)

	h.RegisterCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	return redisstore.New(rdb,
		redisstore.WithPrefix(a.cfg.StorageKeyPrefix),
		redisstore.WithTTL(a.cfg.StorageTTL),
	), nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components. Pending wishlist mirror calls and
// relayed events are allowed to finish before their clients close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.events.CloseAll()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.wishlist.Wait()

	if a.relay != nil {
		a.detachRelay()
		a.relay.Wait()
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
