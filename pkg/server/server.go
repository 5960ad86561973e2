// Package server wires the runtime every service shares: configuration,
// logging, metrics, storage handles, tracing, the middleware chain and
// graceful shutdown. Service mains build their domain on top of an App.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/gurulk/platform/pkg/authclient"
	"github.com/gurulk/platform/pkg/config"
	"github.com/gurulk/platform/pkg/httputil"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/observability"
)

// dbStatsInterval is how often the connection pool gauges refresh
const dbStatsInterval = 15 * time.Second

// App is the assembled runtime for one service.
type App struct {
	Cfg      *config.Config
	Logger   *observability.Logger
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	DB       *sql.DB
	Redis    *redis.Client
	Router   *mux.Router

	providers *observability.OTelProviders
	onClose   []observability.ShutdownFunc
}

// New builds the shared runtime for the named service: loads config,
// opens Postgres (and Redis when enabled), initializes tracing and
// prepares the router with the base middleware chain plus health and
// metrics endpoints.
func New(service string) (*App, error) {
	cfg, err := config.LoadConfig(service)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", service)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			// Redis only backs the validation cache; start degraded
			logger.WithError(err).Warn("redis unreachable at startup")
		}
	}

	providers, err := observability.InitOTel(context.Background(), observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing tracing: %w", err)
	}

	router := mux.NewRouter()
	router.Use(
		mux.MiddlewareFunc(httputil.RecoveryMiddleware),
		mux.MiddlewareFunc(httputil.RequestIDMiddleware),
		mux.MiddlewareFunc(httputil.CORSMiddleware(cfg.Server.AllowedOrigins)),
		mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(metrics)),
	)

	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(db, redisClient))
	router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet).Name("ops.metrics")

	return &App{
		Cfg:       cfg,
		Logger:    logger,
		Registry:  registry,
		Metrics:   metrics,
		DB:        db,
		Redis:     redisClient,
		Router:    router,
		providers: providers,
	}, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// Guard installs the authentication gate and the route policy table on
// the router. Health and metrics routes stay public; a policy override
// file from configuration is merged in when present.
func (a *App) Guard(validator middleware.TokenValidator, policies map[string]middleware.Policy) error {
	merged := map[string]middleware.Policy{
		"ops.health":       middleware.Public(),
		"ops.health_live":  middleware.Public(),
		"ops.health_ready": middleware.Public(),
		"ops.metrics":      middleware.Public(),
	}
	for name, policy := range policies {
		merged[name] = policy
	}

	table := middleware.NewPolicyTable(merged)
	if a.Cfg.Server.PolicyFile != "" {
		if err := table.LoadOverrides(a.Cfg.Server.PolicyFile); err != nil {
			return fmt.Errorf("loading policy overrides: %w", err)
		}
		a.Logger.WithField("file", a.Cfg.Server.PolicyFile).Info("route policy overrides loaded")
	}

	a.Router.Use(
		mux.MiddlewareFunc(middleware.Authenticate(validator, a.Logger)),
		table.Middleware(a.Logger),
	)
	return nil
}

// AuthClient builds the remote validation client, caching positive
// results in memory and in Redis when available.
func (a *App) AuthClient() (*authclient.Client, error) {
	cache, err := authclient.NewValidationCache(
		a.Cfg.AuthClient.CacheSize, a.Cfg.AuthClient.CacheTTL, a.Redis, a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("building validation cache: %w", err)
	}

	return authclient.NewClient(a.Cfg.AuthClient.BaseURL, a.Logger,
		authclient.WithTimeout(a.Cfg.AuthClient.RequestTimeout),
		authclient.WithCache(cache),
		authclient.WithMetrics(a.Metrics),
	), nil
}

// OnShutdown registers a function to run during graceful shutdown.
func (a *App) OnShutdown(fn observability.ShutdownFunc) {
	a.onClose = append(a.onClose, fn)
}

// Run serves HTTP until a termination signal arrives, then drains the
// server and closes everything registered on the App.
func (a *App) Run() error {
	handler := http.Handler(a.Router)
	if a.Cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, a.Cfg.Service)
	}

	srv := &http.Server{
		Addr:         a.Cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  a.Cfg.Server.ReadTimeout,
		WriteTimeout: a.Cfg.Server.WriteTimeout,
		IdleTimeout:  a.Cfg.Server.IdleTimeout,
	}

	manager := observability.NewShutdownManager(a.Logger, srv, a.Cfg.Server.ShutdownTimeout)
	for _, fn := range a.onClose {
		manager.RegisterShutdownFunc(fn)
	}
	manager.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, a.providers, a.Logger)
	})
	manager.RegisterShutdownFunc(func(context.Context) error {
		if a.Redis != nil {
			a.Redis.Close()
		}
		return a.DB.Close()
	})

	statsDone := make(chan struct{})
	go a.collectDBStats(statsDone)
	manager.RegisterShutdownFunc(func(context.Context) error {
		close(statsDone)
		return nil
	})

	go func() {
		a.Logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.WithError(err).Error("HTTP server failed")
		}
	}()

	return manager.WaitForShutdown()
}

func (a *App) collectDBStats(done <-chan struct{}) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := a.DB.Stats()
			a.Metrics.DBConnectionsActive.Set(float64(stats.InUse))
			a.Metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
