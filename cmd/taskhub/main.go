package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/taskhub/pkg/activity"
	"github.com/platinummonkey/taskhub/pkg/api"
	"github.com/platinummonkey/taskhub/pkg/auth"
	"github.com/platinummonkey/taskhub/pkg/config"
	"github.com/platinummonkey/taskhub/pkg/httputil"
	"github.com/platinummonkey/taskhub/pkg/identity"
	"github.com/platinummonkey/taskhub/pkg/middleware"
	"github.com/platinummonkey/taskhub/pkg/observability"
	"github.com/platinummonkey/taskhub/pkg/prediction"
	"github.com/platinummonkey/taskhub/pkg/projects"
	"github.com/platinummonkey/taskhub/pkg/rbac"
	"github.com/platinummonkey/taskhub/pkg/sprints"
	"github.com/platinummonkey/taskhub/pkg/sso"
	"github.com/platinummonkey/taskhub/pkg/store"
	"github.com/platinummonkey/taskhub/pkg/tasks"
	"github.com/platinummonkey/taskhub/pkg/workers"
	"github.com/platinummonkey/taskhub/pkg/workspaces"
)

const roleCacheSize = 64

func main() {
	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
	observability.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.WithError(err).Error("taskhub exited")
		os.Exit(1)
	}
}

func run(logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Observability.Level())

	if path := os.Getenv("TASKHUB_CONFIG_FILE"); path != "" {
		go func() {
			if err := config.WatchFile(ctx, path, logger, config.LogLevelReloader(logger)); err != nil {
				logger.WithError(err).Warn("Config file watching disabled")
			}
		}()
	}

	otelProviders, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if err := store.RunMigrations(ctx, db); err != nil {
		db.Close()
		return err
	}
	if err := rbac.SeedRoles(ctx, db); err != nil {
		db.Close()
		return err
	}
	logger.WithField("driver", cfg.Database.Driver).Info("Database ready")

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			db.Close()
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		opts.PoolSize = cfg.Redis.PoolSize
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, continuing without realtime push")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	publisher := newPublisher(cfg, db, rdb, metrics)
	handler, limiter, err := newAPI(ctx, cfg, db, rdb, publisher, metrics)
	if err != nil {
		db.Close()
		return err
	}

	router := handler.Router()
	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(db, rdb))
	if metrics != nil {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}

	chain := httputil.Chain(
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.CORSMiddleware(cfg.Server.AllowedOrigins),
		observability.HTTPMetricsMiddleware(metrics),
		limiter.Handler,
	)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      otelhttp.NewHandler(chain(router), "taskhub"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	if rdb != nil {
		shutdown.Register("redis", func(context.Context) error { return rdb.Close() })
	}
	shutdown.Register("otel", otelProviders.Shutdown)
	shutdown.Register("activity fan-out", publisher.Wait)

	if metrics != nil {
		go reportDBStats(ctx, db, metrics)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("Starting taskhub API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			shutdown.Shutdown()
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return shutdown.Shutdown()
	}
}

func newPublisher(cfg *config.Config, db *sql.DB, rdb *redis.Client, metrics *observability.Metrics) *activity.Publisher {
	sinks := []activity.Sink{
		activity.NewLogSink(db),
		activity.NewNotificationSink(db, rdb),
	}
	if cfg.Webhook.URL != "" {
		client := &http.Client{
			Timeout:   cfg.Webhook.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
		sinks = append(sinks, activity.NewWebhookSink(cfg.Webhook.URL, cfg.Webhook.Secret, client))
	}
	return activity.NewPublisher(metrics, sinks...)
}

func newAPI(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client, events activity.Emitter, metrics *observability.Metrics) (*api.Server, *middleware.APIRateLimit, error) {
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}
	roles, err := rbac.NewStore(db, roleCacheSize)
	if err != nil {
		return nil, nil, err
	}

	predictor := prediction.NewClient(cfg.Prediction.URL, cfg.Prediction.Timeout, metrics)
	workspaceSvc := workspaces.NewService(db, roles, events, metrics)
	identitySvc := identity.NewService(db, workspaceSvc, metrics)

	providers, err := sso.NewProviders(ctx, cfg.OAuth)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure external logins: %w", err)
	}
	var ssoHandlers *sso.Handlers
	if len(providers) > 0 {
		ssoHandlers = sso.NewHandlers(providers, identitySvc, tokens, cfg.Server.FrontendURL)
	}

	var loginLimiter *middleware.DistributedRateLimiter
	if rdb != nil {
		loginLimiter = middleware.NewDistributedRateLimiter(rdb, cfg.Redis.LoginAttempts, cfg.Redis.LoginWindow, "taskhub:login")
	}

	limiter := middleware.NewAPIRateLimit(tokens, middleware.SessionLimits, middleware.AnonymousLimits)
	limiter.Start(ctx)

	server := api.NewServer(api.Config{
		Identity:     identitySvc,
		Workspaces:   workspaceSvc,
		Projects:     projects.NewService(db, predictor, events, metrics),
		Sprints:      sprints.NewService(db, events, metrics),
		Tasks:        tasks.NewService(db, predictor, events, metrics),
		Activity:     activity.NewService(db),
		Workers:      workers.NewService(db, events, metrics),
		Evaluator:    rbac.NewEvaluator(db, roles, metrics),
		Tokens:       tokens,
		SSO:          ssoHandlers,
		LoginLimiter: loginLimiter,
	})
	return server, limiter, nil
}

func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		}
	}
}
