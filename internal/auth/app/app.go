package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/schoolgate/internal/auth/http"
	"github.com/aussiebroadwan/schoolgate/internal/auth/limiter"
	"github.com/aussiebroadwan/schoolgate/internal/auth/metrics"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/schoolgate/pkg/cryptox"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
	"github.com/aussiebroadwan/schoolgate/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	keyManager *jwtx.KeyManager
	rotator    *jwtx.PersistentKeyManager // nil in ephemeral mode
	redis      *redis.Client              // nil without REDIS_ADDR
	metrics    *metrics.Metrics

	// Services
	notifier            *service.AsyncNotifier
	credentials         *service.CredentialVerifier
	sessions            *service.SessionIssuer
	resets              *service.ResetTokenService
	throttle            *limiter.ResetThrottle
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router

	sink service.Notifier
}

// Option customizes an Application before its services are built.
type Option func(*Application)

// WithNotifier replaces the log notifier as the delivery sink. Deliveries
// still go through the async queue.
func WithNotifier(n service.Notifier) Option {
	return func(app *Application) { app.sink = n }
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := httpx.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	// Database first; persistent keys live in it
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	km, rotator, err := InitAuthKeys(ctx, app.cfg, app.db, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize JWT keys: %w", err)
	}
	app.keyManager = km
	app.rotator = rotator

	if err := app.initServices(); err != nil {
		if app.notifier != nil {
			app.notifier.Close()
		}
		if app.redis != nil {
			_ = app.redis.Close()
		}
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Handler is the fully wired HTTP handler, for serving without Run.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	// Drain queued notifications before the store goes away.
	app.notifier.Close()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DBDriver {
	case "postgres":
		db, err = postgres.NewStore(app.cfg.DatabaseDSN)
	default:
		db, err = sqlite.NewStore(app.cfg.DatabaseDSN)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DBDriver)
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	if app.sink == nil {
		app.sink = &service.LogNotifier{Logger: app.logger, Redact: []string{"reset_link"}}
	}
	app.notifier = service.NewAsyncNotifier(app.sink, 0, 0, app.metrics)

	if app.cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
		})
		app.throttle = limiter.NewResetThrottle(app.redis, limiter.ResetConfig{
			MaxRequests: app.cfg.ResetRequestLimit,
			Window:      app.cfg.ResetRequestWindow,
		})
		app.logger.Info("reset throttle enabled", "redis", app.cfg.RedisAddr)
	}

	resolver := &service.IdentityResolver{Store: app.db}
	hasher := cryptox.Hasher{}

	app.credentials = &service.CredentialVerifier{
		Resolver: resolver,
		Store:    app.db,
		Hasher:   hasher,
		Notifier: app.notifier,
		Policy: service.LockoutPolicy{
			Threshold: app.cfg.LockoutThreshold,
			Window:    app.cfg.LockoutWindow,
		},
		Metrics:              app.metrics,
		ClearAdminMustChange: app.cfg.ClearAdminMustChange,
	}

	app.sessions = &service.SessionIssuer{
		Store:    app.db,
		Keys:     app.keyManager,
		Issuer:   app.cfg.Issuer,
		Audience: []string{app.cfg.Issuer},
		MaxAge:   app.cfg.SessionMaxAge,
	}

	app.resets = &service.ResetTokenService{
		Store:          app.db,
		Hasher:         hasher,
		Notifier:       app.notifier,
		Resolver:       resolver,
		Metrics:        app.metrics,
		BaseURL:        app.cfg.ResetBaseURL,
		ApprovalTTL:    app.cfg.ApprovalResetTTL,
		SelfServiceTTL: app.cfg.SelfServiceResetTTL,
	}
	if app.throttle != nil {
		app.resets.Throttle = app.throttle
	}

	var rotator service.KeyRotator
	if app.rotator != nil {
		rotator = app.rotator
	}
	hk, err := service.NewHousekeepingService(app.db, rotator, app.logger, app.cfg.HousekeepingSchedule)
	if err != nil {
		return err
	}
	app.housekeepingService = hk
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keyManager.KeySet,
		app.keyManager.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Credentials = app.credentials
	router.Sessions = app.sessions
	router.Resets = app.resets
	router.Metrics = app.metrics
	router.AdminToken = app.cfg.AdminToken
	if app.throttle != nil {
		router.Throttle = app.throttle
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
