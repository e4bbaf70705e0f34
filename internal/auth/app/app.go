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

	"github.com/aussiebroadwan/quackwell/internal/auth/federation"
	httpapi "github.com/aussiebroadwan/quackwell/internal/auth/http"
	"github.com/aussiebroadwan/quackwell/internal/auth/observability"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/aussiebroadwan/quackwell/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/quackwell/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quackwell/pkg/cryptox"
	"github.com/aussiebroadwan/quackwell/pkg/httpx"
	"github.com/aussiebroadwan/quackwell/pkg/jwtx"
	"github.com/aussiebroadwan/quackwell/pkg/mailx"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application encapsulates the service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	registry *prometheus.Registry
	metrics  *observability.Metrics
	mail     *mailx.ReliableSender

	// Services
	authService         *service.AuthService
	userService         *service.UserService
	todoService         *service.TodoService
	authorizer          *service.Authorizer
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg Config) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "quackwell",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
}

// New creates a new Application instance with all dependencies initialized.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg),
	}

	if err := EnsureSecrets(&app.cfg, app.logger); err != nil {
		return nil, err
	}

	db, err := OpenStore(ctx, app.cfg.DB, app.logger)
	if err != nil {
		return nil, err
	}
	app.db = db

	app.registry = observability.NewRegistry()
	app.metrics = observability.NewMetrics(app.registry)

	if err := app.initServices(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Close releases the database for callers that serve Handler themselves
// instead of calling Run.
func (app *Application) Close() error { return app.db.Close() }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("quackwell starting", "port", app.cfg.Port, "version", BuildVersion, "database", app.cfg.DB.Driver)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			_ = app.db.Close()
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down quackwell...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("quackwell stopped")
	return nil
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(ctx context.Context, cfg DBConfig, logger *slog.Logger) (store.Store, error) {
	var (
		db  store.Store
		err error
	)

	switch cfg.Driver {
	case "postgres":
		db, err = postgres.Open(ctx, cfg.DSN, postgres.ConnectOptions{})
	case "sqlite":
		db, err = sqlite.NewStore(fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.DSN))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	logger.Info("database migrations applied successfully", "driver", cfg.Driver)
	return db, nil
}

// NewMailer builds the reset mailer. Without an SMTP host mail is logged
// rather than sent.
func NewMailer(cfg MailConfig, logger *slog.Logger) (*mailx.ResetMailer, *mailx.ReliableSender) {
	var sender mailx.Sender = mailx.LogSender{Logger: logger}
	from := cfg.From
	if cfg.Host != "" {
		sender = mailx.NewSMTPSender(mailx.SMTPConfig{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Username:    cfg.Username,
			Password:    cfg.Password,
			ImplicitTLS: cfg.Secure,
			Timeout:     cfg.Timeout,
		})
	} else if from == "" {
		from = "no-reply@localhost"
	}

	reliable := mailx.NewReliableSender(sender, mailx.ReliableOptions{AttemptLimit: cfg.Timeout})
	return &mailx.ResetMailer{Sender: reliable, From: from}, reliable
}

// NewAuthService wires the token codecs and collaborators into an
// AuthService.
func NewAuthService(cfg Config, db store.Store, mailer service.Mailer, metrics *observability.Metrics) (*service.AuthService, error) {
	access, err := jwtx.NewCodec(jwtx.KindAccess, cfg.JWT.AccessSecret, cfg.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := jwtx.NewCodec(jwtx.KindRefresh, cfg.JWT.RefreshSecret, cfg.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}
	reset, err := jwtx.NewCodec(jwtx.KindReset, cfg.JWT.ResetSecret, cfg.JWT.ResetTTL)
	if err != nil {
		return nil, err
	}

	return &service.AuthService{
		Store:        db,
		Hasher:       cryptox.NewBcrypt(),
		Access:       access,
		Refresh:      refresh,
		Reset:        reset,
		Mailer:       mailer,
		ResetURLBase: cfg.ResetURL,
		Metrics:      metrics,
	}, nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	mailer, reliable := NewMailer(app.cfg.Mail, app.logger)
	app.mail = reliable

	auth, err := NewAuthService(app.cfg, app.db, mailer, app.metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize token codecs: %w", err)
	}
	app.authService = auth

	app.userService = &service.UserService{Store: app.db}
	app.todoService = &service.TodoService{Store: app.db}
	app.authorizer = service.NewAuthorizer(auth.Access, auth, app.metrics)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() error {
	sealer, err := cryptox.NewSealer(app.cfg.StateSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize oauth state sealer: %w", err)
	}

	google := federation.NewGoogle(federation.GoogleConfig{
		ClientID:     app.cfg.Google.ClientID,
		ClientSecret: app.cfg.Google.ClientSecret,
		CallbackURL:  app.cfg.Google.CallbackURL,
	})
	if google.Enabled() {
		app.logger.Info("google sign-in enabled")
	}

	deps := httpapi.Deps{
		Auth:        app.authService,
		Users:       app.userService,
		Todos:       app.todoService,
		Authorizer:  app.authorizer,
		Google:      google,
		State:       federation.NewStateGuard(sealer),
		Store:       app.db,
		Metrics:     app.metrics,
		Cookies:     httpx.CookieOptions{Secure: app.cfg.Cookies.Secure, Domain: app.cfg.Cookies.Domain},
		RateLimits:  app.cfg.RateLimit,
		FrontendURL: app.cfg.FrontendURL,
		MailState:   app.mail.State,
		Version:     BuildVersion,
		Logger:      app.logger,
	}
	if app.cfg.Metrics {
		deps.Registry = app.registry
	}

	router := httpapi.NewRouter(deps)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
