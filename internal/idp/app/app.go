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

	"github.com/polarisid/polaris/internal/idp/audit"
	httpapi "github.com/polarisid/polaris/internal/idp/http"
	"github.com/polarisid/polaris/internal/idp/notify"
	"github.com/polarisid/polaris/internal/idp/service"
	"github.com/polarisid/polaris/internal/idp/store"
	"github.com/polarisid/polaris/internal/idp/store/drivers/sqlite"
	"github.com/polarisid/polaris/pkg/jwtx"
	"github.com/polarisid/polaris/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the identity provider together: storage, services,
// collaborators, and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer jwtx.Signer

	sessions     *service.SessionService
	signin       *service.SigninService
	grant        *service.GrantService
	tokens       *service.TokenService
	device       *service.DeviceService
	twoFactor    *service.TwoFactorService
	housekeeping *service.HousekeepingService

	auditDispatcher *audit.Dispatcher

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "polaris-idp",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSigner(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()
	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("identity provider starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown stops the server, workers, and the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity provider...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()
	app.auditDispatcher.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity provider stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied")
	return nil
}

func (app *Application) initSigner() error {
	if app.cfg.SigningKey == "" {
		signer, err := jwtx.NewEphemeralSigner(app.cfg.Algorithm, "primary")
		if err != nil {
			return fmt.Errorf("failed to generate signing key: %w", err)
		}
		app.logger.Warn("using ephemeral signing key; ID tokens will not survive restarts")
		app.signer = signer
		return nil
	}

	pemKey, err := os.ReadFile(app.cfg.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to read signing key: %w", err)
	}
	signer, err := jwtx.NewSigner(app.cfg.Algorithm, "primary", pemKey)
	if err != nil {
		return fmt.Errorf("failed to load signing key: %w", err)
	}
	app.signer = signer
	return nil
}

func (app *Application) initServices() {
	var notifier notify.Notifier
	if app.cfg.NotifyHost != "" {
		notifier = notify.NewHTTPNotifier(app.cfg.NotifyHost, app.cfg.NotifyKey)
	} else {
		notifier = notify.SlogNotifier{Logger: app.logger}
	}

	app.auditDispatcher = audit.NewDispatcher(
		audit.Config{BufferSize: app.cfg.AuditBufferSize},
		audit.SlogSink{Logger: app.logger},
	)

	app.tokens = &service.TokenService{
		Store: app.db,
		TTLs: service.TokenTTLs{
			AuthorizationCode: app.cfg.AuthorizationCodeTTL,
			Access:            app.cfg.AccessTokenTTL,
			Refresh:           app.cfg.RefreshTokenTTL,
			ID:                app.cfg.IDTokenTTL,
			DeviceCode:        app.cfg.DeviceCodeTTL,
		},
	}

	app.sessions = &service.SessionService{Store: app.db, TTL: app.cfg.SessionTTL}

	app.signin = &service.SigninService{
		Store:             app.db,
		Sessions:          app.sessions,
		Notifier:          notifier,
		Audit:             app.auditDispatcher,
		ChallengeTTL:      app.cfg.ChallengeTTL,
		ChallengeCooldown: app.cfg.ChallengeCooldown,
	}

	acl := &service.ACLEvaluator{Store: app.db}
	app.grant = &service.GrantService{
		Store:              app.db,
		Tokens:             app.tokens,
		ACL:                acl,
		Audit:              app.auditDispatcher,
		Signer:             app.signer,
		Issuer:             app.cfg.Issuer,
		SkipConsentClients: app.cfg.SkipConsentClients,
	}

	app.device = &service.DeviceService{
		Store:  app.db,
		Tokens: app.tokens,
		ACL:    acl,
		Audit:  app.auditDispatcher,
	}

	app.twoFactor = &service.TwoFactorService{Store: app.db}

	app.housekeeping = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(BuildVersion, app.db, app.logger)
	app.router.Sessions = app.sessions
	app.router.Signin = app.signin
	app.router.Grant = app.grant
	app.router.Tokens = app.tokens
	app.router.Device = app.device
	app.router.TwoFactor = app.twoFactor
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}
