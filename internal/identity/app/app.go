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

	"github.com/aussiebroadwan/edoras/internal/identity/health"
	httpapi "github.com/aussiebroadwan/edoras/internal/identity/http"
	"github.com/aussiebroadwan/edoras/internal/identity/secrets"
	"github.com/aussiebroadwan/edoras/internal/identity/service"
	"github.com/aussiebroadwan/edoras/internal/identity/session"
	"github.com/aussiebroadwan/edoras/internal/identity/store"
	"github.com/aussiebroadwan/edoras/internal/identity/store/drivers/postgres"
	"github.com/aussiebroadwan/edoras/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/edoras/internal/identity/validation"
	"github.com/aussiebroadwan/edoras/pkg/cryptox"
	"github.com/aussiebroadwan/edoras/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v1.0.0"

const ServiceName = "edoras-identity"

// Application encapsulates the identity service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time // shared by the services and the session issuer

	// Core dependencies
	db      store.Store
	secrets secrets.Client
	hasher  *cryptox.Hasher
	issuer  *session.Issuer

	// Services
	authService    *service.AuthService
	accountService *service.AccountService
	health         *health.Aggregator

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		now: time.Now,
		logger: slogx.New(slogx.Config{
			Service: ServiceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initSecrets(ctx); err != nil {
		return nil, err
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	if err := app.initSecurity(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHealth()
	app.initHTTP()

	return app, nil
}

// Handler exposes the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
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

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

// initSecrets picks the secret store and fills empty secrets from it.
func (app *Application) initSecrets(ctx context.Context) error {
	if app.cfg.VaultAddr == "" {
		app.secrets = secrets.Static{
			"SECRET_KEY":     app.cfg.SecretKey,
			"JWT_SECRET_KEY": app.cfg.JWTSecretKey,
		}
		return nil
	}

	v, err := secrets.NewVault(secrets.VaultConfig{
		Address: app.cfg.VaultAddr,
		Token:   app.cfg.VaultToken,
		Mount:   app.cfg.VaultMount,
		Path:    app.cfg.VaultSecretPath,
		Timeout: app.cfg.StoreTimeout,
	})
	if err != nil {
		return err
	}
	app.secrets = v

	ctx, cancel := context.WithTimeout(ctx, app.cfg.StoreTimeout)
	defer cancel()

	if err := secrets.Fill(ctx, v, map[string]*string{
		"SECRET_KEY":     &app.cfg.SecretKey,
		"JWT_SECRET_KEY": &app.cfg.JWTSecretKey,
	}); err != nil {
		return fmt.Errorf("failed to read secrets from vault: %w", err)
	}

	app.logger.Info("secrets loaded from vault", "addr", app.cfg.VaultAddr, "path", app.cfg.VaultMount+"/"+app.cfg.VaultSecretPath)
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "postgres":
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL, postgres.DefaultPool)
	default:
		db, err = sqlite.NewStore(app.cfg.DatabaseFile)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initSecurity loads the pepper and builds the hasher and session issuer.
func (app *Application) initSecurity() error {
	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper)

	key := []byte(app.cfg.JWTSecretKey)
	if len(key) == 0 {
		if app.cfg.IsProduction() {
			return errors.New("JWT_SECRET_KEY is required in production")
		}

		// Tokens signed with an ephemeral key do not survive a restart.
		ephemeral, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return err
		}
		key = []byte(ephemeral)
		app.logger.Warn("JWT_SECRET_KEY not configured, using an ephemeral signing key")
	}

	issuer, err := session.NewIssuer(key, app.cfg.JWTIssuer, app.cfg.AccessTokenTTL, session.WithClock(app.now))
	if err != nil {
		return fmt.Errorf("failed to initialize session issuer: %w", err)
	}
	app.issuer = issuer

	app.logger.Info("session issuer ready", "issuer", app.cfg.JWTIssuer, "ttl", issuer.TTL())
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	v := validation.New()

	app.authService = &service.AuthService{
		Store:        app.db,
		Validator:    v,
		Hasher:       app.hasher,
		Tokens:       app.issuer,
		StoreTimeout: app.cfg.StoreTimeout,
		Now:          app.now,
	}
	app.accountService = &service.AccountService{
		Store:        app.db,
		Validator:    v,
		Hasher:       app.hasher,
		StoreTimeout: app.cfg.StoreTimeout,
		Now:          app.now,
	}
}

// initHealth registers the database, secret store and configuration probes.
func (app *Application) initHealth() {
	app.health = health.NewAggregator(health.Meta{
		Service:     ServiceName,
		Version:     BuildVersion,
		Environment: app.cfg.Env,
	}, app.cfg.HealthProbeTimeout).
		Add(httpapi.DatabaseProbe, health.Database(app.db)).
		Add("keyvault", app.secrets).
		Add("configuration", health.Configuration(
			health.Requirement{Name: "SECRET_KEY", Value: app.cfg.SecretKey},
			health.Requirement{Name: "JWT_SECRET_KEY", Value: app.cfg.JWTSecretKey},
		))
}

// initHTTP wires the router and the server
func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(app.logger, httpapi.Limits{
		Strict:   app.cfg.StrictLimit,
		Moderate: app.cfg.ModerateLimit,
	})
	app.router.AuthService = app.authService
	app.router.AccountService = app.accountService
	app.router.Health = app.health
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
