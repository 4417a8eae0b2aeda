package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenantkit/tenantkit/internal/tenancy/ac"
	"github.com/tenantkit/tenantkit/internal/tenancy/notify"
	"github.com/tenantkit/tenantkit/internal/tenancy/service"
	"github.com/tenantkit/tenantkit/internal/tenancy/store"
	"github.com/tenantkit/tenantkit/internal/tenancy/store/drivers/sqlite"
	"github.com/tenantkit/tenantkit/pkg/invitetoken"
	"github.com/tenantkit/tenantkit/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Collaborators are the integration points the embedding system supplies.
// Identity and Sessions are required for the organization and invitation
// services; Notifier defaults to logging when nil. Registry carries a custom
// access-control schema and role set (built with ac.NewSchema/NewRole/Merge)
// and defaults to the built-in roles when nil.
type Collaborators struct {
	Identity service.IdentityProvider
	Sessions service.SessionProvider
	Notifier notify.Sender
	Registry *ac.Registry
}

// Application wires the tenancy engine: store, access control registry,
// services and the invitation sweeper.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	registry *ac.Registry

	organizationService *service.OrganizationService
	invitationService   *service.InvitationService
	teamService         *service.TeamService
	sweeperService      *service.SweeperService
}

// New creates an Application with all dependencies initialized.
func New(cfg Config, opts service.Options, collab Collaborators) (*Application, error) {
	registry := collab.Registry
	if registry == nil {
		registry = ac.DefaultRegistry()
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tenancy-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		registry: registry,
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if opts.InvitationExpiresIn <= 0 {
		opts.InvitationExpiresIn = cfg.InvitationTTL
	}
	if cfg.TeamsEnabled {
		opts.Teams.Enabled = true
	}

	if err := app.initServices(opts, collab); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	return app, nil
}

// Run starts the background workers and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.sweeperService.Start()

	app.logger.Info("tenancy service starting", "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown gracefully stops the workers and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down tenancy service...")

	app.sweeperService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("tenancy service stopped")
	return nil
}

// Organizations exposes the organization service to the embedder.
func (app *Application) Organizations() *service.OrganizationService { return app.organizationService }

// Invitations exposes the invitation service to the embedder.
func (app *Application) Invitations() *service.InvitationService { return app.invitationService }

// Teams exposes the team service to the embedder.
func (app *Application) Teams() *service.TeamService { return app.teamService }

// Store exposes the underlying store, e.g. for admin tooling.
func (app *Application) Store() store.Store { return app.db }

// Logger exposes the process logger for context propagation.
func (app *Application) Logger() *slog.Logger { return app.logger }

// initDatabase opens the sqlite database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices(opts service.Options, collab Collaborators) error {
	notifier := collab.Notifier
	if notifier == nil {
		notifier = notify.LogSender{}
	}
	if app.cfg.NotifyPerSecond > 0 {
		notifier = notify.NewThrottled(notifier, app.cfg.NotifyPerSecond, app.cfg.NotifyBurst)
	}

	var tokens *invitetoken.Signer
	if app.cfg.InviteTokenSecret != "" {
		var err error
		tokens, err = invitetoken.NewSigner([]byte(app.cfg.InviteTokenSecret), app.cfg.Issuer)
		if err != nil {
			return fmt.Errorf("failed to initialize invite token signer: %w", err)
		}
	}

	app.organizationService = &service.OrganizationService{
		Store:    app.db,
		Registry: app.registry,
		Sessions: collab.Sessions,
		Options:  opts,
	}
	app.invitationService = &service.InvitationService{
		Store:         app.db,
		Registry:      app.registry,
		Identity:      collab.Identity,
		Notifier:      notifier,
		Tokens:        tokens,
		AcceptBaseURL: app.cfg.AcceptBaseURL,
		Options:       opts,
	}
	app.teamService = &service.TeamService{
		Store:    app.db,
		Registry: app.registry,
		Options:  opts,
	}

	app.sweeperService = service.NewSweeperService(app.db, app.logger, app.cfg.SweepInterval)
	return nil
}
