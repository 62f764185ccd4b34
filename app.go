package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"budgetdash/apiclients/ynab"
	"budgetdash/config"
	"budgetdash/db"
	"budgetdash/internal/mounts"
	"budgetdash/sync"
	"budgetdash/web"

	charmlog "github.com/charmbracelet/log"
)

// App is the central orchestrator for the application's business logic. It
// coordinates configuration, the budget service client, the database and the
// web server for the CLI commands.
type App struct{}

// New creates and returns a new App instance.
func New() *App {
	return &App{}
}

// environment holds the assembled components shared by the commands.
type environment struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *db.DB
	syncer *sync.Syncer
}

// newEnvironment loads configuration and wires the logger, database, budget
// service client and syncer together. Callers should Close the environment
// when done.
func newEnvironment(ctx context.Context, cfgPath string) (*environment, error) {

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
	}))

	sqlFS, err := mounts.NewFileMount("sql", db.SQLEmbeddedFS, "")
	if err != nil {
		return nil, fmt.Errorf("sql file mount error: %w", err)
	}
	database, err := db.NewConnection(cfg.DatabasePath, sqlFS, logger)
	if err != nil {
		return nil, fmt.Errorf("database setup error: %w", err)
	}

	client := ynab.NewAPIClient(ctx, cfg.YNAB.AccessToken, cfg.YNAB.BaseURL, logger)
	syncer := sync.NewSyncer(client, database, logger, cfg.DataStartDateStr)

	return &environment{
		cfg:    cfg,
		log:    logger,
		db:     database,
		syncer: syncer,
	}, nil
}

// Close releases the environment's database connection.
func (e *environment) Close() error {
	return e.db.Close()
}

// Serve starts the web dashboard, blocking until the server exits or the
// context is cancelled.
func (a *App) Serve(ctx context.Context, cfgPath string) error {

	env, err := newEnvironment(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	// The static and template mounts use the embedded copies unless a disk
	// path is configured, as used for development.
	staticFS, err := mounts.NewFileMount("static", web.StaticEmbeddedFS, env.cfg.Web.StaticPath)
	if err != nil {
		return fmt.Errorf("static file mount error: %w", err)
	}
	templatesFS, err := mounts.NewFileMount("templates", web.TemplatesEmbeddedFS, env.cfg.Web.TemplatesPath)
	if err != nil {
		return fmt.Errorf("templates file mount error: %w", err)
	}

	webApp, err := web.New(env.log, env.cfg, env.db, env.syncer, staticFS, templatesFS)
	if err != nil {
		return err
	}
	return webApp.StartServer(ctx)
}

// Sync runs a full synchronization of the configured budget.
func (a *App) Sync(ctx context.Context, cfgPath string) error {

	env, err := newEnvironment(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	return env.syncer.SyncAll(ctx, env.cfg.YNAB.BudgetID)
}

// Snapshot records a balance history entry for each account of the
// configured budget without running a full synchronization.
func (a *App) Snapshot(ctx context.Context, cfgPath string) error {

	env, err := newEnvironment(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	return env.syncer.SnapshotBalances(ctx, env.cfg.YNAB.BudgetID)
}
