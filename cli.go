package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Applicator defines the interface for the core application logic.
// This allows the CLI to be tested independently of the main app implementation.
type Applicator interface {
	Serve(ctx context.Context, cfgPath string) error
	Sync(ctx context.Context, cfgPath string) error
	Snapshot(ctx context.Context, cfgPath string) error
}

// BuildCLI creates the full CLI command structure for the application.
// It injects the core application logic (the Applicator) into the command actions.
func BuildCLI(app Applicator) *cli.Command {

	// The config flag is common across all commands.
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config.yaml",
		Usage:   "path to the configuration file",
	}

	serveCmd := &cli.Command{
		Name:  "serve",
		Usage: "Start the budget dashboard web server",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Serve(ctx, c.String("config"))
		},
	}

	syncCmd := &cli.Command{
		Name:  "sync",
		Usage: "Fetch and save budget, category, payee, account and transaction data",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Sync(ctx, c.String("config"))
		},
	}

	snapshotCmd := &cli.Command{
		Name:    "snapshot",
		Usage:   "Record a balance history snapshot for each account",
		Aliases: []string{"snap"},
		Flags:   []cli.Flag{configFlag},
		Action: func(ctx context.Context, c *cli.Command) error {
			return app.Snapshot(ctx, c.String("config"))
		},
	}

	// Assemble the root command.
	rootCmd := &cli.Command{
		Name:     "budgetdash",
		Usage:    "A personal budget dashboard synced from the YNAB API",
		Commands: []*cli.Command{serveCmd, syncCmd, snapshotCmd},
	}

	return rootCmd
}
