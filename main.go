package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// main is the entry point for the application.
// It initializes the core application logic, builds the CLI interface,
// and executes the command provided by the user.
func main() {
	// A signal cancels the context, shutting the web server down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create the core application object which contains the business logic.
	application := New()

	// Build the CLI command structure, injecting the application logic.
	cmd := BuildCLI(application)

	// Run the CLI, passing command-line arguments.
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
