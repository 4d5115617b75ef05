// Package cmd provides the simcoach CLI commands.
//
// Commands:
//   - login / logout / signup: credential management against the backend
//   - train: interactive training session with the simulated customer
//   - chats / modules / users: paginated listings and management
//   - progress / analytics: training results
//
// Every command builds its own Runtime (config, logger, credential store,
// API client) and tears it down when it returns.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/simcoach/simcoach/internal/rest"
)

var rootCmd = &cobra.Command{
	Use:   "simcoach",
	Short: "simcoach - customer-conversation training from your terminal",
	Long: `simcoach runs chat-based training sessions against an AI-simulated
customer. Trainees pick a module, converse until the scenario is handled,
and receive a score; managers maintain modules and users.

Run "simcoach train <module-id>" to start or resume a session.`,
	SilenceUsage: true,
}

// Execute is the main entry point for the simcoach CLI.
func Execute() error {
	// A .env in the working directory supplements the environment; absence
	// is not an error.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := rootCmd.ExecuteContext(ctx)
	if errors.Is(err, rest.ErrUnauthorized) {
		fmt.Fprintln(os.Stderr, "Your session is no longer valid. Run \"simcoach login\" to sign in again.")
	}
	return err
}
