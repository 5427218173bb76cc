// Command intakectl is the operator CLI for the school intake service: replay payloads, preview
// summaries, mint admin tokens and maintain the run ledger and folder cache.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/school-intake-api/pkg/config"
	"github.com/noah-isme/school-intake-api/pkg/logger"
)

var (
	// Global flags
	verbose bool
	timeout time.Duration

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "intakectl",
	Short:         "Operate the school intake service",
	Long:          "intakectl runs intake operations against the same configuration as the API server (.env and environment).",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		loaded.Log.Format = "console"
		cfg = loaded

		log, err = logger.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext bounds a command by the global timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
