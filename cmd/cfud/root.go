package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/cf-usage-dashboard/internal/config"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/services"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// Run executes the root command.
func Run() ExitCode {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cfud",
		Short: "Cloudflare usage dashboard",
		Long: `cfud aggregates Cloudflare usage across accounts, compares it with
contracted thresholds and sends Slack alerts when usage reaches 90%.

Credentials are read from CF_API_TOKEN, or CF_API_KEY and CF_API_EMAIL.
A .env file in the current directory or ~/.config/cfud is loaded first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		newServeCmd(&verbose),
		newTUICmd(&verbose),
		newWarmCmd(&verbose),
		newCheckThresholdsCmd(&verbose),
		newConfigCmd(&verbose),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig reads the configuration and points the global logger at w.
func loadConfig(w io.Writer, verbose bool) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if err := logger.Init(w, level, w != os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withManager loads the configuration, opens the store and runs fn with a
// manager that is closed afterwards.
func withManager(ctx context.Context, verbose bool, fn func(*services.Manager) error) error {
	cfg, err := loadConfig(os.Stderr, verbose)
	if err != nil {
		return err
	}

	mgr, err := services.NewManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("Error closing services", "error", closeErr)
		}
	}()

	return fn(mgr)
}
