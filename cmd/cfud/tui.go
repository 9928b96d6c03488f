package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/cf-usage-dashboard/internal/app"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/services"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/tabs/dashboard"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/tabs/history"
	"github.com/j-veylop/cf-usage-dashboard/internal/ui/tabs/info"
)

func newTUICmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal dashboard",
		Long: `Open the terminal dashboard.

Keys:
  1-3, Tab/Shift+Tab  switch between Dashboard, History and Info
  j/k, g/G            select account
  m, a                cycle history metric, toggle history scope
  r                   refresh
  w                   pre-warm now
  t, T                check thresholds, send a test alert
  ?                   toggle help
  q, Ctrl+C           quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), *verbose)
		},
	}
}

func runTUI(ctx context.Context, verbose bool) error {
	// The terminal belongs to the program, so logs go to a file.
	cfg, err := loadConfig(os.Stderr, verbose)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logFile.Close()

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	if err := logger.Init(logFile, level, true); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	mgr, err := services.NewManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			logger.Warn("Error closing services", "error", closeErr)
		}
	}()

	if err := mgr.Start(ctx); err != nil {
		return err
	}

	model := app.NewModel(mgr)
	state := model.GetState()
	model.SetTabs([]app.Tab{
		dashboard.New(state),
		history.New(state),
		info.New(state, cfg),
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			p.Send(app.QuitMsg{})
		case <-ctx.Done():
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
