package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/j-veylop/cf-usage-dashboard/internal/api"
	"github.com/j-veylop/cf-usage-dashboard/internal/logger"
	"github.com/j-veylop/cf-usage-dashboard/internal/services"
	"github.com/j-veylop/cf-usage-dashboard/internal/stats"
	"github.com/j-veylop/cf-usage-dashboard/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(verbose *bool) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and run the pre-warm schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withManager(ctx, *verbose, func(mgr *services.Manager) error {
				cfg := mgr.Config()
				if listen != "" {
					cfg.ListenAddr = listen
				}
				gin.SetMode(cfg.GinMode)

				stats.BuildInfo.WithLabelValues(version.GetVersion(), version.GetCommit(), version.GetDate()).Set(1)
				if err := prometheus.Register(mgr.Collector()); err != nil {
					return fmt.Errorf("failed to register collector: %w", err)
				}
				if err := mgr.Start(ctx); err != nil {
					return err
				}

				return serve(ctx, &http.Server{
					Addr:              cfg.ListenAddr,
					Handler:           api.NewEngine(mgr),
					ReadHeaderTimeout: 10 * time.Second,
				})
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides LISTEN_ADDR)")
	return cmd
}

// serve runs srv until ctx is cancelled, then drains open requests.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
