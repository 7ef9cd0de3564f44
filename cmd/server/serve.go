package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/rental-ledger/api"
	"github.com/warp/rental-ledger/appstate"
	"github.com/warp/rental-ledger/metrics"
)

// ServeCmd runs the HTTP server until SIGINT/SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for active requests to complete (30s timeout)
//  3. Stop the scheduler
//  4. Close database connection
func ServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd, v)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP server port")
	cmd.Flags().Duration("reconcile-interval", 0, "occupancy sweep interval")
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("scheduler.interval", cmd.Flags().Lookup("reconcile-interval"))
	return cmd
}

func serve(parent context.Context, a *app) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := appstate.New(a.log)
	handler := api.NewHandler(a.store, state, a.buckets, a.log)
	if a.cfg.Server.Metrics {
		handler.Metrics = metrics.New(true)
		state.Subscribe(handler.Metrics.ObserveSnapshot)
	}
	state.Subscribe(func(s appstate.Snapshot) {
		a.log.Debug("state refreshed",
			zap.String("source", s.Source),
			zap.Int("occupied_houses", s.OccupiedHouses),
			zap.String("outstanding", s.Outstanding.StringFixed(2)),
		)
	})

	scheduler := api.NewReconciliationScheduler(handler)
	scheduler.Enabled = a.cfg.Scheduler.Enabled
	scheduler.CheckInterval = a.cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      api.NewRouter(handler, a.cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.log.Info("server stopped")
	return nil
}
