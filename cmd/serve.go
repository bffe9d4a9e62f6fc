package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/api"
	"github.com/jmcadams/pulse/internal/clock/system"
	"github.com/jmcadams/pulse/internal/execution/memory"
	"github.com/jmcadams/pulse/internal/logging"
	"github.com/jmcadams/pulse/internal/metrics"
	"github.com/jmcadams/pulse/internal/progress"
	"github.com/jmcadams/pulse/internal/registry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the progress-session HTTP service",
		Long: `Runs the HTTP service that manages progress sessions. Sessions are
created and driven over the REST API, execution events are accepted per
session, and snapshot history and Prometheus metrics are exposed.`,
		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	bus := memory.New(logger.Named("bus"), clock)
	defer bus.Close()

	promReg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(promReg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := metrics.NewHTTPRecorder(promReg)
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	reg := registry.New(registry.Config{
		Session: progress.Config{
			HoldDelay: cfg.HoldDelay(),
			Hub: progress.HubConfig{
				BufferSize: cfg.Progress.BufferSize,
			},
		},
		HistoryWindow: cfg.History.Window,
		Clock:         clock,
		Recorder:      recorder,
		Bus:           bus,
		Logger:        logger.Named("sessions"),
	})
	defer reg.Close()

	apiServer := api.NewServer(reg, bus, httpMetrics, promReg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
