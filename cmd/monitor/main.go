// Package main is the entry point for the fleet monitoring engine.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/app"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/config"
	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting Solarinvest Monitor",
		zap.Bool("mock_mode", cfg.Integration.MockMode),
		zap.Int("poll_interval_seconds", cfg.Poll.IntervalSeconds),
		zap.Int("ops_port", cfg.Ops.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer application.Shutdown()

	application.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Ops.Port),
		Handler: application.Router,
	}

	errCh := make(chan error, 1)
	go func() { // ops server goroutine, joined via errCh/Shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("Ops server started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	}

	// Cancel in-flight jobs, then let deferred Shutdown drain the queues.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
