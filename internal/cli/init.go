// Package cli provides common initialization shared by cmd/bms and
// cmd/bms-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bms/internal/backend"
	"bms/internal/config"
	"bms/internal/log"
	"bms/internal/services"
	"bms/internal/sheets"
)

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// sets it as the default logger.
func SetupLogger(cfg *config.Config, out io.Writer) *log.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    out,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackends builds the adapters named by cfg.
func OpenBackends(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Backends, error) {
	bc, err := backend.FromAppConfig(cfg, services.SeoulLocation())
	if err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}
	return backend.NewFactory(logger).Create(ctx, bc)
}

// SyncConfig derives the sync service configuration, loading the layout
// override file when one is set.
func SyncConfig(cfg *config.Config) (services.SyncConfig, error) {
	sc := services.DefaultSyncConfig()

	layout, err := sheets.LoadLayout(cfg.LayoutFile)
	if err != nil {
		return sc, err
	}
	sc.Layout = layout

	deadline, err := cfg.Deadline(sc.Reconciler.Location)
	if err != nil {
		return sc, err
	}
	sc.Deadline = deadline
	sc.PageSize = cfg.PageSize
	sc.Reconciler.RetryAttempts = cfg.RetryAttempts
	sc.Reconciler.CallTimeout = cfg.RemoteTimeout
	return sc, nil
}

// NewSyncService wires a sync service onto opened backends.
func NewSyncService(cfg *config.Config, b *backend.Backends, logger *log.Logger) (*services.SyncService, error) {
	sc, err := SyncConfig(cfg)
	if err != nil {
		return nil, err
	}
	return services.NewSyncService(b.Source, b.Store, b.Journal(), b.Notifier, sc, logger), nil
}

// NewExportService wires an export service onto opened backends.
func NewExportService(cfg *config.Config, b *backend.Backends, logger *log.Logger) (*services.ExportService, error) {
	loc := services.SeoulLocation()
	deadline, err := cfg.Deadline(loc)
	if err != nil {
		return nil, err
	}
	return services.NewExportService(b.Store, b.Journal(), services.ExportConfig{
		PageSize:  cfg.PageSize,
		Deadline:  deadline,
		OutputDir: cfg.OutputDir,
		Location:  loc,
	}, logger), nil
}

// GracefulShutdown returns a context cancelled on SIGINT, SIGTERM or when
// parent is done. The cleanup runs once afterwards, bounded by timeout,
// and done is closed when it has returned.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer close(done)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}
