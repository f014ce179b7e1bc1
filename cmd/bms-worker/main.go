// Command bms-worker runs the sync pipeline on a schedule and on AMQP
// requests, and serves the dashboard feed from the journal.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"bms/internal/cli"
	apphttp "bms/internal/http"
	"bms/internal/services"
	"bms/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// invalidatingRunner drops the feed cache after every run.
type invalidatingRunner struct {
	worker.Runner
	srv *apphttp.Server
}

func (r invalidatingRunner) Run(ctx context.Context, trigger string) (services.RunResult, error) {
	res, err := r.Runner.Run(ctx, trigger)
	if r.srv != nil {
		r.srv.Invalidate()
	}
	return res, err
}

func run() error {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg, nil)
	logger.Info("Starting bms-worker")

	b, err := cli.OpenBackends(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Failed to close backends", "error", err)
		}
	}()

	svc, err := cli.NewSyncService(cfg, b, logger)
	if err != nil {
		return err
	}

	var srv *apphttp.Server
	if b.Repo != nil {
		hc := apphttp.DefaultConfig()
		hc.Addr = ":" + cfg.Port
		srv = apphttp.NewServer(hc, b.Repo, logger)
	} else {
		logger.Info("Journal disabled, feed server not started")
	}

	wc := worker.DefaultConfig()
	wc.Interval = cfg.SyncInterval
	w := worker.New(invalidatingRunner{Runner: svc, srv: srv}, wc, logger)

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, done := cli.GracefulShutdown(parent, logger, 30*time.Second, func(ctx context.Context) {
		if err := w.Stop(ctx); err != nil {
			logger.Error("Worker stop error", "error", err)
		}
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Server shutdown error", "error", err)
			}
		}
	})

	g, gctx := errgroup.WithContext(ctx)

	if err := w.Start(gctx); err != nil {
		return err
	}

	if b.AMQP != nil {
		g.Go(func() error {
			err := b.AMQP.ConsumeSyncRequests(gctx, w.HandleSyncRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume sync requests: %w", err)
			}
			return nil
		})
	} else {
		logger.Info("AMQP disabled, only scheduled runs will happen")
	}

	if srv != nil {
		g.Go(func() error {
			logger.Info("Starting feed server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("feed server: %w", err)
			}
			return nil
		})
	}

	// a failing member shuts the others down
	g.Go(func() error {
		<-gctx.Done()
		cancel()
		return nil
	})

	err = g.Wait()
	<-done
	logger.Info("bms-worker stopped")
	return err
}
