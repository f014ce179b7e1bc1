package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"bms/internal/cli"
	apphttp "bms/internal/http"
	"bms/internal/storage"
)

func serveCmd() *cobra.Command {
	var origins []string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest dashboard artifacts and run history over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			hc := apphttp.DefaultConfig()
			hc.Addr = ":" + cfg.Port
			if len(origins) > 0 {
				hc.AllowedOrigins = origins
			}
			srv := apphttp.NewServer(hc, repo, logger)

			ctx, done := cli.GracefulShutdown(cmd.Context(), logger, 30*time.Second, func(ctx context.Context) {
				if err := srv.Shutdown(ctx); err != nil {
					logger.Error("Server shutdown error", "error", err)
				}
			})

			logger.Info("Starting feed server", "addr", hc.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			<-ctx.Done()
			<-done
			logger.Info("Server stopped gracefully")
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&origins, "allowed-origin", nil, "CORS origin allowed to read the feed (repeatable, default: *)")
	return cmd
}
