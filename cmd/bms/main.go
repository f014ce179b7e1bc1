// Command bms reconciles the project budget sheet into the remote store and
// rebuilds the dashboard artifacts.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bms/internal/cli"
	"bms/internal/config"
	"bms/internal/log"
)

var (
	envFile  string
	logLevel string
	version  = "dev"

	// set by initApp
	cfg    *config.Config
	logger *log.Logger
)

// errRunHadErrors makes the process exit non-zero after a run that
// completed with per-record failures.
var errRunHadErrors = errors.New("run finished with errors")

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bms",
		Short: "Budget sheet sync and dashboard export",
		Long: `bms reads the project budget worksheet, reconciles every line into the
remote budget database and rebuilds the dashboard data and summary.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: initApp,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default: .env when present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(syncCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runsCmd())
	root.AddCommand(requestCmd())
	return root
}

func initApp(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		cli.LoadEnvFile(envFile)
	} else {
		cli.LoadEnvFile()
	}

	c, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	cfg = c
	logger = cli.SetupLogger(cfg, cmd.ErrOrStderr())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errRunHadErrors) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
