package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bms/internal/cli"
)

func syncCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the budget sheet into the remote store",
		Long: `Read the budget worksheet, create or update one remote entry per budget
line and rebuild the dashboard artifacts. Exits non-zero when any line failed
to sync.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			b, err := cli.OpenBackends(ctx, cfg, logger)
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
			res, err := svc.Run(ctx, "cli")
			if err != nil {
				return err
			}

			if outputDir == "" {
				outputDir = cfg.OutputDir
			}
			if outputDir != "" {
				if err := res.Artifacts.WriteFiles(outputDir); err != nil {
					return fmt.Errorf("write artifacts: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: updated %d, created %d, errors %d, skipped rows %d\n",
				res.RunID, res.Stats.Updated, res.Stats.Created, res.Stats.Errors, res.Scan.Skipped)
			for _, name := range res.Stats.Failed {
				fmt.Fprintf(out, "  failed: %s\n", name)
			}
			if res.Failed() {
				return errRunHadErrors
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "write budget_data.json and summary.json here (default: OUTPUT_DIR)")
	return cmd
}
