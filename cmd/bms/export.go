package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bms/internal/cli"
)

func exportCmd() *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Rebuild the dashboard artifacts from the remote store",
		Long: `Read every entry of the remote store and rebuild budget_data.json and
summary.json without touching the sheet. A failed page yields a partial
export.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if outputDir != "" {
				cfg.OutputDir = outputDir
			}

			b, err := cli.OpenBackends(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			svc, err := cli.NewExportService(cfg, b, logger)
			if err != nil {
				return err
			}
			res, err := svc.Export(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "export %s: %d records, execution rate %s%%, partial %t\n",
				res.RunID, res.Records, res.Summary.ExecutionRate.String(), res.Partial)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "write budget_data.json and summary.json here (default: OUTPUT_DIR)")
	return cmd
}
