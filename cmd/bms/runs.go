package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"bms/internal/storage"
)

func runsCmd() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent journaled runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tTRIGGER\tSTATUS\tUPDATED\tCREATED\tERRORS\tPARTIAL\tID")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%t\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Trigger, r.Status,
					r.Updated, r.Created, r.Errors, r.Partial, r.ID)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")
	return cmd
}
