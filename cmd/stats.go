package cmd

import (
	"fmt"
	"time"

	"finnsync/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var statsRuns int

func init() {
	statsCmd.Flags().IntVar(&statsRuns, "runs", 5, "number of recent runs to list")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show listing counts per type and the most recent pipeline runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", env.store.Path())

		t := newTable(out)
		t.AppendHeader(table.Row{"Type", "Total", "Active", "Inactive", "Not exported"})
		for _, kind := range models.AllKinds {
			s, err := env.store.Stats(ctx, kind)
			if err != nil {
				return fmt.Errorf("stats %s: %w", kind, err)
			}
			t.AppendRow(table.Row{kind, s.Total, s.Active, s.Inactive, s.NotExported})
		}
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 2, Align: text.AlignRight},
			{Number: 3, Align: text.AlignRight},
			{Number: 4, Align: text.AlignRight},
			{Number: 5, Align: text.AlignRight},
		})
		t.Render()

		if statsRuns <= 0 {
			return nil
		}
		runs, err := env.store.RecentRuns(ctx, statsRuns)
		if err != nil {
			return fmt.Errorf("recent runs: %w", err)
		}
		if len(runs) == 0 {
			return nil
		}

		rt := newTable(out)
		rt.SetTitle("Recent runs")
		rt.AppendHeader(table.Row{"Started", "Type", "Status", "Found", "New", "Updated", "Gone", "Appended", "Cells", "Errors", "Took"})
		for _, r := range runs {
			took := "-"
			if r.FinishedAt != nil {
				took = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			rt.AppendRow(table.Row{
				r.StartedAt.Local().Format("2006-01-02 15:04"), r.Kind, r.Status,
				r.ListingsFound, r.ListingsInserted, r.ListingsUpdated, r.ListingsDeactivated,
				r.RowsAppended, r.CellsUpdated, r.ErrorsCount, took,
			})
		}
		rt.Render()
		return nil
	},
}
