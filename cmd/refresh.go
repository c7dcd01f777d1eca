package cmd

import (
	"fmt"
	"time"

	"finnsync/scraper"
	"finnsync/workers"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	refreshLimit int
	refreshDelay time.Duration
)

func init() {
	refreshCmd.Flags().IntVar(&refreshLimit, "limit", 0, "check at most this many listings (0 = all)")
	refreshCmd.Flags().DurationVar(&refreshDelay, "delay", 200*time.Millisecond, "pause between ad page requests")
	rootCmd.AddCommand(refreshCmd)
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <type|all>",
	Short: "Re-check exported listings on finn.no and store status changes such as Solgt.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := kindArgs(args[0], true)
		if err != nil {
			return err
		}
		worker := workers.NewRefreshWorker(env.store, scraper.NewStatusChecker(env.fetcher()), refreshDelay)

		out := cmd.OutOrStdout()
		changed := 0
		for _, kind := range kinds {
			res, err := worker.RefreshKind(cmd.Context(), kind, refreshLimit)
			if res != nil {
				fmt.Fprintf(out, "%s: checked %d, %d changed, %d errors\n", kind, res.Checked, len(res.Changes), res.Errors)
				changed += len(res.Changes)
				if len(res.Changes) > 0 {
					t := newTable(out)
					t.AppendHeader(table.Row{"Finnkode", "Old", "New"})
					for _, c := range res.Changes {
						t.AppendRow(table.Row{c.Key, c.Old, c.New})
					}
					t.Render()
				}
			}
			if err != nil {
				return err
			}
		}
		if changed > 0 {
			fmt.Fprintln(out, "Run `sync <type> --full` to push the new statuses to the spreadsheet.")
		}
		return nil
	},
}
