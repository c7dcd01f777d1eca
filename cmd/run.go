package cmd

import (
	"errors"
	"fmt"

	"finnsync/scraper"

	"github.com/spf13/cobra"
)

var (
	runNoSync bool
	runEnrich bool
	runYes    bool
)

func init() {
	runCmd.Flags().BoolVar(&runNoSync, "no-sync", false, "skip the spreadsheet sync")
	runCmd.Flags().BoolVar(&runEnrich, "enrich", false, "fill missing commute values before syncing")
	runCmd.Flags().BoolVarP(&runYes, "yes", "y", false, "approve routing calls and sheet overwrites without asking")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <type|all>",
	Short: "Run the whole pipeline: scrape, reconcile, optionally enrich, then append and update the spreadsheet.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := kindArgs(args[0], true)
		if err != nil {
			return err
		}
		orch := env.orchestrator(cmd.Context(), runEnrich)
		opts := scraper.RunOptions{
			NoSync:        runNoSync,
			Enrich:        runEnrich,
			ConfirmEnrich: enrichConfirm(runYes),
			ConfirmSheet:  sheetConfirm(runYes),
		}

		var errs []error
		for _, kind := range kinds {
			res, err := orch.RunKind(cmd.Context(), kind, opts)
			if res != nil {
				printRun(cmd, res)
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			}
			if cmd.Context().Err() != nil {
				break
			}
		}
		return errors.Join(errs...)
	},
}

func printRun(cmd *cobra.Command, res *scraper.RunResult) {
	out := cmd.OutOrStdout()
	r := res.Run
	fmt.Fprintf(out, "Run %s (%s): %s\n", r.ID, r.Kind, r.Status)
	if res.Reconcile != nil {
		fmt.Fprintf(out, "  %s\n", res.Reconcile)
	}
	if res.Enrich != nil {
		fmt.Fprintf(out, "  commute: %s\n", res.Enrich)
	}
	if res.Sync != nil {
		if res.Sync.Append != nil {
			fmt.Fprintf(out, "  sheet: %d rows appended\n", res.Sync.Append.Appended)
		}
		if res.Sync.Update != nil {
			fmt.Fprintf(out, "  sheet: %s\n", res.Sync.Update)
		}
	}
}
