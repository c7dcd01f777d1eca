package cmd

import (
	"errors"
	"fmt"

	"finnsync/scraper"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <type|all>",
	Short: "Crawl finn.no and reconcile the results into the local store, without touching the spreadsheet.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := kindArgs(args[0], true)
		if err != nil {
			return err
		}
		orch := scraper.NewOrchestrator(env.cfg, env.store, env.fetcher())
		orch.SetServices(nil, nil, env.mirror(cmd.Context()))

		var errs []error
		for _, kind := range kinds {
			res, err := orch.RunKind(cmd.Context(), kind, scraper.RunOptions{NoSync: true})
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", kind, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", res.Reconcile)
		}
		return errors.Join(errs...)
	},
}
