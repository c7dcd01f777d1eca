package cmd

import (
	"fmt"

	"finnsync/models"

	"github.com/spf13/cobra"
)

var enrichYes bool

func init() {
	enrichCmd.Flags().BoolVarP(&enrichYes, "yes", "y", false, "make the routing calls without asking")
	rootCmd.AddCommand(enrichCmd)
}

var enrichCmd = &cobra.Command{
	Use:   "enrich [type|all]",
	Short: "Fill missing commute times for exportable listings using the Directions API.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		arg := "all"
		if len(args) == 1 {
			arg = args[0]
		}
		kinds, err := kindArgs(arg, true)
		if err != nil {
			return err
		}
		kinds = commuteKinds(kinds)
		if len(kinds) == 0 {
			return fmt.Errorf("commute enrichment is not enabled for %s", arg)
		}

		enricher, err := env.enricher()
		if err != nil {
			return err
		}
		res, err := enricher.Enrich(cmd.Context(), kinds, env.cfg.ExportFilter(), enrichConfirm(enrichYes))
		if res != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Commute: %s\n", res)
		}
		return err
	},
}

// commuteKinds keeps the kinds whose site has commute enrichment enabled.
func commuteKinds(kinds []models.Kind) []models.Kind {
	var out []models.Kind
	for _, kind := range kinds {
		if env.cfg.Site(kind).Commute {
			out = append(out, kind)
		}
	}
	return out
}
