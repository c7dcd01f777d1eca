package cmd

import (
	"fmt"

	"finnsync/services"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	overrideArea   int
	overridePrice  int
	overrideReason string
)

func init() {
	overrideSetCmd.Flags().IntVar(&overrideArea, "area", 0, "area in m² to use instead of the scraped value")
	overrideSetCmd.Flags().IntVar(&overridePrice, "price", 0, "price to use instead of the scraped value")
	overrideSetCmd.Flags().StringVar(&overrideReason, "reason", "", "why the scraped value is wrong")

	overrideCmd.AddCommand(overrideSetCmd, overrideGetCmd, overrideListCmd, overrideRemoveCmd)
	rootCmd.AddCommand(overrideCmd)
}

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage manual area/price corrections applied on every ingest.",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <finnkode>",
	Short: "Create or refine an override. Flags that are not given keep their previous value.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var area, price *int
		if cmd.Flags().Changed("area") {
			area = &overrideArea
		}
		if cmd.Flags().Changed("price") {
			price = &overridePrice
		}
		if area == nil && price == nil && overrideReason == "" {
			return fmt.Errorf("nothing to set: give --area, --price or --reason")
		}

		o, err := overrides().Set(cmd.Context(), args[0], area, price, overrideReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Override for %s: area=%v price=%v\n", o.Key, intOrDash(o.Area), intOrDash(o.Price))
		return nil
	},
}

var overrideGetCmd = &cobra.Command{
	Use:   "get <finnkode>",
	Short: "Show the override for one listing.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := overrides().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if o == nil {
			return fmt.Errorf("no override for %s", args[0])
		}
		t := newTable(cmd.OutOrStdout())
		t.AppendRows([]table.Row{
			{"Finnkode", o.Key},
			{"Area", intOrDash(o.Area)},
			{"Price", intOrDash(o.Price)},
			{"Reason", o.Reason},
			{"Updated", o.UpdatedAt.Local().Format("2006-01-02 15:04")},
		})
		t.Render()
		return nil
	},
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all overrides.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := overrides().List(cmd.Context())
		if err != nil {
			return err
		}
		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Finnkode", "Area", "Price", "Reason", "Updated"})
		for _, o := range list {
			t.AppendRow(table.Row{o.Key, intOrDash(o.Area), intOrDash(o.Price), o.Reason, o.UpdatedAt.Local().Format("2006-01-02")})
		}
		t.AppendFooter(table.Row{"", "", "", "Total", len(list)})
		t.Render()
		return nil
	},
}

var overrideRemoveCmd = &cobra.Command{
	Use:   "remove <finnkode>",
	Short: "Delete an override. Scraped values win again from the next ingest on.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := overrides().Remove(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no override for %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed override for %s\n", args[0])
		return nil
	},
}

func overrides() *services.OverrideService {
	return services.NewOverrideService(env.store)
}
