package cmd

import (
	"errors"
	"fmt"

	"finnsync/models"
	"finnsync/sheets"

	"github.com/spf13/cobra"
)

var (
	syncFull  bool
	syncSheet string
	syncYes   bool
)

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "also update rows already in the sheet")
	syncCmd.Flags().StringVar(&syncSheet, "sheet", "", "sheet to write to instead of the configured one")
	syncCmd.Flags().BoolVarP(&syncYes, "yes", "y", false, "apply overwrites of non-empty cells without asking")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync <type>",
	Short: "Append unexported listings to the spreadsheet; with --full also patch changed cells.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := kindArgs(args[0], false)
		if err != nil {
			return err
		}
		kind := kinds[0]

		targets := env.sheetTargets()
		if syncSheet != "" {
			t := targets[kind]
			t.Sheet = syncSheet
			targets[kind] = t
		}
		syncer, err := env.synchronizer(cmd.Context(), targets)
		if errors.Is(err, sheets.ErrNotConfigured) {
			return fmt.Errorf("%w: set SPREADSHEET_ID", err)
		}
		if err != nil {
			return err
		}

		res, err := syncer.Sync(cmd.Context(), kind, syncFull, sheetConfirm(syncYes))
		printSync(cmd, kind, res)
		return err
	},
}

func printSync(cmd *cobra.Command, kind models.Kind, res *sheets.SyncResult) {
	if res == nil {
		return
	}
	out := cmd.OutOrStdout()
	if res.Append != nil {
		fmt.Fprintf(out, "%s: %d rows appended, %d marked exported\n", kind, res.Append.Appended, res.Append.Exported)
	}
	if res.Update != nil {
		fmt.Fprintf(out, "%s: %s\n", kind, res.Update)
	}
}
