package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"finnsync/models"
	"finnsync/sheets"

	"github.com/spf13/cobra"
)

var exportDir string

func init() {
	exportCmd.Flags().StringVar(&exportDir, "out", ".", "directory to write the CSV files to")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <type|all>",
	Short: "Write active listings to <type>_export_YYYYMMDD.csv using the spreadsheet columns.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, err := kindArgs(args[0], true)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		now := time.Now()
		for _, kind := range kinds {
			// no price filter: the file is a dump of everything live
			rows, err := env.store.FetchForExport(cmd.Context(), kind, models.ExportFilter{})
			if err != nil {
				return fmt.Errorf("fetch %s: %w", kind, err)
			}
			if len(rows) == 0 {
				fmt.Fprintf(out, "No active %s listings to export\n", kind)
				continue
			}

			path := filepath.Join(exportDir, exportFileName(kind, now))
			if err := writeExportFile(path, kind, rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "Exported %d %s listings to %s\n", len(rows), kind, path)
		}
		return nil
	},
}

func exportFileName(kind models.Kind, t time.Time) string {
	return fmt.Sprintf("%s_export_%s.csv", kind, t.Format("20060102"))
}

func writeExportFile(path string, kind models.Kind, rows []models.ExportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeExport(f, kind, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// writeExport writes rows as CSV with the sheet's columns. The key column
// holds the plain key instead of the hyperlink formula.
func writeExport(w io.Writer, kind models.Kind, rows []models.ExportRow) error {
	cols := sheets.Columns(kind)
	cw := csv.NewWriter(w)
	if err := cw.Write(sheets.Headers(cols)); err != nil {
		return err
	}

	record := make([]string, len(cols))
	for _, r := range rows {
		for i, c := range cols {
			if c.Header == models.FieldKey {
				record[i] = r.Key
				continue
			}
			record[i] = c.Value(r)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
