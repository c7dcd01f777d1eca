package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finnsync/models"

	"github.com/spf13/cobra"
)

var (
	dbPath    string
	configDir string
	verbose   bool

	env *environment
)

var rootCmd = &cobra.Command{
	Use:           "finnsync",
	Short:         "finnsync keeps finn.no listings in a local store and mirrors them into a Google spreadsheet.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(dbPath, configDir, verbose)
		if err != nil {
			return err
		}
		env = e
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if env != nil {
			env.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite database (default $DB_PATH or properties.db)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding sites/*.yaml and commute.yaml (default $CONFIG_DIR or config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// Execute runs the CLI. Ctrl+C cancels the running command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// kindArgs validates a single <type> argument. When allowAll is set the
// literal "all" expands to every configured kind.
func kindArgs(arg string, allowAll bool) ([]models.Kind, error) {
	if allowAll && arg == "all" {
		kinds := env.configuredKinds()
		if len(kinds) == 0 {
			return nil, fmt.Errorf("no sites configured under %s/sites", env.cfg.Dir)
		}
		return kinds, nil
	}
	kind, err := models.ParseKind(arg)
	if err != nil {
		return nil, err
	}
	return []models.Kind{kind}, nil
}
