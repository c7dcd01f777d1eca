package cmd

import (
	"log/slog"
	"sync"
	"time"

	"finnsync/scheduler"
	"finnsync/scraper"
	"finnsync/sheets"
	"finnsync/workers"

	"github.com/spf13/cobra"
)

var (
	daemonNow             bool
	daemonRefreshInterval time.Duration
)

func init() {
	daemonCmd.Flags().BoolVar(&daemonNow, "now", false, "run once right after starting")
	daemonCmd.Flags().DurationVar(&daemonRefreshInterval, "refresh-interval", 0, "also re-check listing statuses this often (0 = never)")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the pipeline for every configured type on SCRAPE_CRON or SCRAPE_INTERVAL until interrupted.",
	Long: `Run the pipeline for every configured type on SCRAPE_CRON or SCRAPE_INTERVAL until interrupted.

Nobody is there to answer prompts: overwrites of non-empty sheet cells are
declined, and commute enrichment only runs when COMMUTE_AUTO_CONFIRM is set.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		autoEnrich := env.cfg.Commute.AutoConfirm

		orch := env.orchestrator(ctx, autoEnrich)
		opts := scraper.RunOptions{
			Enrich:        autoEnrich,
			ConfirmEnrich: workers.AutoApprove,
			ConfirmSheet:  sheets.AutoDeny,
		}

		sched := scheduler.New(env.cfg.Scheduler, orch, opts)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		if daemonNow {
			sched.Trigger()
		}

		var wg sync.WaitGroup
		if daemonRefreshInterval > 0 {
			worker := workers.NewRefreshWorker(env.store, scraper.NewStatusChecker(env.fetcher()), 200*time.Millisecond)
			worker.SetLocker(sched.RunLock())
			wg.Add(1)
			go func() {
				defer wg.Done()
				worker.Run(ctx, orch.Kinds(), daemonRefreshInterval)
			}()
			slog.Info("Refresh worker started", "interval", daemonRefreshInterval)
		}

		slog.Info("Daemon running. Press Ctrl+C to stop.", "kinds", orch.Kinds())
		<-ctx.Done()

		slog.Info("Shutting down...")
		sched.Stop()
		wg.Wait()
		slog.Info("Goodbye!")
		return nil
	},
}
