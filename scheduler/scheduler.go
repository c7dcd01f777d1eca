package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finnsync/config"
	"finnsync/scraper"

	"github.com/robfig/cron/v3"
)

// Runner runs the pipeline for every configured kind.
type Runner interface {
	RunAll(ctx context.Context, opts scraper.RunOptions) error
}

// Scheduler triggers pipeline runs on a cron expression or a fixed interval.
// A tick that arrives while a run is still going is skipped.
type Scheduler struct {
	cfg       config.SchedulerConfig
	runner    Runner
	opts      scraper.RunOptions
	cron      *cron.Cron
	ticker    *time.Ticker
	triggerCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once
	running   sync.Mutex
	wg        sync.WaitGroup
}

func New(cfg config.SchedulerConfig, runner Runner, opts scraper.RunOptions) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		runner:    runner,
		opts:      opts,
		cron:      cron.New(),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start begins scheduling. Cron wins over the interval when both are set;
// with neither, runs only happen through Trigger.
func (s *Scheduler) Start(ctx context.Context) error {
	switch {
	case s.cfg.Cron != "":
		slog.Info("Starting scheduler", "cron", s.cfg.Cron)
		if _, err := s.cron.AddFunc(s.cfg.Cron, func() { s.runOnce(ctx) }); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	case s.cfg.Interval > 0:
		slog.Info("Starting scheduler", "interval", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
	default:
		slog.Info("No schedule configured, daemon will only run on trigger")
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.ticker != nil {
		tick = s.ticker.C
	}
	for {
		select {
		case <-tick:
			s.runOnce(ctx)
		case <-s.triggerCh:
			slog.Info("Run triggered manually")
			s.runOnce(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Trigger queues an immediate run. Repeated triggers before it starts
// collapse into one.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

// TriggerNow runs synchronously and returns the run error.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	s.running.Lock()
	defer s.running.Unlock()
	return s.runner.RunAll(ctx, s.opts)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.running.TryLock() {
		slog.Warn("Previous run still in progress, skipping tick")
		return
	}
	defer s.running.Unlock()

	started := time.Now()
	err := s.runner.RunAll(ctx, s.opts)
	switch {
	case err == nil:
		slog.Info("Scheduled run finished", "took", time.Since(started).Round(time.Second))
	case errors.Is(err, context.Canceled):
		slog.Info("Scheduled run cancelled")
	default:
		slog.Error("Scheduled run error", "error", err)
	}
}

// RunLock is held for the duration of every pipeline run. Other jobs that
// write the store take it to stay out of a run's way.
func (s *Scheduler) RunLock() sync.Locker {
	return &s.running
}

// Stop halts scheduling and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
	s.wg.Wait()
	s.running.Lock()
	s.running.Unlock()
}
