package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"finnsync/config"
	"finnsync/models"
	"finnsync/services"
	"finnsync/sheets"
	"finnsync/storage"
	"finnsync/workers"

	"github.com/google/uuid"
)

// RunOptions selects the optional stages of a pipeline run.
type RunOptions struct {
	NoSync        bool
	Enrich        bool
	ConfirmEnrich workers.ConfirmFunc
	ConfirmSheet  sheets.ConfirmFunc
}

type RunResult struct {
	Run       *models.ScrapeRun
	Snapshot  models.Snapshot
	Reconcile *services.ReconcileResult
	Enrich    *workers.EnrichResult
	Sync      *sheets.SyncResult
}

// Orchestrator runs the scrape → reconcile → enrich → sync pipeline for one
// kind at a time. Runs never overlap.
type Orchestrator struct {
	cfg        *config.Config
	store      *storage.SQLiteStore
	fetcher    Fetcher
	reconciler *services.ReconcileService
	mu         sync.Mutex

	// optional stages
	enricher *workers.CommuteEnricher
	syncer   *sheets.Synchronizer
	mirror   *storage.PostgresMirror
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, fetcher Fetcher) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		store:      store,
		fetcher:    fetcher,
		reconciler: services.NewReconcileService(store, cfg.Reconcile.MinSnapshotRatio),
	}
}

// SetServices injects the optional stages. Any of them may be nil.
func (o *Orchestrator) SetServices(enricher *workers.CommuteEnricher, syncer *sheets.Synchronizer, mirror *storage.PostgresMirror) {
	o.enricher = enricher
	o.syncer = syncer
	o.mirror = mirror
}

// Kinds lists the kinds with a site definition, in a stable order.
func (o *Orchestrator) Kinds() []models.Kind {
	var kinds []models.Kind
	for kind := range o.cfg.Sites {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Crawl fetches the current snapshot for kind without touching the store.
func (o *Orchestrator) Crawl(ctx context.Context, kind models.Kind) (models.Snapshot, error) {
	crawler, err := NewCrawler(o.fetcher, o.cfg.Site(kind))
	if err != nil {
		return models.Snapshot{Kind: kind}, err
	}
	return crawler.Crawl(ctx)
}

func (o *Orchestrator) RunAll(ctx context.Context, opts RunOptions) error {
	kinds := o.Kinds()
	if len(kinds) == 0 {
		return errors.New("no sites configured")
	}

	var errs []error
	for _, kind := range kinds {
		if _, err := o.RunKind(ctx, kind, opts); err != nil {
			slog.Error("Run failed", "kind", kind, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

// RunKind runs the whole pipeline for kind and records it in scrape_runs.
// An incomplete crawl is not fatal: its records are still ingested but
// nothing is deactivated. A failing mirror or enrichment step is logged and
// the run continues; a failing sync fails the run.
func (o *Orchestrator) RunKind(ctx context.Context, kind models.Kind, opts RunOptions) (*RunResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	site := o.cfg.Site(kind)
	run := &models.ScrapeRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if err := o.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	res := &RunResult{Run: run}

	defer func() {
		now := time.Now()
		run.FinishedAt = &now
		// record the outcome even when ctx was cancelled
		bg := context.WithoutCancel(ctx)
		if err := o.store.UpdateRun(bg, run); err != nil {
			slog.Error("Failed to update run", "run", run.ID, "error", err)
		}
		if o.mirror != nil {
			if err := o.mirror.RecordRun(bg, run); err != nil {
				slog.Warn("Failed to mirror run", "run", run.ID, "error", err)
			}
		}
	}()

	fail := func(stage string, err error) (*RunResult, error) {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(ctx, run.ID, models.LogLevelError, fmt.Sprintf("%s failed: %v", stage, err), kind)
		return res, fmt.Errorf("%s: %w", stage, err)
	}

	o.log(ctx, run.ID, models.LogLevelInfo, fmt.Sprintf("Starting run for %s", site.Name), kind)

	snap, err := o.Crawl(ctx, kind)
	res.Snapshot = snap
	if err != nil {
		if !errors.Is(err, ErrIncompleteCrawl) || ctx.Err() != nil {
			return fail("crawl", err)
		}
		run.ErrorsCount++
		o.log(ctx, run.ID, models.LogLevelWarn, fmt.Sprintf("Crawl incomplete: %v", err), kind)
	}
	run.ListingsFound = len(snap.Keys)
	run.ErrorsCount += snap.Failed
	o.log(ctx, run.ID, models.LogLevelInfo,
		fmt.Sprintf("Crawled %d ads (%d parsed, %d failed)", len(snap.Keys), len(snap.Records), snap.Failed), kind)

	rec, err := o.reconciler.Reconcile(ctx, snap)
	res.Reconcile = rec
	if rec != nil {
		run.ListingsInserted = rec.Inserted
		run.ListingsUpdated = rec.Updated
		run.ListingsDeactivated = int(rec.Deactivated)
		run.ErrorsCount += rec.Failed
	}
	if err != nil {
		return fail("reconcile", err)
	}
	o.log(ctx, run.ID, models.LogLevelInfo, rec.String(), kind)

	o.mirrorListings(ctx, run.ID, kind)

	if opts.Enrich && site.Commute && o.enricher != nil {
		o.enricher.SetLogger(o.RunLogger(ctx, run.ID))
		er, err := o.enricher.Enrich(ctx, []models.Kind{kind}, o.cfg.ExportFilter(), opts.ConfirmEnrich)
		res.Enrich = er
		if err != nil {
			if ctx.Err() != nil {
				return fail("enrich", err)
			}
			run.ErrorsCount++
			o.log(ctx, run.ID, models.LogLevelWarn, fmt.Sprintf("Enrichment stopped: %v", err), kind)
		}
	}

	if !opts.NoSync {
		if o.syncer == nil {
			o.log(ctx, run.ID, models.LogLevelWarn, "Spreadsheet not configured, skipping sync", kind)
		} else {
			sr, err := o.syncer.Sync(ctx, kind, true, opts.ConfirmSheet)
			res.Sync = sr
			if sr != nil && sr.Append != nil {
				run.RowsAppended = sr.Append.Appended
			}
			if sr != nil && sr.Update != nil {
				run.CellsUpdated = sr.Update.CellsUpdated
			}
			if err != nil {
				return fail("sync", err)
			}
			msg := fmt.Sprintf("Sync: %d rows appended", run.RowsAppended)
			if sr.Update != nil {
				msg += ", " + sr.Update.String()
			}
			o.log(ctx, run.ID, models.LogLevelInfo, msg, kind)
		}
	}

	run.Status = models.RunStatusCompleted
	o.log(ctx, run.ID, models.LogLevelInfo,
		fmt.Sprintf("Completed: %d found, %d new, %d updated, %d deactivated, %d errors",
			run.ListingsFound, run.ListingsInserted, run.ListingsUpdated, run.ListingsDeactivated, run.ErrorsCount), kind)
	return res, nil
}

func (o *Orchestrator) mirrorListings(ctx context.Context, runID string, kind models.Kind) {
	if o.mirror == nil {
		return
	}
	listings, err := o.store.ListByKind(ctx, kind)
	if err != nil {
		o.log(ctx, runID, models.LogLevelWarn, fmt.Sprintf("Mirror: load listings: %v", err), kind)
		return
	}
	n, err := o.mirror.MirrorListings(ctx, listings)
	if err != nil {
		o.log(ctx, runID, models.LogLevelWarn, fmt.Sprintf("Mirror failed after %d listings: %v", n, err), kind)
		return
	}
	slog.Info("Mirrored listings", "kind", kind, "count", n)
}

// RunLogger returns a LogFunc that writes into scrape_logs under runID.
func (o *Orchestrator) RunLogger(ctx context.Context, runID string) workers.LogFunc {
	return func(level models.LogLevel, kind models.Kind, message string) {
		o.log(ctx, runID, level, message, kind)
	}
}

func (o *Orchestrator) log(ctx context.Context, runID string, level models.LogLevel, message string, kind models.Kind) {
	switch level {
	case models.LogLevelError:
		slog.Error(message, "kind", kind, "run", runID)
	case models.LogLevelWarn:
		slog.Warn(message, "kind", kind, "run", runID)
	default:
		slog.Info(message, "kind", kind, "run", runID)
	}
	if err := o.store.Log(context.WithoutCancel(ctx), runID, level, message, kind); err != nil {
		slog.Debug("Failed to persist log line", "error", err)
	}
}
