package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"finnsync/models"
)

// CheckResult is the outcome of re-fetching one ad page.
type CheckResult struct {
	IsLive     bool
	StatusCode int
	Status     string // status badge text, empty when the ad has none
	Error      error
}

// StatusChecker re-fetches an ad page and reads its status badge.
type StatusChecker interface {
	CheckStatus(ctx context.Context, kind models.Kind, url string) CheckResult
}

type RefreshStore interface {
	ListForRefresh(ctx context.Context, kind models.Kind, limit int) ([]models.Listing, error)
	UpdateStatus(ctx context.Context, kind models.Kind, key, status string) error
}

type RefreshResult struct {
	Kind    models.Kind
	Checked int
	Errors  int
	Changes []models.StatusChange
}

// RefreshWorker re-checks exported listings so status changes such as
// "Solgt" reach the spreadsheet on the next full sync.
type RefreshWorker struct {
	store     RefreshStore
	checker   StatusChecker
	delay     time.Duration
	triggerCh chan struct{}
	logFunc   LogFunc
	lock      sync.Locker
}

func NewRefreshWorker(store RefreshStore, checker StatusChecker, delay time.Duration) *RefreshWorker {
	return &RefreshWorker{
		store:     store,
		checker:   checker,
		delay:     delay,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *RefreshWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// SetLocker makes every Run pass hold l, so refreshes never overlap a
// pipeline run.
func (w *RefreshWorker) SetLocker(l sync.Locker) {
	w.lock = l
}

// Trigger causes the worker to run immediately
func (w *RefreshWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

// RefreshKind checks up to limit exported listings of kind (0 = all) and
// stores every status that changed.
func (w *RefreshWorker) RefreshKind(ctx context.Context, kind models.Kind, limit int) (*RefreshResult, error) {
	listings, err := w.store.ListForRefresh(ctx, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s for refresh: %w", kind, err)
	}

	res := &RefreshResult{Kind: kind}
	for i, l := range listings {
		if i > 0 && w.delay > 0 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(w.delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		result := w.checker.CheckStatus(ctx, kind, l.URL)
		res.Checked++
		if result.Error != nil {
			res.Errors++
			slog.Warn("refresh failed", "kind", kind, "key", l.Key, "error", result.Error)
			continue
		}

		status := strings.TrimSpace(result.Status)
		if !result.IsLive {
			status = models.StatusRemoved
		}
		if status == strings.TrimSpace(l.Status) {
			continue
		}

		if err := w.store.UpdateStatus(ctx, kind, l.Key, status); err != nil {
			res.Errors++
			slog.Warn("store refreshed status", "kind", kind, "key", l.Key, "error", err)
			continue
		}
		res.Changes = append(res.Changes, models.StatusChange{Kind: kind, Key: l.Key, Old: l.Status, New: status})
		slog.Info("status changed", "kind", kind, "key", l.Key, "old", l.Status, "new", status)
	}

	if len(res.Changes) > 0 || res.Errors > 0 {
		w.logFunc(models.LogLevelInfo, kind, fmt.Sprintf("refresh: checked %d, %d changed, %d errors", res.Checked, len(res.Changes), res.Errors))
	}
	return res, nil
}

// Run refreshes kinds on every tick or trigger until ctx is cancelled.
func (w *RefreshWorker) Run(ctx context.Context, kinds []models.Kind, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh worker stopping")
			return
		case <-ticker.C:
			w.refreshAll(ctx, kinds)
		case <-w.triggerCh:
			slog.Info("refresh worker triggered manually")
			w.refreshAll(ctx, kinds)
		}
	}
}

func (w *RefreshWorker) refreshAll(ctx context.Context, kinds []models.Kind) {
	if w.lock != nil {
		w.lock.Lock()
		defer w.lock.Unlock()
	}
	for _, kind := range kinds {
		if _, err := w.RefreshKind(ctx, kind, 0); err != nil {
			slog.Error("refresh", "kind", kind, "error", err)
		}
	}
}
