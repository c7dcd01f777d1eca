package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finnsync/identity"
	"finnsync/models"
)

// ReconcileStore is the part of the record store reconciliation needs.
type ReconcileStore interface {
	Upsert(ctx context.Context, l models.Listing) (models.UpsertOutcome, error)
	DeactivateMissing(ctx context.Context, kind models.Kind, keys []string) (int64, error)
	ActiveCount(ctx context.Context, kind models.Kind) (int, error)
}

type ReconcileResult struct {
	Kind        models.Kind
	Seen        int // distinct keys in the snapshot
	Inserted    int
	Updated     int
	Failed      int
	Deactivated int64
	// DeactivationSkipped is set when the snapshot could not be trusted as a
	// full enumeration of live ads.
	DeactivationSkipped bool
	SkipReason          string
}

func (r *ReconcileResult) String() string {
	s := fmt.Sprintf("%s: %d seen, %d new, %d updated, %d failed, %d deactivated",
		r.Kind, r.Seen, r.Inserted, r.Updated, r.Failed, r.Deactivated)
	if r.DeactivationSkipped {
		s += " (deactivation skipped: " + r.SkipReason + ")"
	}
	return s
}

// ReconcileService applies a crawl snapshot to the record store.
type ReconcileService struct {
	store    ReconcileStore
	minRatio float64
	now      func() time.Time
}

// NewReconcileService returns a service that refuses to deactivate when the
// snapshot holds fewer than minRatio × currently active keys. A zero ratio
// disables that check.
func NewReconcileService(store ReconcileStore, minRatio float64) *ReconcileService {
	return &ReconcileService{store: store, minRatio: minRatio, now: time.Now}
}

// Reconcile upserts every record of snap, then deactivates stored listings
// whose keys are absent from the snapshot. A failing record is logged and
// skipped. Deactivation only runs against a complete snapshot.
func (s *ReconcileService) Reconcile(ctx context.Context, snap models.Snapshot) (*ReconcileResult, error) {
	res := &ReconcileResult{Kind: snap.Kind}
	now := s.now().UTC()

	keys := snapshotKeys(snap)
	res.Seen = len(keys)

	// checked before any upsert so the ratio compares against the previous state
	active, err := s.store.ActiveCount(ctx, snap.Kind)
	if err != nil {
		return res, fmt.Errorf("count active %s: %w", snap.Kind, err)
	}

	for _, raw := range snap.Records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		l, err := Normalize(snap.Kind, raw, now)
		if err != nil {
			slog.Warn("skipping record", "kind", snap.Kind, "url", raw.URL, "error", err)
			res.Failed++
			continue
		}

		outcome, err := s.store.Upsert(ctx, l)
		if err != nil {
			slog.Warn("upsert failed", "kind", snap.Kind, "key", l.Key, "error", err)
			res.Failed++
			continue
		}
		if outcome == models.UpsertInserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	switch {
	case !snap.Complete:
		res.DeactivationSkipped = true
		res.SkipReason = "crawl incomplete"
	case s.minRatio > 0 && float64(len(keys)) < s.minRatio*float64(active):
		res.DeactivationSkipped = true
		res.SkipReason = fmt.Sprintf("%d keys is below %.0f%% of %d active", len(keys), s.minRatio*100, active)
	}
	if res.DeactivationSkipped {
		slog.Warn("deactivation skipped", "kind", snap.Kind, "reason", res.SkipReason)
		return res, nil
	}

	n, err := s.store.DeactivateMissing(ctx, snap.Kind, keys)
	if err != nil {
		return res, fmt.Errorf("deactivate missing %s: %w", snap.Kind, err)
	}
	res.Deactivated = n
	return res, nil
}

// snapshotKeys is the deduplicated union of Keys and the record keys.
func snapshotKeys(snap models.Snapshot) []string {
	seen := make(map[string]bool, len(snap.Keys)+len(snap.Records))
	var keys []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		keys = append(keys, k)
	}
	for _, k := range snap.Keys {
		add(k)
	}
	for _, r := range snap.Records {
		k := r.Key
		if k == "" {
			k = identity.KeyFromURL(r.URL)
		}
		add(k)
	}
	return keys
}
