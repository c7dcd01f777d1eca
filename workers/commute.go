package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"finnsync/identity"
	"finnsync/models"
	"finnsync/routing"

	"golang.org/x/time/rate"
)

// Router answers a single travel-time query.
type Router interface {
	Duration(ctx context.Context, req routing.Request) (minutes int, ok bool, err error)
}

type CommuteStore interface {
	CommuteCandidates(ctx context.Context, kinds []models.Kind, filter models.ExportFilter) ([]models.CommuteCandidate, error)
	SetCommuteMinutes(ctx context.Context, key, field string, minutes int) error
	SetCommuteAddress(ctx context.Context, key, cleaned, mapsURL string) error
}

// CommutePlan describes the routing calls an enrichment pass would make.
type CommutePlan struct {
	Candidates []models.CommuteCandidate
	// Missing counts listings lacking each attribute, keyed by column name.
	Missing map[string]int
	Calls   int
}

func (p *CommutePlan) Empty() bool {
	return p == nil || p.Calls == 0
}

// ConfirmFunc approves a plan before any paid call is made.
type ConfirmFunc func(plan *CommutePlan) bool

func AutoApprove(*CommutePlan) bool { return true }
func AutoDeny(*CommutePlan) bool    { return false }

type EnrichResult struct {
	Planned  int
	Filled   int
	Absent   int // provider found no route; retried next pass
	Failed   int
	Declined bool
}

func (r *EnrichResult) String() string {
	if r.Declined {
		return fmt.Sprintf("enrichment declined (%d calls planned)", r.Planned)
	}
	return fmt.Sprintf("%d planned, %d filled, %d without route, %d failed", r.Planned, r.Filled, r.Absent, r.Failed)
}

// CommuteEnricher fills missing commute attributes one call at a time and
// persists every value as soon as it arrives, so an interrupted pass loses
// at most the call in flight.
type CommuteEnricher struct {
	store   CommuteStore
	router  Router
	policy  routing.Policy
	anchors map[string]string
	limiter *rate.Limiter
	logFunc LogFunc
	now     func() time.Time
}

// NewCommuteEnricher wires an enricher. A nil limiter means no rate cap.
// The limiter is shared by every call the enricher makes.
func NewCommuteEnricher(store CommuteStore, router Router, policy routing.Policy, anchors map[string]string, limiter *rate.Limiter) *CommuteEnricher {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &CommuteEnricher{
		store:   store,
		router:  router,
		policy:  policy,
		anchors: anchors,
		limiter: limiter,
		logFunc: NoOpLogger,
		now:     time.Now,
	}
}

func (e *CommuteEnricher) SetLogger(fn LogFunc) {
	e.logFunc = fn
}

// Plan counts the missing attributes across eligible listings without
// calling the provider. Attributes whose anchor is not configured are left
// out.
func (e *CommuteEnricher) Plan(ctx context.Context, kinds []models.Kind, filter models.ExportFilter) (*CommutePlan, error) {
	cands, err := e.store.CommuteCandidates(ctx, kinds, filter)
	if err != nil {
		return nil, fmt.Errorf("load commute candidates: %w", err)
	}

	plan := &CommutePlan{Missing: make(map[string]int)}
	for _, cand := range cands {
		missing := e.missing(cand)
		if len(missing) == 0 {
			continue
		}
		plan.Candidates = append(plan.Candidates, cand)
		for _, attr := range missing {
			plan.Missing[attr.Column]++
			plan.Calls++
		}
	}
	return plan, nil
}

func (e *CommuteEnricher) missing(cand models.CommuteCandidate) []models.CommuteAttribute {
	var out []models.CommuteAttribute
	for _, attr := range cand.Commute.Missing() {
		if e.anchors[attr.Anchor] != "" {
			out = append(out, attr)
		}
	}
	return out
}

// Enrich plans, asks confirm, then computes every missing attribute in the
// fixed attribute order. Per-call failures are counted and skipped;
// cancellation stops between calls.
func (e *CommuteEnricher) Enrich(ctx context.Context, kinds []models.Kind, filter models.ExportFilter, confirm ConfirmFunc) (*EnrichResult, error) {
	plan, err := e.Plan(ctx, kinds, filter)
	if err != nil {
		return nil, err
	}
	res := &EnrichResult{Planned: plan.Calls}
	if plan.Empty() {
		return res, nil
	}

	if confirm == nil || !confirm(plan) {
		res.Declined = true
		slog.Info("commute enrichment declined", "calls", plan.Calls)
		return res, nil
	}

	for _, cand := range plan.Candidates {
		if cand.Commute != nil && cand.Commute.AddressCleaned != "" {
			continue
		}
		cleaned := identity.CleanAddress(cand.Address, cand.PostalCode)
		if err := e.store.SetCommuteAddress(ctx, cand.Key, cleaned, identity.MapsURL(cleaned)); err != nil {
			slog.Warn("store cleaned address", "key", cand.Key, "error", err)
		}
	}

	now := e.now()
	for _, attr := range models.CommuteAttributes {
		anchor := e.anchors[attr.Anchor]
		if anchor == "" {
			continue
		}

		filled := 0
		for _, cand := range plan.Candidates {
			if cand.Commute.Value(attr.Field) != nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := e.limiter.Wait(ctx); err != nil {
				return res, err
			}

			origin := identity.CleanAddress(cand.Address, cand.PostalCode)
			req := e.policy.BuildRequest(attr, origin, anchor, now)
			minutes, ok, err := e.router.Duration(ctx, req)
			if err != nil {
				if errors.Is(err, routing.ErrNoAPIKey) {
					return res, err
				}
				if ctx.Err() != nil {
					return res, ctx.Err()
				}
				res.Failed++
				slog.Warn("commute lookup failed", "key", cand.Key, "attribute", attr.Column, "error", err)
				continue
			}
			if !ok {
				res.Absent++
				slog.Debug("no route", "key", cand.Key, "attribute", attr.Column, "origin", req.Origin)
				continue
			}

			// persist even when ctx was cancelled during the call
			if err := e.store.SetCommuteMinutes(context.WithoutCancel(ctx), cand.Key, attr.Field, minutes); err != nil {
				res.Failed++
				slog.Warn("store commute value", "key", cand.Key, "attribute", attr.Column, "error", err)
				continue
			}
			res.Filled++
			filled++
		}

		if filled > 0 {
			slog.Info("commute attribute done", "attribute", attr.Column, "filled", filled)
		}
	}

	var kind models.Kind
	if len(kinds) == 1 {
		kind = kinds[0]
	}
	e.logFunc(models.LogLevelInfo, kind, "commute: "+res.String())
	return res, nil
}
