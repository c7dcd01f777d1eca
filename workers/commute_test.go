package workers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"finnsync/models"
	"finnsync/routing"
	"finnsync/storage"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakeRouter struct {
	mu    sync.Mutex
	calls []routing.Request
	// answer returns minutes, ok, err for a request
	answer func(req routing.Request) (int, bool, error)
}

func (f *fakeRouter) Duration(ctx context.Context, req routing.Request) (int, bool, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.answer != nil {
		return f.answer(req)
	}
	return 25, true, nil
}

func (f *fakeRouter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var testAnchors = map[string]string{"BRJ": "Anchor Road 1, 0001", "MVV": "Anchor Road 2, 0002"}

func newEnricherFixture(t *testing.T, keys ...string) (*storage.SQLiteStore, *fakeRouter, *CommuteEnricher) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	for _, key := range keys {
		_, err := store.Upsert(context.Background(), models.Listing{
			Kind:       models.KindEiendom,
			Key:        key,
			Address:    "Storgata " + key,
			PostalCode: "0155",
			Price:      models.IntPtr(3000000),
		})
		require.NoError(t, err)
	}

	policy, err := routing.NewPolicy("monday", 8, 16, "Europe/Oslo")
	require.NoError(t, err)

	router := &fakeRouter{}
	enricher := NewCommuteEnricher(store, router, policy, testAnchors, nil)
	enricher.now = func() time.Time { return time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) }
	return store, router, enricher
}

var eiendomOnly = []models.Kind{models.KindEiendom}

func TestEnrichFillsAllAttributes(t *testing.T) {
	ctx := context.Background()
	store, router, enricher := newEnricherFixture(t, "A", "B")

	plan, err := enricher.Plan(ctx, eiendomOnly, models.ExportFilter{})
	require.NoError(t, err)
	require.Equal(t, 16, plan.Calls)
	require.Equal(t, 2, plan.Missing["PENDL MORN BRJ"])

	res, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.NoError(t, err)
	require.Equal(t, 16, res.Filled)
	require.Equal(t, 16, router.count())

	c, err := store.GetCommute(ctx, "A")
	require.NoError(t, err)
	require.Empty(t, c.Missing())
	require.Equal(t, "Storgata A, 0155", c.AddressCleaned)
	require.NotEmpty(t, c.MapsURL)
}

func TestEnrichSecondRunMakesNoCalls(t *testing.T) {
	ctx := context.Background()
	_, router, enricher := newEnricherFixture(t, "A", "B")

	_, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.NoError(t, err)
	first := router.count()

	confirmCalled := false
	res, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, func(*CommutePlan) bool {
		confirmCalled = true
		return true
	})
	require.NoError(t, err)
	require.Zero(t, res.Planned)
	require.Equal(t, first, router.count())
	require.False(t, confirmCalled, "nothing to do must not prompt")
}

func TestEnrichDeclinedMakesNoCalls(t *testing.T) {
	ctx := context.Background()
	_, router, enricher := newEnricherFixture(t, "A")

	res, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoDeny)
	require.NoError(t, err)
	require.True(t, res.Declined)
	require.Equal(t, 8, res.Planned)
	require.Zero(t, router.count())
}

func TestEnrichProcessesAttributesInOrder(t *testing.T) {
	ctx := context.Background()
	_, router, enricher := newEnricherFixture(t, "A", "B")

	_, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.NoError(t, err)

	// attribute-major: both listings get PENDL MORN BRJ before BIL MORN BRJ
	first := models.CommuteAttributes[0]
	second := models.CommuteAttributes[1]
	require.Equal(t, first.Mode, router.calls[0].Mode)
	require.Equal(t, first.Mode, router.calls[1].Mode)
	require.Equal(t, second.Mode, router.calls[2].Mode)

	// morning legs leave from the listing, afternoon legs from the anchor
	require.Equal(t, testAnchors["BRJ"], router.calls[0].Destination)
	afternoon := router.calls[4]
	require.Equal(t, testAnchors["BRJ"], afternoon.Origin)
}

func TestEnrichCountsAbsentAndFailures(t *testing.T) {
	ctx := context.Background()
	store, router, enricher := newEnricherFixture(t, "A")

	router.answer = func(req routing.Request) (int, bool, error) {
		switch req.Mode {
		case models.ModeTransit:
			return 0, false, nil
		default:
			return 0, false, &routing.StatusError{Status: "UNKNOWN_ERROR"}
		}
	}

	res, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.NoError(t, err)
	require.Equal(t, 4, res.Absent)
	require.Equal(t, 4, res.Failed)
	require.Zero(t, res.Filled)

	c, err := store.GetCommute(ctx, "A")
	require.NoError(t, err)
	require.Len(t, c.Missing(), 8, "absent and failed stay missing")
}

func TestEnrichPersistsBeforeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, router, enricher := newEnricherFixture(t, "A")

	router.answer = func(req routing.Request) (int, bool, error) {
		if len(router.calls) == 3 {
			cancel()
		}
		return 30, true, nil
	}

	_, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.ErrorIs(t, err, context.Canceled)

	c, err := store.GetCommute(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, c.Missing(), 5)
	for _, attr := range models.CommuteAttributes[:3] {
		require.NotNil(t, c.Value(attr.Field), attr.Column)
	}
}

func TestEnrichSpacesCallsThroughLimiter(t *testing.T) {
	ctx := context.Background()
	_, router, enricher := newEnricherFixture(t, "A")
	enricher.limiter = rate.NewLimiter(rate.Every(20*time.Millisecond), 1)

	start := time.Now()
	res, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.NoError(t, err)
	require.Equal(t, 8, res.Filled)
	require.Equal(t, 8, router.count())

	// burst of one, then one token every 20ms for the remaining seven calls
	if elapsed := time.Since(start); elapsed < 7*20*time.Millisecond {
		t.Fatalf("8 calls took %s, limiter was not honoured", elapsed)
	}
}

func TestEnrichCancelDuringLimiterWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, router, enricher := newEnricherFixture(t, "A")
	enricher.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	router.answer = func(req routing.Request) (int, bool, error) {
		time.AfterFunc(20*time.Millisecond, cancel)
		return 30, true, nil
	}

	res, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, router.count(), "second call must stay blocked in the limiter")
	require.Equal(t, 1, res.Filled)

	c, err := store.GetCommute(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, c.Missing(), 7)
	require.NotNil(t, c.Value(models.CommuteAttributes[0].Field))
}

func TestEnrichStopsWithoutAPIKey(t *testing.T) {
	ctx := context.Background()
	_, router, enricher := newEnricherFixture(t, "A")
	router.answer = func(routing.Request) (int, bool, error) { return 0, false, routing.ErrNoAPIKey }

	_, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.True(t, errors.Is(err, routing.ErrNoAPIKey))
	require.Equal(t, 1, router.count())
}

func TestEnrichSkipsUnconfiguredAnchor(t *testing.T) {
	ctx := context.Background()
	_, router, enricher := newEnricherFixture(t, "A")
	enricher.anchors = map[string]string{"BRJ": "Anchor Road 1"}

	res, err := enricher.Enrich(ctx, eiendomOnly, models.ExportFilter{}, AutoApprove)
	require.NoError(t, err)
	require.Equal(t, 4, res.Planned)
	require.Equal(t, 4, router.count())
}
