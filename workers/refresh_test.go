package workers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"finnsync/models"
	"finnsync/storage"

	"github.com/stretchr/testify/require"
)

type fakeChecker map[string]CheckResult

func (f fakeChecker) CheckStatus(ctx context.Context, kind models.Kind, url string) CheckResult {
	return f[url]
}

func TestRefreshKind(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	for _, key := range []string{"A", "B", "C", "D"} {
		_, err := store.Upsert(ctx, models.Listing{Kind: models.KindEiendom, Key: key, URL: "u/" + key})
		require.NoError(t, err)
	}
	_, err = store.MarkExported(ctx, models.KindEiendom, []string{"A", "B", "C", "D"})
	require.NoError(t, err)

	checker := fakeChecker{
		"u/A": {IsLive: true, StatusCode: 200, Status: "Solgt"},
		"u/B": {IsLive: true, StatusCode: 200},
		"u/C": {IsLive: false, StatusCode: 404},
		"u/D": {Error: errors.New("timeout")},
	}
	w := NewRefreshWorker(store, checker, 0)

	res, err := w.RefreshKind(ctx, models.KindEiendom, 0)
	require.NoError(t, err)
	require.Equal(t, 4, res.Checked)
	require.Equal(t, 1, res.Errors)
	require.Len(t, res.Changes, 2)

	a, err := store.GetListing(ctx, models.KindEiendom, "A")
	require.NoError(t, err)
	require.Equal(t, "Solgt", a.Status)

	c, err := store.GetListing(ctx, models.KindEiendom, "C")
	require.NoError(t, err)
	require.Equal(t, models.StatusRemoved, c.Status)

	// statuses are now stored, so a second pass finds nothing new
	res, err = w.RefreshKind(ctx, models.KindEiendom, 0)
	require.NoError(t, err)
	require.Empty(t, res.Changes)
}

type countingChecker struct {
	calls atomic.Int32
}

func (c *countingChecker) CheckStatus(ctx context.Context, kind models.Kind, url string) CheckResult {
	c.calls.Add(1)
	return CheckResult{IsLive: true, StatusCode: 200}
}

func TestRefreshWaitsForLocker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Upsert(ctx, models.Listing{Kind: models.KindEiendom, Key: "A", URL: "u/A"})
	require.NoError(t, err)
	_, err = store.MarkExported(ctx, models.KindEiendom, []string{"A"})
	require.NoError(t, err)

	var mu sync.Mutex
	checker := &countingChecker{}
	w := NewRefreshWorker(store, checker, 0)
	w.SetLocker(&mu)

	mu.Lock()
	done := make(chan struct{})
	go func() {
		w.Run(ctx, []models.Kind{models.KindEiendom}, time.Hour)
		close(done)
	}()
	w.Trigger()

	time.Sleep(20 * time.Millisecond)
	require.Zero(t, checker.calls.Load(), "refresh must wait while a run holds the lock")

	mu.Unlock()
	require.Eventually(t, func() bool { return checker.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	<-done
}
