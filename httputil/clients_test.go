package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"finnsync/config"

	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewLimiterUnlimited(t *testing.T) {
	l := NewLimiter(0)
	require.Equal(t, rate.Inf, l.Limit())

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestNewLimiterFractional(t *testing.T) {
	l := NewLimiter(0.5)
	require.Equal(t, rate.Limit(0.5), l.Limit())
	require.Equal(t, 1, l.Burst())
}

func TestScrapingClientSendsUserAgent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("User-Agent") != userAgent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewScrapingClient(config.ScraperConfig{})
	res, err := client.R().Get(srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, "ok", res.String())
	require.EqualValues(t, 1, hits.Load())
}

func TestRateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := NewAPIClient(time.Second)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	RateLimit(client, limiter)

	_, err := client.R().Get(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.R().SetContext(ctx).Get(srv.URL)
	require.Error(t, err)
}
