package httputil

import (
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"finnsync/config"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Clients struct {
	Scraping *resty.Client // optionally proxied, for finn.no
	API      *resty.Client // direct, for the routing provider
}

func NewClients(cfg config.ScraperConfig) *Clients {
	return &Clients{
		Scraping: NewScrapingClient(cfg),
		API:      NewAPIClient(10 * time.Second),
	}
}

// NewScrapingClient returns a browser-like client. When a proxy is set the
// transport is pinned to HTTP/1.1.
func NewScrapingClient(cfg config.ScraperConfig) *resty.Client {
	client := resty.New()
	client.SetHeader("User-Agent", userAgent)
	client.SetHeader("Accept-Language", "nb-NO,nb;q=0.9,no;q=0.8,en;q=0.6")
	client.SetTimeout(15 * time.Second)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(2 * time.Second)
	client.AddRetryCondition(func(res *resty.Response, err error) bool {
		return err != nil || res.StatusCode() == http.StatusTooManyRequests || res.StatusCode() >= 500
	})

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			slog.Warn("ignoring invalid proxy url", "error", err)
		} else {
			client.SetTransport(&http.Transport{
				Proxy:             http.ProxyURL(proxyURL),
				ForceAttemptHTTP2: false,
				TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
			})
		}
	}

	logRequests(client)
	if cfg.DelayMS > 0 {
		RateLimit(client, rate.NewLimiter(rate.Every(time.Duration(cfg.DelayMS)*time.Millisecond), 1))
	}
	return client
}

func NewAPIClient(timeout time.Duration) *resty.Client {
	client := resty.New()
	client.SetTimeout(timeout)
	logRequests(client)
	return client
}

// NewLimiter returns a token bucket allowing rps requests per second.
// Zero or negative means unlimited.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RateLimit makes every request on client wait for the limiter first.
func RateLimit(client *resty.Client, limiter *rate.Limiter) {
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
}

func logRequests(client *resty.Client) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		slog.Debug("http response",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"status", res.StatusCode(),
			"took", res.Time(),
		)
		return nil
	})
}
