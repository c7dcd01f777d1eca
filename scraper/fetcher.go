package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// Page is a fetched HTML document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher loads a page. Implementations return a *StatusError for HTTP
// error statuses.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// IsNotFound reports whether err means the page no longer exists.
func IsNotFound(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusNotFound || se.Code == http.StatusGone
	}
	return false
}

type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(client *resty.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	page := &Page{URL: url, StatusCode: resp.StatusCode(), Body: resp.Body()}
	if resp.StatusCode() >= 400 {
		return page, &StatusError{URL: url, Code: resp.StatusCode()}
	}
	return page, nil
}
