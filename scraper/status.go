package scraper

import (
	"bytes"
	"context"
	"errors"

	"finnsync/models"
	"finnsync/workers"

	"github.com/PuerkitoBio/goquery"
)

// StatusChecker re-reads the status badge of a single ad.
type StatusChecker struct {
	fetcher Fetcher
}

func NewStatusChecker(fetcher Fetcher) *StatusChecker {
	return &StatusChecker{fetcher: fetcher}
}

func (c *StatusChecker) CheckStatus(ctx context.Context, kind models.Kind, url string) workers.CheckResult {
	page, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		var se *StatusError
		if IsNotFound(err) && errors.As(err, &se) {
			return workers.CheckResult{IsLive: false, StatusCode: se.Code}
		}
		result := workers.CheckResult{Error: err}
		if page != nil {
			result.StatusCode = page.StatusCode
		}
		return result
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return workers.CheckResult{StatusCode: page.StatusCode, Error: err}
	}
	return workers.CheckResult{IsLive: true, StatusCode: page.StatusCode, Status: ParseStatus(doc)}
}
