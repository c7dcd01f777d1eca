package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finnsync/config"
	"finnsync/identity"
	"finnsync/models"

	"golang.org/x/time/rate"
)

// ErrIncompleteCrawl means pagination stopped early, so the snapshot does
// not list every live ad.
var ErrIncompleteCrawl = errors.New("crawl incomplete")

const maxResultPages = 100

// Crawler walks the result pages of one site and fetches every ad on them.
type Crawler struct {
	fetcher Fetcher
	site    *config.SiteConfig
	pattern *regexp.Regexp
	limiter *rate.Limiter
}

func NewCrawler(fetcher Fetcher, site *config.SiteConfig) (*Crawler, error) {
	if site.SearchURL == "" {
		return nil, fmt.Errorf("site %s has no search_url", site.ID)
	}
	pattern, err := regexp.Compile(site.LinkPattern)
	if err != nil {
		return nil, fmt.Errorf("site %s: bad link_pattern: %w", site.ID, err)
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if site.DelayMS > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Duration(site.DelayMS)*time.Millisecond), 1)
	}
	return &Crawler{fetcher: fetcher, site: site, pattern: pattern, limiter: limiter}, nil
}

// PageURL is the address of result page n (1-based).
func (c *Crawler) PageURL(n int) string {
	if n <= 1 {
		return c.site.SearchURL
	}
	sep := "&"
	if !strings.Contains(c.site.SearchURL, "?") {
		sep = "?"
	}
	return c.site.SearchURL + sep + c.site.PageParam + "=" + strconv.Itoa(n)
}

// CollectLinks pages through the search until a page has no ad links. It
// returns the links gathered so far together with ErrIncompleteCrawl when
// a result page fails.
func (c *Crawler) CollectLinks(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var links []string

	for n := 1; ; n++ {
		if n > maxResultPages {
			return links, fmt.Errorf("%w: stopped after %d result pages", ErrIncompleteCrawl, maxResultPages)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return links, fmt.Errorf("%w: %v", ErrIncompleteCrawl, err)
		}

		page, err := c.fetcher.Fetch(ctx, c.PageURL(n))
		if err != nil {
			return links, fmt.Errorf("%w: result page %d: %v", ErrIncompleteCrawl, n, err)
		}
		found, err := ExtractLinks(page.Body, c.site.BaseURL, c.pattern)
		if err != nil {
			return links, fmt.Errorf("%w: result page %d: %v", ErrIncompleteCrawl, n, err)
		}

		added := 0
		for _, l := range found {
			if !seen[l] {
				seen[l] = true
				links = append(links, l)
				added++
			}
		}
		slog.Info("Result page", "kind", c.site.ID, "page", n, "links", len(found), "total", len(links))

		// past the last page finn repeats promoted ads, so stop on no new links too
		if len(found) == 0 || added == 0 {
			return links, nil
		}
	}
}

// Crawl collects the ad links and parses every ad. A failing ad page is
// logged and skipped but its key stays in the snapshot; an ad that is gone
// (404/410) is left out. The returned error is non-nil when the snapshot is
// incomplete.
func (c *Crawler) Crawl(ctx context.Context) (models.Snapshot, error) {
	snap := models.Snapshot{Kind: c.site.ID}

	links, crawlErr := c.CollectLinks(ctx)
	if crawlErr != nil {
		slog.Warn("Pagination aborted", "kind", c.site.ID, "error", crawlErr)
	}

	for i, link := range links {
		key := identity.KeyFromURL(link)
		if key == "" {
			slog.Warn("No key in ad link", "url", link)
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return snap, fmt.Errorf("%w: %v", ErrIncompleteCrawl, err)
		}

		page, err := c.fetcher.Fetch(ctx, link)
		if err != nil {
			if IsNotFound(err) {
				slog.Info("Ad gone", "kind", c.site.ID, "key", key)
				continue
			}
			if ctx.Err() != nil {
				return snap, fmt.Errorf("%w: %v", ErrIncompleteCrawl, ctx.Err())
			}
			snap.Keys = append(snap.Keys, key)
			snap.Failed++
			slog.Warn("Fetch ad failed", "kind", c.site.ID, "key", key, "error", err)
			continue
		}
		snap.Keys = append(snap.Keys, key)

		raw, err := ParseAd(c.site.ID, link, page.Body)
		if err != nil {
			snap.Failed++
			slog.Warn("Parse ad failed", "kind", c.site.ID, "key", key, "error", err)
			continue
		}
		snap.Records = append(snap.Records, raw)

		if (i+1)%25 == 0 {
			slog.Info("Crawl progress", "kind", c.site.ID, "done", i+1, "total", len(links))
		}
	}

	snap.Complete = crawlErr == nil
	return snap, crawlErr
}
