package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// BrowserFetcher renders pages in headless Chromium. It is slower than
// HTTPFetcher and only used when plain requests get blocked.
type BrowserFetcher struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	initialized bool
	consentDone bool
}

func NewBrowserFetcher() *BrowserFetcher {
	return &BrowserFetcher{}
}

func (f *BrowserFetcher) ensureBrowser() error {
	if f.initialized {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(browserUserAgent),
		Locale:    playwright.String("nb-NO"),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	f.pw, f.browser, f.context = pw, browser, bctx
	f.initialized = true
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := f.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(60000),
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	if !f.consentDone {
		f.handleConsent(page)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	result := &Page{URL: url, StatusCode: 200, Body: []byte(content)}
	if resp != nil {
		result.StatusCode = resp.Status()
	}
	if result.StatusCode >= 400 {
		return result, &StatusError{URL: url, Code: result.StatusCode}
	}
	return result, nil
}

// handleConsent dismisses the cookie dialog once per browser session.
func (f *BrowserFetcher) handleConsent(page playwright.Page) {
	consentSelectors := []string{
		"button:has-text('Godta alle')",
		"button:has-text('Godta')",
		"button[title*='Godta']",
		"#didomi-notice-agree-button",
		"button:has-text('Accept')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			slog.Debug("Clicking consent button", "selector", selector)
			if err := btn.Click(); err == nil {
				f.consentDone = true
				page.WaitForTimeout(1000)
			}
			return
		}
	}
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.context != nil {
		f.context.Close()
	}
	if f.browser != nil {
		f.browser.Close()
	}
	if f.pw != nil {
		f.pw.Stop()
	}
	f.initialized = false
	f.consentDone = false
}
