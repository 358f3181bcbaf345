package fetch

import (
	"context"
	"fmt"

	"prodintel/internal/logger"

	"github.com/playwright-community/playwright-go"
)

// Browser renders JavaScript-driven pages with headless Chromium for sites
// that serve an empty application shell to plain HTTP clients.
type Browser struct {
	log *logger.Logger
}

func NewBrowser(log *logger.Logger) *Browser {
	return &Browser{log: log}
}

// Render loads the page in a headless browser and returns the DOM after
// client-side rendering has settled.
func (b *Browser) Render(ctx context.Context, rawURL string, strategy HeaderStrategy) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("playwright run: %w", err)
	}
	defer pw.Stop()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
		},
	})
	if err != nil {
		return "", fmt.Errorf("launch: %w", err)
	}
	defer browser.Close()

	profile := GetHeaderProfile(strategy)
	headers := map[string]string{
		"Accept":          profile.Accept,
		"Accept-Language": profile.AcceptLanguage,
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(profile.UserAgent),
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		return "", err
	}
	page, err := bctx.NewPage()
	if err != nil {
		return "", err
	}

	if _, err := page.Goto(rawURL, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded, Timeout: playwright.Float(10000)}); err != nil {
		// fallback to full load with a longer timeout
		if _, err = page.Goto(rawURL, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad, Timeout: playwright.Float(20000)}); err != nil {
			return "", fmt.Errorf("goto failed: %w", err)
		}
	}

	b.waitForContent(page, rawURL)

	return page.Content()
}

// waitForContent gives client-side rendering a bounded window to settle,
// comparing content signatures before and after.
func (b *Browser) waitForContent(page playwright.Page, url string) {
	initial, err := signatureOf(page)
	if err != nil {
		b.log.LogWarnf("failed to read initial content signature for %s: %v", url, err)
		return
	}

	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(7000),
	})

	final, err := signatureOf(page)
	if err != nil {
		return
	}
	if final.GrewFrom(initial) {
		b.log.LogDebugf("javascript rendered new content for %s: %d->%d chars, %d->%d elements",
			url, initial.TextLength, final.TextLength, initial.ElementCount, final.ElementCount)
	} else {
		b.log.LogWarnf("no significant content change detected for %s", url)
	}
}

// ContentSignature captures the essential state of page content for
// before/after comparison.
type ContentSignature struct {
	TextLength   int
	ElementCount int
	LinkCount    int
}

// GrewFrom reports whether the page gained meaningful content since the
// initial snapshot. 20%+ text growth counts, as does new content appearing on
// a near-empty page.
func (cs *ContentSignature) GrewFrom(initial *ContentSignature) bool {
	if initial.TextLength > 100 {
		growth := float64(cs.TextLength-initial.TextLength) / float64(initial.TextLength)
		return growth >= 0.2
	}
	return cs.TextLength > 200
}

func signatureOf(page playwright.Page) (*ContentSignature, error) {
	result, err := page.Evaluate(`() => ({
		textLength: (document.body && document.body.innerText || '').length,
		elementCount: document.querySelectorAll('*').length,
		linkCount: document.querySelectorAll('a[href]').length,
	})`)
	if err != nil {
		return nil, err
	}

	sig := &ContentSignature{}
	if m, ok := result.(map[string]interface{}); ok {
		sig.TextLength = intFrom(m["textLength"])
		sig.ElementCount = intFrom(m["elementCount"])
		sig.LinkCount = intFrom(m["linkCount"])
	}
	return sig, nil
}

func intFrom(v interface{}) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	}
	return 0
}
