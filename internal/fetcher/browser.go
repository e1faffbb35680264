package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/Holocron/internal/config"
	"github.com/IshaanNene/Holocron/internal/types"
)

// BrowserSource renders pages in a headless browser and returns the HTML
// of the content element. The index is still read through the API.
type BrowserSource struct {
	*MediaWikiSource

	browser  *rod.Browser
	page     *rod.Page
	selector string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewBrowserSource launches Chromium and opens one reusable tab.
func NewBrowserSource(cfg *config.Config, index string, logger *slog.Logger) (*BrowserSource, error) {
	bs := &BrowserSource{
		MediaWikiSource: NewMediaWikiSource(cfg, index, logger),
		selector:        cfg.Fetcher.Selector,
		timeout:         cfg.Fetcher.Timeout,
		logger:          logger.With("component", "browser_source"),
	}

	launchURL, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if cfg.Fetcher.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.Wiki.UserAgent}); err != nil {
		bs.logger.Warn("failed to set user agent", "error", err)
	}

	bs.browser = browser
	bs.page = page
	bs.logger.Info("browser source ready", "selector", bs.selector, "stealth", cfg.Fetcher.Stealth)
	return bs, nil
}

func (bs *BrowserSource) Type() string { return "browser" }

// Fetch navigates to the article and returns the rendered content element.
func (bs *BrowserSource) Fetch(ctx context.Context, title string) (*types.SourcePage, error) {
	start := time.Now()
	pageURL := bs.baseURL + url.PathEscape(title)
	page := bs.page.Context(ctx).Timeout(bs.timeout)

	if err := page.Navigate(pageURL); err != nil {
		return nil, &types.FetchError{Title: title, Err: err}
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		bs.logger.Warn("page stability timeout, continuing", "title", title, "error", err)
	}

	el, err := page.Element(bs.selector)
	if err != nil {
		return nil, &types.FetchError{Title: title, Err: fmt.Errorf("%w: %s not found: %v", types.ErrEmptyContent, bs.selector, err)}
	}
	html, err := el.HTML()
	if err != nil {
		return nil, &types.FetchError{Title: title, Err: err}
	}

	sp := &types.SourcePage{
		Title:     title,
		Content:   html,
		Format:    types.FormatHTML,
		SourceURL: pageURL,
		FetchedAt: time.Now().UTC(),
	}
	sp.PageID = bs.configInt(page, "wgArticleId")
	sp.RevisionID = bs.configInt(page, "wgRevisionId")

	bs.logger.Debug("browser fetch complete",
		"title", title,
		"size", len(html),
		"duration", time.Since(start),
	)
	return sp, nil
}

// configInt reads a numeric MediaWiki page config value; zero when absent.
func (bs *BrowserSource) configInt(page *rod.Page, key string) int64 {
	res, err := page.Eval(`(k) => (window.mw && mw.config.get(k)) || 0`, key)
	if err != nil {
		bs.logger.Debug("page config unavailable", "key", key, "error", err)
		return 0
	}
	return int64(res.Value.Int())
}

// Close shuts down the browser and releases resources.
func (bs *BrowserSource) Close() error {
	_ = bs.MediaWikiSource.Close()
	if bs.page != nil {
		_ = bs.page.Close()
	}
	if bs.browser != nil {
		return bs.browser.Close()
	}
	return nil
}
