package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Info is the browser-level view of a tab: what the orchestrator can
// know without ever contacting a page agent.
type Info struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Tab wraps a Rod page with linkeep-specific setup.
type Tab struct {
	Page    *rod.Page
	PageURL string
	PageID  string
}

// OpenTab creates a new tab with stealth applied and navigates to the
// URL. Navigation and load wait share a 30s bound; a load-wait timeout
// is logged, not fatal — captures work on partially loaded pages.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, PageID: pageID}, nil
}

// Info reads the tab's current title and URL directly from the browser,
// without touching the page's JS context.
func (t *Tab) Info(ctx context.Context) (Info, error) {
	info := Info{ID: t.PageID, URL: t.PageURL}
	ti, err := proto.TargetGetTargetInfo{TargetID: t.Page.TargetID}.Call(t.Page.Context(ctx))
	if err != nil {
		return info, fmt.Errorf("browser: target info: %w", err)
	}
	info.Title = ti.TargetInfo.Title
	info.URL = ti.TargetInfo.URL
	return info, nil
}

// Eval runs a JS function expression in the page and returns the raw
// Rod result.
func (t *Tab) Eval(ctx context.Context, js string, args ...any) (*proto.RuntimeRemoteObject, error) {
	res, err := t.Page.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("browser: eval: %w", err)
	}
	return res, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}
