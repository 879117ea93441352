package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/linkeep/linkeep/agent"
	"github.com/linkeep/linkeep/idgen"
	"github.com/linkeep/linkeep/internal/browser"
)

// RodTabs resolves tabs against a live Chrome through Rod. The most
// recently resolved tab is the "current" tab; resolving the same URL
// again reuses its tab instead of opening a duplicate.
type RodTabs struct {
	mgr    *browser.Manager
	logger *slog.Logger

	mu      sync.Mutex
	current *rodTab
}

// NewRodTabs creates a resolver bound to a browser manager.
func NewRodTabs(mgr *browser.Manager, logger *slog.Logger) *RodTabs {
	if logger == nil {
		logger = slog.Default()
	}
	return &RodTabs{mgr: mgr, logger: logger}
}

// Resolve returns the tab for pageURL, opening one if needed. An empty
// pageURL returns the current tab. Restricted URLs resolve to a
// metadata-only handle without touching the browser — those pages
// cannot host an agent, and Chrome will not script them anyway.
func (t *RodTabs) Resolve(ctx context.Context, pageURL string) (Tab, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pageURL == "" {
		if t.current != nil {
			return t.current, nil
		}
		return nil, &ErrNoActiveTab{}
	}

	if Restricted(pageURL) {
		return &restrictedTab{url: pageURL}, nil
	}

	if t.current != nil && t.current.tab.PageURL == pageURL {
		return t.current, nil
	}

	if t.current != nil {
		if err := t.current.tab.Close(); err != nil {
			t.logger.Debug("orchestrator: close previous tab", "error", err)
		}
		t.current = nil
	}

	tab, err := browser.OpenTab(ctx, t.mgr, pageURL, newTabID())
	if err != nil {
		return nil, err
	}
	t.current = &rodTab{
		tab:  tab,
		conn: agent.NewTransport(tab, t.logger),
	}
	return t.current, nil
}

// Close releases the current tab.
func (t *RodTabs) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.tab.Close()
		t.current = nil
	}
}

// ErrNoActiveTab is returned when a request targets the current tab but
// none is open.
type ErrNoActiveTab struct{}

func (e *ErrNoActiveTab) Error() string {
	return "orchestrator: no active tab"
}

type rodTab struct {
	tab  *browser.Tab
	conn *agent.Transport
}

func (r *rodTab) URL() string { return r.tab.PageURL }

func (r *rodTab) Info(ctx context.Context) (TabInfo, error) {
	info, err := r.tab.Info(ctx)
	if err != nil {
		return TabInfo{ID: r.tab.PageID, URL: r.tab.PageURL}, err
	}
	return TabInfo(info), nil
}

func (r *rodTab) Conn() AgentConn { return r.conn }

// restrictedTab is a metadata-only handle for pages that cannot host an
// agent. Its title is unknown: browser-internal pages are never opened.
type restrictedTab struct {
	url string
}

func (r *restrictedTab) URL() string { return r.url }

func (r *restrictedTab) Info(context.Context) (TabInfo, error) {
	return TabInfo{URL: r.url}, nil
}

func (r *restrictedTab) Conn() AgentConn { return nil }

var newTabID = idgen.Prefixed("tab_", idgen.Default)
