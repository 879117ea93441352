// Package orchestrator coordinates extraction and capture. It is the
// privileged, long-lived side of the protocol: it resolves tabs, probes
// agent liveness, injects the agent on demand, issues extraction and
// capture requests over the bus, and assembles snapshot uploads.
//
// Two propagation rules shape everything here:
//
//   - Extraction errors are always recovered locally into a degraded
//     result. Some bookmark data beats no bookmark data; nothing on the
//     extraction path reaches the user as an error.
//   - Snapshot errors always propagate. A half-built snapshot would be
//     misleading, so that path fails closed.
package orchestrator

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/linkeep/linkeep/assemble"
	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/capture"
	"github.com/linkeep/linkeep/config"
	"github.com/linkeep/linkeep/remote"
	"github.com/linkeep/linkeep/store"
)

// AgentConn is a live channel into one tab's page context.
// *agent.Transport is the production implementation.
type AgentConn interface {
	bus.Target
	// Inject evaluates the agent entry script in the page. Idempotent.
	Inject(ctx context.Context, script []byte) error
}

// Tab is the orchestrator's view of one resolved tab.
type Tab interface {
	// URL returns the tab's last known URL without touching the page.
	URL() string
	// Info reads title and URL from the browser side, never the agent.
	Info(ctx context.Context) (TabInfo, error)
	// Conn returns the agent channel, or nil for metadata-only handles
	// (restricted pages that cannot host an agent).
	Conn() AgentConn
}

// TabInfo is browser-level tab metadata.
type TabInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Tabs resolves the tab a request targets. An empty pageURL means the
// current (most recently used) tab.
type Tabs interface {
	Resolve(ctx context.Context, pageURL string) (Tab, error)
}

// SnapshotBuilder turns a raw CAPTURE_PAGE_V2 payload into a finished
// capture result. *agent.Builder is the production implementation.
type SnapshotBuilder interface {
	Build(ctx context.Context, data []byte, pageURL string, req capture.Request) (*capture.Result, error)
}

// Uploader ships assembled snapshots to the bookmark backend.
// *remote.Client is the production implementation.
type Uploader interface {
	UploadSnapshot(ctx context.Context, bookmarkID string, payload *assemble.UploadPayload) (*remote.SnapshotResponse, error)
}

// Bookmarks persists bookmarks. *store.Store is the production
// implementation.
type Bookmarks interface {
	SaveBookmark(ctx context.Context, b store.Bookmark) (string, error)
}

// SettingsSource exposes stored setting overrides for hot reload.
type SettingsSource interface {
	AllSettings(ctx context.Context) (map[string]string, error)
}

// Recommender suggests tags for a page. An external AI collaborator in
// production deployments; the built-in KeywordRecommender is the
// default.
type Recommender interface {
	Recommend(ctx context.Context, info capture.PageInfo) ([]string, error)
}

// ScriptLoader resolves the agent entry script at injection time.
type ScriptLoader func() ([]byte, error)

// Orchestrator owns the extraction/capture state machine.
type Orchestrator struct {
	tabs        Tabs
	builder     SnapshotBuilder
	uploader    Uploader
	bookmarks   Bookmarks
	settings    SettingsSource
	recommender Recommender
	script      ScriptLoader
	logger      *slog.Logger

	agentCfg config.AgentConfig
	// baseline is the file-level capture config; reloads overlay stored
	// settings onto it so a deleted override falls back cleanly.
	baseline config.CaptureConfig
	// effective holds the capture defaults after setting overlays;
	// swapped atomically on reload, read per request.
	effective atomic.Pointer[config.CaptureConfig]
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithRecommender replaces the default keyword recommender.
func WithRecommender(r Recommender) Option {
	return func(o *Orchestrator) { o.recommender = r }
}

// WithSettings attaches a stored-settings source for hot reload.
func WithSettings(s SettingsSource) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// New creates an Orchestrator.
func New(tabs Tabs, builder SnapshotBuilder, uploader Uploader, bookmarks Bookmarks,
	script ScriptLoader, agentCfg config.AgentConfig, captureCfg config.CaptureConfig,
	opts ...Option) *Orchestrator {

	o := &Orchestrator{
		tabs:        tabs,
		builder:     builder,
		uploader:    uploader,
		bookmarks:   bookmarks,
		script:      script,
		logger:      slog.Default(),
		agentCfg:    agentCfg,
		baseline:    captureCfg,
		recommender: NewKeywordRecommender(0),
	}
	o.effective.Store(&captureCfg)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CaptureDefaults returns the current effective capture configuration.
func (o *Orchestrator) CaptureDefaults() config.CaptureConfig {
	return *o.effective.Load()
}

// captureRequest builds an immutable capture request from the current
// defaults.
func (o *Orchestrator) captureRequest() capture.Request {
	cfg := o.CaptureDefaults()
	return capture.Request{
		Mode: capture.ModeMarkupImages,
		Options: capture.Options{
			InlineCSS:            cfg.InlineCSS,
			ExtractImages:        cfg.ExtractImages,
			InlineFonts:          cfg.InlineFonts,
			RemoveScripts:        cfg.RemoveScripts,
			RemoveHiddenElements: cfg.RemoveHiddenElements,
			FailClosed:           cfg.FailClosed,
			MaxImageSize:         cfg.MaxImageSize,
			TimeoutMs:            cfg.Timeout.Milliseconds(),
		},
	}
}
