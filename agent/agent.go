// Package agent drives the page-context capture agent: a JS module
// injected into the page's own execution context. The agent owns all
// DOM access; the orchestrator only ever talks to it through the bus.
//
// Lifecycle per page load: not-loaded → injected → alive, until the
// page navigates or unloads, which destroys the instance. Injection is
// idempotent — the script guards itself with a module-scoped flag — so
// a double inject is harmless.
package agent

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/internal/browser"
)

//go:embed agent.js
var agentJS []byte

// Script returns the agent entry script. When scriptPath is non-empty
// the script is read from that configured path instead of the embedded
// asset; injection always resolves through this indirection.
func Script(scriptPath string) ([]byte, error) {
	if scriptPath == "" {
		return agentJS, nil
	}
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("agent: read entry script %s: %w", scriptPath, err)
	}
	return data, nil
}

// rawPageInfo is the agent's wire shape for EXTRACT_PAGE_INFO. The
// contentHtml field is converted to readable text on the Go side.
type rawPageInfo struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	ContentHTML string   `json:"contentHtml"`
	Thumbnail   string   `json:"thumbnail"`
	Thumbnails  []string `json:"thumbnails"`
	Favicon     string   `json:"favicon"`
}

// rawCapture is the agent's wire shape for CAPTURE_PAGE_V2. Image bytes
// are fetched, hashed, and deduplicated on the Go side.
type rawCapture struct {
	HTML      string   `json:"html"`
	ImageURLs []string `json:"imageUrls"`
	Partial   bool     `json:"partial"`
}

// Transport delivers bus messages into a tab's page context by
// evaluating the agent's dispatcher. It implements bus.Target.
type Transport struct {
	tab    *browser.Tab
	logger *slog.Logger
}

// NewTransport wraps a tab as a bus target.
func NewTransport(tab *browser.Tab, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{tab: tab, logger: logger}
}

// Deliver evaluates window.__linkeep.handle in the page. An eval
// failure means the target context is absent or unreachable (agent not
// injected, page navigated away, tab closed) and is reported as a
// delivery failure — JS-level errors inside a live agent come back in
// the envelope instead.
func (t *Transport) Deliver(ctx context.Context, msgType string, payload []byte) ([]byte, error) {
	res, err := t.tab.Eval(ctx,
		`(t, p) => window.__linkeep.handle(t, p)`, msgType, string(payload))
	if err != nil {
		return nil, &bus.ErrDeliveryFailure{Target: t.tab.PageID, Cause: err}
	}

	raw := res.Value.Str()

	var env bus.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, &bus.ErrInvalidResponse{Type: msgType, Reason: "envelope is not JSON"}
	}
	if !env.Success {
		return nil, &bus.ErrAgentInternal{Type: msgType, Cause: fmt.Errorf("%s", env.Error)}
	}
	if len(env.Data) == 0 {
		return nil, &bus.ErrInvalidResponse{Type: msgType, Reason: "missing data payload"}
	}
	return env.Data, nil
}

// Inject evaluates the agent entry script in the tab. Safe to call on a
// page that already carries an agent — the script's init guard makes a
// second injection a no-op.
func (t *Transport) Inject(ctx context.Context, script []byte) error {
	if _, err := t.tab.Eval(ctx, string(script)); err != nil {
		return fmt.Errorf("agent: inject: %w", err)
	}
	t.logger.Debug("agent: injected", "page", t.tab.PageID, "url", t.tab.PageURL)
	return nil
}

// IsPong reports whether a PING response payload is the expected pong.
func IsPong(data []byte) bool {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return false
	}
	return strings.EqualFold(s, "pong")
}
