package orchestrator

import (
	"context"
	"strings"

	"github.com/linkeep/linkeep/agent"
	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/capture"
)

// restrictedPrefixes are URL schemes that cannot host an injected
// agent: browser-internal pages, extension pages, source views. An
// empty URL counts as restricted too.
var restrictedPrefixes = []string{
	"chrome://",
	"chrome-extension://",
	"edge://",
	"about:",
	"devtools://",
	"view-source:",
	"moz-extension://",
}

// Restricted reports whether a URL cannot be captured.
func Restricted(pageURL string) bool {
	if pageURL == "" {
		return true
	}
	for _, p := range restrictedPrefixes {
		if strings.HasPrefix(pageURL, p) {
			return true
		}
	}
	return false
}

// AttemptOutcome is the final result of one extraction. It is always
// produced — a total failure degrades to synthesized data rather than
// surfacing an error.
type AttemptOutcome struct {
	Info     *capture.PageInfo
	Degraded bool
	Reason   string
}

// ExtractPageInfo runs the extraction ladder for the tab at pageURL
// (empty = current tab):
//
//  1. Restricted URL → degraded PageInfo from tab metadata, zero agent
//     contact.
//  2. Liveness probe; on failure one injection attempt and one re-probe.
//  3. Extraction request with the long timeout; response shape
//     validated.
//  4. Fallback: tab metadata only.
//  5. Last resort: the known URL plus "Untitled".
func (o *Orchestrator) ExtractPageInfo(ctx context.Context, pageURL string) AttemptOutcome {
	tab, err := o.tabs.Resolve(ctx, pageURL)
	if err != nil {
		o.logger.Warn("orchestrator: tab resolve failed", "url", pageURL, "error", err)
		return synthesized(pageURL, "tab unavailable")
	}

	if Restricted(tab.URL()) {
		o.logger.Debug("orchestrator: restricted page, skipping agent", "url", tab.URL())
		return o.fallback(ctx, tab, "restricted page")
	}

	conn := tab.Conn()
	if conn == nil {
		return o.fallback(ctx, tab, "no agent channel")
	}

	if state := o.ensureAlive(ctx, conn, tab.URL()); state != LivenessAlive {
		return o.fallback(ctx, tab, "agent unreachable")
	}

	data, err := bus.Send(ctx, conn, bus.TypeExtractPageInfo, nil, o.agentCfg.ExtractTimeout)
	if err != nil {
		o.logger.Warn("orchestrator: extraction failed", "url", tab.URL(), "error", err)
		return o.fallback(ctx, tab, "extraction failed")
	}

	info, err := agent.DecodePageInfo(data)
	if err != nil {
		o.logger.Warn("orchestrator: extraction response invalid", "url", tab.URL(), "error", err)
		return o.fallback(ctx, tab, "invalid response")
	}

	return AttemptOutcome{Info: info}
}

// fallback builds a degraded PageInfo from browser-side tab metadata.
// It cannot fail to produce a result: when even the tab lookup errors,
// the outcome is synthesized from the last known URL.
func (o *Orchestrator) fallback(ctx context.Context, tab Tab, reason string) AttemptOutcome {
	info, err := tab.Info(ctx)
	if err != nil {
		o.logger.Warn("orchestrator: tab metadata lookup failed", "error", err)
		return synthesized(tab.URL(), reason)
	}

	title := info.Title
	if title == "" {
		title = "Untitled"
	}
	return AttemptOutcome{
		Info: &capture.PageInfo{
			Title: title,
			URL:   info.URL,
		},
		Degraded: true,
		Reason:   reason,
	}
}

func synthesized(pageURL, reason string) AttemptOutcome {
	return AttemptOutcome{
		Info:     &capture.PageInfo{Title: "Untitled", URL: pageURL},
		Degraded: true,
		Reason:   reason,
	}
}
