package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linkeep/linkeep/assemble"
	"github.com/linkeep/linkeep/bus"
)

// SnapshotRequest asks for a self-contained snapshot of the page at URL
// to be attached to an existing bookmark.
type SnapshotRequest struct {
	BookmarkID string `json:"bookmarkId"`
	Title      string `json:"title"`
	URL        string `json:"url"`
}

// SnapshotResult reports a completed snapshot upload.
type SnapshotResult struct {
	SnapshotID string `json:"snapshotId,omitempty"`
	ImageCount int    `json:"imageCount"`
	Partial    bool   `json:"partial,omitempty"`
}

// ErrRestrictedPage is returned when a snapshot targets a page that
// cannot host an agent.
type ErrRestrictedPage struct {
	URL string
}

func (e *ErrRestrictedPage) Error() string {
	return fmt.Sprintf("orchestrator: page cannot be captured: %s", e.URL)
}

// CreateSnapshot captures the page, assembles the upload, and ships it.
// Unlike extraction there is no degraded mode: every failure on this
// path propagates, because an incomplete snapshot is worse than none.
//
// One hard timeout bounds the whole operation: the capture request,
// the image retrieval, and the upload. It is strictly greater than the
// agent's own internal deadline, so the transport cannot cut off a
// partial-but-useful result milliseconds before the agent returned it.
//
// Two concurrent snapshots for the same bookmark are not serialized;
// the backend sees both uploads and the later one wins.
func (o *Orchestrator) CreateSnapshot(ctx context.Context, req SnapshotRequest) (*SnapshotResult, error) {
	if req.BookmarkID == "" {
		return nil, fmt.Errorf("orchestrator: snapshot needs a bookmark id")
	}

	tab, err := o.tabs.Resolve(ctx, req.URL)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve tab: %w", err)
	}
	if Restricted(tab.URL()) {
		return nil, &ErrRestrictedPage{URL: tab.URL()}
	}
	conn := tab.Conn()
	if conn == nil {
		return nil, &bus.ErrDeliveryFailure{Target: tab.URL()}
	}

	if state := o.ensureAlive(ctx, conn, tab.URL()); state != LivenessAlive {
		return nil, &bus.ErrDeliveryFailure{Target: tab.URL()}
	}

	capReq := o.captureRequest()
	optsJSON, err := json.Marshal(capReq.Options)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: marshal capture options: %w", err)
	}

	hard := o.CaptureDefaults().HardTimeout
	ctx, cancel := context.WithTimeout(ctx, hard)
	defer cancel()

	data, err := bus.Send(ctx, conn, bus.TypeCapturePageV2, optsJSON, hard)
	if err != nil {
		o.logger.Warn("orchestrator: capture failed",
			"bookmark", req.BookmarkID, "url", tab.URL(), "error", err)
		return nil, err
	}

	result, err := o.builder.Build(ctx, data, tab.URL(), capReq)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &bus.ErrTimeout{Type: bus.TypeCapturePageV2, Timeout: hard}
		}
		o.logger.Warn("orchestrator: snapshot assembly failed",
			"bookmark", req.BookmarkID, "url", tab.URL(), "error", err)
		return nil, err
	}

	payload := assemble.Build(result, req.Title, tab.URL())
	resp, err := o.uploader.UploadSnapshot(ctx, req.BookmarkID, payload)
	if err != nil {
		return nil, err
	}

	o.logger.Info("orchestrator: snapshot created",
		"bookmark", req.BookmarkID, "images", len(payload.Images), "partial", result.Partial)
	return &SnapshotResult{
		SnapshotID: resp.ID,
		ImageCount: len(payload.Images),
		Partial:    result.Partial,
	}, nil
}
