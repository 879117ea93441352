package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/capture"
	"github.com/linkeep/linkeep/store"
)

// extractRequest is the UI payload for EXTRACT_PAGE_INFO. An empty URL
// targets the current tab.
type extractRequest struct {
	URL string `json:"url,omitempty"`
}

// SaveRequest is the UI payload for SAVE_BOOKMARK.
type SaveRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Thumbnail   string   `json:"thumbnail"`
	Favicon     string   `json:"favicon"`
	Tags        []string `json:"tags"`
}

// SaveResult reports a stored bookmark, or the existing one when the
// URL was already saved.
type SaveResult struct {
	ID            string `json:"id"`
	AlreadyExists bool   `json:"alreadyExists,omitempty"`
}

// RegisterBus installs the orchestrator's handlers on the dispatcher.
// This is the UI-facing half of the protocol; every handler answers
// through the uniform envelope.
func (o *Orchestrator) RegisterBus(d *bus.Dispatcher) {
	d.Register(bus.TypeExtractPageInfo, o.handleExtract)
	d.Register(bus.TypeCreateSnapshot, o.handleSnapshot)
	d.Register(bus.TypeSaveBookmark, o.handleSave)
	d.Register(bus.TypeRecommendTags, o.handleRecommend)
	d.Register(bus.TypeGetConfig, o.handleGetConfig)
}

// handleExtract never returns an error: the extraction ladder absorbs
// every failure into a degraded PageInfo.
func (o *Orchestrator) handleExtract(ctx context.Context, payload json.RawMessage) (any, error) {
	var req extractRequest
	if len(payload) > 0 {
		// A malformed payload degrades to "current tab" rather than
		// failing the extraction.
		_ = json.Unmarshal(payload, &req)
	}
	outcome := o.ExtractPageInfo(ctx, req.URL)
	return outcome.Info, nil
}

func (o *Orchestrator) handleSnapshot(ctx context.Context, payload json.RawMessage) (any, error) {
	var req SnapshotRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("orchestrator: snapshot payload: %w", err)
	}
	return o.CreateSnapshot(ctx, req)
}

func (o *Orchestrator) handleSave(ctx context.Context, payload json.RawMessage) (any, error) {
	var req SaveRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("orchestrator: save payload: %w", err)
	}

	id, err := o.bookmarks.SaveBookmark(ctx, store.Bookmark{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Thumbnail:   req.Thumbnail,
		Favicon:     req.Favicon,
		Tags:        req.Tags,
	})
	if errors.Is(err, store.ErrExists) {
		return &SaveResult{ID: id, AlreadyExists: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &SaveResult{ID: id}, nil
}

func (o *Orchestrator) handleRecommend(ctx context.Context, payload json.RawMessage) (any, error) {
	var info capture.PageInfo
	if err := json.Unmarshal(payload, &info); err != nil {
		return nil, fmt.Errorf("orchestrator: recommend payload: %w", err)
	}
	tags, err := o.recommender.Recommend(ctx, info)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"tags": tags}, nil
}

func (o *Orchestrator) handleGetConfig(ctx context.Context, _ json.RawMessage) (any, error) {
	return o.EffectiveConfig(ctx), nil
}
