// Package remote is the client for the bookmark site's REST backend.
// The backend is a black box: linkeep only knows the upload wire format
// and the meaning of HTTP status classes. Upload failures are
// translated into human-readable categories and never retried
// automatically — a failed upload is the caller's decision to repeat.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/linkeep/linkeep/assemble"
)

// Client talks to the remote bookmark API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a Client for the given API base URL. The token is sent as
// a bearer credential on every request; empty means anonymous.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SnapshotResponse is the backend's answer to a snapshot upload.
type SnapshotResponse struct {
	ID         string `json:"id"`
	ImageCount int    `json:"image_count"`
}

// UploadSnapshot POSTs an assembled snapshot payload for a bookmark.
func (c *Client) UploadSnapshot(ctx context.Context, bookmarkID string, payload *assemble.UploadPayload) (*SnapshotResponse, error) {
	body, err := payload.Marshal()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/bookmarks/%s/snapshot", c.baseURL, bookmarkID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &UploadError{Category: CategoryNetwork, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		uerr := Categorize(resp.StatusCode, string(msg))
		c.logger.Warn("remote: upload rejected",
			"bookmark", bookmarkID, "status", resp.StatusCode, "category", uerr.Category)
		return nil, uerr
	}

	var sr SnapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}

	c.logger.Info("remote: snapshot uploaded",
		"bookmark", bookmarkID, "images", len(payload.Images))
	return &sr, nil
}
