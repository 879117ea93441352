// Package imgfetch retrieves image bytes for capture. A single GET per
// URL with a hard byte cap — images over the budget are skipped by the
// caller, never truncated. data: URLs are decoded locally without a
// network round trip.
package imgfetch

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Fetcher retrieves image bytes.
type Fetcher struct {
	client *http.Client
	ua     string
	logger *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = ua }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// New creates a Fetcher with sensible defaults.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: 20 * time.Second},
		ua:     "Mozilla/5.0 (compatible; linkeep/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// ErrTooLarge is returned when an image exceeds the byte budget.
type ErrTooLarge struct {
	URL string
	Max int64
}

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("imgfetch: %s exceeds %d bytes", e.URL, e.Max)
}

// Get retrieves the bytes of one image URL, capped at max bytes. The
// returned mime type comes from the Content-Type header (or the data:
// URL media type) and may be empty, in which case the caller sniffs it.
func (f *Fetcher) Get(ctx context.Context, imageURL string, max int64) ([]byte, string, error) {
	if max <= 0 {
		return nil, "", fmt.Errorf("imgfetch: non-positive byte budget")
	}

	if strings.HasPrefix(imageURL, "data:") {
		return decodeDataURL(imageURL, max)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imgfetch: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imgfetch: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("imgfetch: %s: status %d", imageURL, resp.StatusCode)
	}

	// Read one byte past the cap so oversize is detectable without
	// trusting Content-Length.
	body, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, "", fmt.Errorf("imgfetch: read body: %w", err)
	}
	if int64(len(body)) > max {
		return nil, "", &ErrTooLarge{URL: imageURL, Max: max}
	}

	f.logger.Debug("imgfetch: fetched", "url", imageURL, "size", len(body))
	return body, resp.Header.Get("Content-Type"), nil
}

func decodeDataURL(u string, max int64) ([]byte, string, error) {
	rest := strings.TrimPrefix(u, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", fmt.Errorf("imgfetch: malformed data URL")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	var data []byte
	var err error
	if strings.HasSuffix(meta, ";base64") {
		meta = strings.TrimSuffix(meta, ";base64")
		data, err = base64.StdEncoding.DecodeString(payload)
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return nil, "", fmt.Errorf("imgfetch: decode data URL: %w", err)
	}
	if int64(len(data)) > max {
		return nil, "", &ErrTooLarge{URL: "data:...", Max: max}
	}

	mime := meta
	if i := strings.IndexByte(meta, ';'); i >= 0 {
		mime = meta[:i]
	}
	return data, mime, nil
}
