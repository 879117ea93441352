package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/capture"
	"github.com/linkeep/linkeep/internal/imgfetch"
)

// HashScheme prefixes image references inside captured markup. The
// remote API resolves capture://<hash> against the uploaded image parts
// when reassembling the snapshot. Keying by content hash keeps the HTML
// byte-stable across identical captures.
const HashScheme = "capture://"

// Builder turns a raw agent capture into a finished capture.Result:
// it retrieves image bytes, hashes and deduplicates them, and rewrites
// image references in the markup to their content hashes.
type Builder struct {
	fetch  *imgfetch.Fetcher
	logger *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(fetch *imgfetch.Fetcher, logger *slog.Logger) *Builder {
	if fetch == nil {
		fetch = imgfetch.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{fetch: fetch, logger: logger}
}

// Build decodes a CAPTURE_PAGE_V2 response payload and assembles the
// final Result. Individual image failures (unreachable, over budget)
// skip that image and keep going; only a markup-level failure aborts.
// A context expiry mid-retrieval marks the result partial, or fails
// the whole build when the request is fail-closed.
func (b *Builder) Build(ctx context.Context, data []byte, pageURL string, req capture.Request) (*capture.Result, error) {
	var raw rawCapture
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &bus.ErrInvalidResponse{Type: bus.TypeCapturePageV2, Reason: "data is not a capture"}
	}
	if raw.HTML == "" {
		return nil, &bus.ErrInvalidResponse{Type: bus.TypeCapturePageV2, Reason: "empty markup"}
	}

	res := &capture.Result{HTML: raw.HTML, Partial: raw.Partial}

	if req.Mode != capture.ModeMarkupImages || !req.Options.ExtractImages || len(raw.ImageURLs) == 0 {
		return res, nil
	}

	maxSize := req.Options.MaxImageSize
	if maxSize <= 0 {
		maxSize = capture.DefaultMaxImageSize
	}

	parts := make([]capture.ImagePart, 0, len(raw.ImageURLs))
	hashByURL := make(map[string]string, len(raw.ImageURLs))
	for _, u := range raw.ImageURLs {
		if err := ctx.Err(); err != nil {
			if req.Options.FailClosed {
				return nil, fmt.Errorf("agent: image retrieval cut short: %w", err)
			}
			res.Partial = true
			break
		}
		bytes, mime, err := b.fetch.Get(ctx, u, maxSize)
		if err != nil {
			b.logger.Debug("agent: image skipped", "url", u, "error", err)
			continue
		}
		part := capture.NewImagePart(bytes, mime)
		hashByURL[u] = part.Hash
		parts = append(parts, part)
	}

	res.Images = capture.Dedup(parts)

	rewritten, err := rewriteImageRefs(raw.HTML, pageURL, hashByURL)
	if err != nil {
		// Keep the unrewritten markup; the parts are still attached.
		b.logger.Warn("agent: image ref rewrite failed", "error", err)
		return res, nil
	}
	res.HTML = rewritten
	return res, nil
}

// rewriteImageRefs replaces each <img src> whose resolved URL was
// extracted with its capture://<hash> reference. The serialised markup
// keeps the page's original (possibly relative) src values, so every
// candidate is resolved against the page URL before lookup.
func rewriteImageRefs(markup, pageURL string, hashByURL map[string]string) (string, error) {
	if len(hashByURL) == 0 {
		return markup, nil
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("agent: parse capture markup: %w", err)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Img {
			for i, a := range n.Attr {
				if a.Key != "src" {
					continue
				}
				if hash, ok := hashByURL[resolveRef(pageURL, a.Val)]; ok {
					n.Attr[i].Val = HashScheme + hash
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", fmt.Errorf("agent: render capture markup: %w", err)
	}
	return sb.String(), nil
}

// resolveRef resolves a possibly-relative image reference against the
// page URL. The agent ships absolute URLs, but captures of pages with
// rewritten base elements can still carry relative ones.
func resolveRef(pageURL, ref string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
