// Package capture defines the shared data model of the capture pipeline:
// page metadata, capture options, capture results, and their binary image
// parts. It also provides content hashing and deduplication for images.
//
// Everything in this package is transport-agnostic. The agent produces
// these values inside the page context, the orchestrator validates them,
// and the assembler turns them into the upload wire format.
package capture

// PageInfo is the metadata extracted from a live page. It is produced
// fresh per request and never persisted by the capture subsystem; the
// bookmark store consumes it.
type PageInfo struct {
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Thumbnail   string   `json:"thumbnail"`
	Thumbnails  []string `json:"thumbnails,omitempty"`
	Favicon     string   `json:"favicon"`
}

// Mode selects what a capture produces.
type Mode string

const (
	// ModeMarkupOnly serialises the document without extracting images.
	ModeMarkupOnly Mode = "markup-only"
	// ModeMarkupImages serialises the document and extracts embedded
	// images into deduplicated binary parts.
	ModeMarkupImages Mode = "markup+images"
)

// Options control a single capture attempt. Immutable once created.
type Options struct {
	InlineCSS            bool  `json:"inlineCSS"`
	ExtractImages        bool  `json:"extractImages"`
	InlineFonts          bool  `json:"inlineFonts"`
	RemoveScripts        bool  `json:"removeScripts"`
	RemoveHiddenElements bool  `json:"removeHiddenElements"`
	// MaxImageSize is the per-image byte budget. Images larger than this
	// are skipped, not truncated. 0 means the default (5 MB).
	MaxImageSize int64 `json:"maxImageSize"`
	// TimeoutMs is the capture's own internal deadline. When it expires
	// the agent returns whatever has been serialised so far unless
	// FailClosed is set.
	TimeoutMs int64 `json:"timeoutMs"`
	// FailClosed makes an internal timeout an error instead of a
	// partial result.
	FailClosed bool `json:"failClosed"`
}

// DefaultMaxImageSize is the per-image byte budget when Options leaves
// MaxImageSize at zero.
const DefaultMaxImageSize = 5 << 20

// Request is one capture attempt: a mode plus its options.
type Request struct {
	Mode    Mode    `json:"mode"`
	Options Options `json:"options"`
}

// ImagePart is one deduplicated image extracted during capture.
// Bytes are the exact source bytes, before any transport encoding.
type ImagePart struct {
	Hash      string `json:"hash"`
	Bytes     []byte `json:"bytes,omitempty"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Result is the outcome of a capture: portable markup plus extracted
// image parts. Hashes are unique within a single Result — dedup has
// already been applied.
type Result struct {
	HTML   string      `json:"html"`
	Images []ImagePart `json:"images"`
	// Partial marks a result that hit the capture's internal deadline
	// and contains only what was serialised in time.
	Partial bool `json:"partial,omitempty"`
}
