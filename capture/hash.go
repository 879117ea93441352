package capture

import (
	"crypto/sha256"
	"fmt"
	"net/http"
)

// Hash returns the SHA-256 hex digest of raw content bytes.
//
// The digest is computed over source bytes, never over a transport
// encoding, so the same image reached through two different URLs
// collapses to one part.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h)
}

// Dedup removes image parts with duplicate hashes. First occurrence
// wins and relative order is preserved. Running Dedup on an already
// deduplicated slice returns an equal slice.
func Dedup(parts []ImagePart) []ImagePart {
	seen := make(map[string]struct{}, len(parts))
	out := make([]ImagePart, 0, len(parts))
	for _, p := range parts {
		if _, dup := seen[p.Hash]; dup {
			continue
		}
		seen[p.Hash] = struct{}{}
		out = append(out, p)
	}
	return out
}

// NewImagePart builds an ImagePart from raw bytes, computing its hash,
// size, and — when mimeType is empty — sniffing the content type.
func NewImagePart(data []byte, mimeType string) ImagePart {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return ImagePart{
		Hash:      Hash(data),
		Bytes:     data,
		MimeType:  mimeType,
		SizeBytes: int64(len(data)),
	}
}
