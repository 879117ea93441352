// Package assemble converts a finished capture into the upload wire
// payload for the remote bookmark API. It is a pure transformation: it
// trusts that deduplication already happened upstream and does not
// re-hash or re-validate its input.
package assemble

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/linkeep/linkeep/capture"
)

// UploadImage is one image entry on the wire. Data is a base64 data-URL
// carrying the exact source bytes.
type UploadImage struct {
	Hash string `json:"hash"`
	Data string `json:"data"`
	Type string `json:"type"`
}

// UploadPayload is the JSON body POSTed to the remote bookmark API.
type UploadPayload struct {
	HTMLContent string        `json:"html_content"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	Images      []UploadImage `json:"images"`
}

// Build assembles the wire payload from a capture result. The number of
// image entries equals the number of unique hashes in the result.
func Build(res *capture.Result, title, pageURL string) *UploadPayload {
	images := make([]UploadImage, 0, len(res.Images))
	for _, part := range res.Images {
		images = append(images, UploadImage{
			Hash: part.Hash,
			Data: dataURL(part),
			Type: part.MimeType,
		})
	}
	return &UploadPayload{
		HTMLContent: res.HTML,
		Title:       title,
		URL:         pageURL,
		Images:      images,
	}
}

// dataURL encodes an image part as a base64 data-URL.
func dataURL(part capture.ImagePart) string {
	return fmt.Sprintf("data:%s;base64,%s",
		part.MimeType, base64.StdEncoding.EncodeToString(part.Bytes))
}

// Marshal serialises the payload to its JSON body.
func (p *UploadPayload) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("assemble: marshal payload: %w", err)
	}
	return data, nil
}
