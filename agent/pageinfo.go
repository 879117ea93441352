package agent

import (
	"encoding/json"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/linkeep/linkeep/bus"
	"github.com/linkeep/linkeep/capture"
)

// metaPolicy strips every tag from agent-supplied metadata strings.
// Page titles and descriptions flow into the bookmark store and the UI;
// they must arrive as plain text no matter what the page declared.
var metaPolicy = bluemonday.StrictPolicy()

// mdConverter turns the agent's main-content HTML into readable
// markdown for the PageInfo content field. Shared: the converter is
// safe for concurrent use.
var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
	),
)

// DecodePageInfo converts an EXTRACT_PAGE_INFO response payload into a
// PageInfo. The agent ships raw content HTML; the markdown conversion
// happens here so the page context does as little work as possible.
//
// A conversion failure degrades the content field to empty rather than
// failing the extraction — metadata extraction never hard-fails.
func DecodePageInfo(data []byte) (*capture.PageInfo, error) {
	var raw rawPageInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &bus.ErrInvalidResponse{Type: bus.TypeExtractPageInfo, Reason: "data is not PageInfo"}
	}
	if raw.URL == "" {
		return nil, &bus.ErrInvalidResponse{Type: bus.TypeExtractPageInfo, Reason: "missing url"}
	}

	info := &capture.PageInfo{
		Title:       strings.TrimSpace(metaPolicy.Sanitize(raw.Title)),
		URL:         raw.URL,
		Description: strings.TrimSpace(metaPolicy.Sanitize(raw.Description)),
		Thumbnail:   raw.Thumbnail,
		Thumbnails:  raw.Thumbnails,
		Favicon:     raw.Favicon,
	}
	if info.Title == "" {
		info.Title = "Untitled"
	}

	if raw.ContentHTML != "" {
		md, err := mdConverter.ConvertString(raw.ContentHTML, converter.WithDomain(raw.URL))
		if err == nil {
			info.Content = strings.TrimSpace(md)
		}
	}
	return info, nil
}
