package mangadex

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type atHomeResponse struct {
	Result  string `json:"result"`
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash      string   `json:"hash"`
		Data      []string `json:"data"`
		DataSaver []string `json:"dataSaver"`
	} `json:"chapter"`
}

// Manifest lists a chapter's page files in reading order together with the
// server they are served from.
type Manifest struct {
	BaseURL   string
	Hash      string
	Files     []string
	DataSaver bool
}

// ImageURL builds the download URL of one manifest file.
func (m *Manifest) ImageURL(filename string) string {
	quality := "data"
	if m.DataSaver {
		quality = "data-saver"
	}

	return strings.TrimRight(m.BaseURL, "/") + "/" + quality + "/" + m.Hash + "/" + url.PathEscape(filename)
}

// AtHome resolves the image manifest of a chapter.
func (c *Client) AtHome(ctx context.Context, chapterID string) (*Manifest, error) {
	if strings.TrimSpace(chapterID) == "" {
		return nil, fmt.Errorf("%w: empty chapter id", ErrMalformed)
	}

	var raw atHomeResponse
	if err := c.getJSON(ctx, c.endpoint("/at-home/server/"+url.PathEscape(chapterID), nil), &raw); err != nil {
		return nil, err
	}

	if raw.Result != "" && raw.Result != "ok" {
		return nil, fmt.Errorf("%w: result %q", ErrMalformed, raw.Result)
	}
	if raw.BaseURL == "" || raw.Chapter.Hash == "" {
		return nil, fmt.Errorf("%w: missing baseUrl or hash", ErrMalformed)
	}

	field, files := "data", raw.Chapter.Data
	if c.dataSaver {
		field, files = "dataSaver", raw.Chapter.DataSaver
	}
	// absent or null decodes to nil; an empty array is a valid empty chapter
	if files == nil {
		return nil, fmt.Errorf("%w: missing chapter.%s", ErrMalformed, field)
	}

	return &Manifest{
		BaseURL:   raw.BaseURL,
		Hash:      raw.Chapter.Hash,
		Files:     files,
		DataSaver: c.dataSaver,
	}, nil
}
