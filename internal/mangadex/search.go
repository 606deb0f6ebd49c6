package mangadex

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const UnknownAuthor = "Unknown author"

type Manga struct {
	ID          string
	Title       string
	Description string
	Authors     []string
}

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes *struct {
		Name string `json:"name"`
	} `json:"attributes"`
}

type mangaResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Title       map[string]string `json:"title"`
			Description map[string]string `json:"description"`
		} `json:"attributes"`
		Relationships []relationship `json:"relationships"`
	} `json:"data"`
}

type authorResponse struct {
	Data struct {
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"data"`
}

// localized picks the English entry of a localized string map, falling back
// to the alphabetically first language so results stay stable.
func localized(m map[string]string, fallback string) string {
	if v := strings.TrimSpace(m["en"]); v != "" {
		return v
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}

	return fallback
}

// SearchManga looks up manga by title.
func (c *Client) SearchManga(ctx context.Context, title string, limit int) ([]Manga, error) {
	if limit <= 0 {
		limit = 20
	}

	q := url.Values{}
	q.Set("title", title)
	q.Set("limit", strconv.Itoa(limit))
	q.Add("includes[]", "author")

	var raw mangaResponse
	if err := c.getJSON(ctx, c.endpoint("/manga", q), &raw); err != nil {
		return nil, err
	}

	if len(raw.Data) == 0 {
		return nil, ErrNotFound
	}

	out := make([]Manga, 0, len(raw.Data))
	for _, m := range raw.Data {
		out = append(out, Manga{
			ID:          m.ID,
			Title:       localized(m.Attributes.Title, "No title"),
			Description: localized(m.Attributes.Description, "No description"),
			Authors:     c.authorNames(ctx, m.Relationships),
		})
	}

	return out, nil
}

// authorNames prefers names embedded via includes[] and only asks the author
// endpoint for the ones that were not. Lookup failures are ignored.
func (c *Client) authorNames(ctx context.Context, rels []relationship) []string {
	var names []string

	for _, r := range rels {
		if r.Type != "author" {
			continue
		}

		if r.Attributes != nil && r.Attributes.Name != "" {
			names = append(names, r.Attributes.Name)
			continue
		}

		var a authorResponse
		if err := c.getJSON(ctx, c.endpoint("/author/"+url.PathEscape(r.ID), nil), &a); err != nil {
			continue
		}
		if a.Data.Attributes.Name != "" {
			names = append(names, a.Data.Attributes.Name)
		}
	}

	if len(names) == 0 {
		names = []string{UnknownAuthor}
	}

	return names
}
