package mangadex

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/brogergvhs/mangapdf/internal/chapters"
)

const feedPageSize = 500

type feedResponse struct {
	Result string `json:"result"`
	Data   []struct {
		ID         string `json:"id"`
		Attributes struct {
			Chapter            *string `json:"chapter"`
			Title              *string `json:"title"`
			TranslatedLanguage string  `json:"translatedLanguage"`
			ExternalURL        *string `json:"externalUrl"`
			Pages              int     `json:"pages"`
		} `json:"attributes"`
	} `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// Feed lists every chapter of a manga translated into language, following
// the feed's pagination. Externally hosted chapters have no pages on
// MangaDex and are left out.
func (c *Client) Feed(ctx context.Context, mangaID, language string) ([]chapters.Chapter, error) {
	var out []chapters.Chapter

	for offset := 0; ; {
		q := url.Values{}
		if language != "" {
			q.Set("translatedLanguage[]", language)
		}
		q.Set("limit", strconv.Itoa(feedPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("order[chapter]", "asc")

		var page feedResponse
		if err := c.getJSON(ctx, c.endpoint("/manga/"+url.PathEscape(mangaID)+"/feed", q), &page); err != nil {
			return nil, err
		}

		for _, d := range page.Data {
			a := d.Attributes
			if a.ExternalURL != nil && *a.ExternalURL != "" {
				continue
			}

			number := "N/A"
			if a.Chapter != nil && strings.TrimSpace(*a.Chapter) != "" {
				number = strings.TrimSpace(*a.Chapter)
			}

			name := ""
			if a.Title != nil {
				name = strings.TrimSpace(*a.Title)
			}

			out = append(out, chapters.Chapter{ID: d.ID, Number: number, Name: name})
		}

		offset += len(page.Data)
		if len(page.Data) == 0 || offset >= page.Total {
			break
		}
	}

	if len(out) == 0 {
		return nil, ErrNotFound
	}

	return out, nil
}
