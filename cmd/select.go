package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brogergvhs/mangapdf/internal/chapters"
	"github.com/brogergvhs/mangapdf/internal/mangadex"

	"github.com/manifoldco/promptui"
)

var errSelectionCancelled = errors.New("selection cancelled")

type mangaItem struct {
	Title   string
	Authors string
	Summary string
}

func selectManga(results []mangadex.Manga) (mangadex.Manga, error) {
	if len(results) == 1 {
		return results[0], nil
	}

	items := make([]mangaItem, len(results))
	for i, m := range results {
		items[i] = mangaItem{
			Title:   m.Title,
			Authors: strings.Join(m.Authors, ", "),
			Summary: truncate(m.Description, 200),
		}
	}

	prompt := promptui.Select{
		Label: "Select manga",
		Items: items,
		Size:  10,
		Templates: &promptui.SelectTemplates{
			Label:    "{{ . }}",
			Active:   "> {{ .Title | cyan }} ({{ .Authors }})",
			Inactive: "  {{ .Title }} ({{ .Authors }})",
			Selected: "{{ .Title | green }}",
			Details: `
--------- Manga ----------
{{ "Title:" | faint }}	{{ .Title }}
{{ "Authors:" | faint }}	{{ .Authors }}
{{ "Summary:" | faint }}	{{ .Summary }}`,
		},
		Searcher: func(input string, index int) bool {
			return strings.Contains(strings.ToLower(items[index].Title), strings.ToLower(input))
		},
	}

	idx, _, err := prompt.Run()
	if err != nil {
		return mangadex.Manga{}, errSelectionCancelled
	}

	return results[idx], nil
}

func promptChapterSelection(all []chapters.Chapter) ([]chapters.Chapter, error) {
	fmt.Printf("Found %d chapters:\n", len(all))
	for i, ch := range all {
		fmt.Printf("%4d) %s\n", i+1, ch)
	}
	fmt.Println()

	prompt := promptui.Prompt{
		Label:   "Chapters to download (all, 3, 2-5, 1,4,9)",
		Default: "all",
		Validate: func(input string) error {
			_, err := chapters.ParseSelection(all, input)
			return err
		},
	}

	input, err := prompt.Run()
	if err != nil {
		return nil, errSelectionCancelled
	}

	return chapters.ParseSelection(all, input)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
