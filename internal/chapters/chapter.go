package chapters

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Chapter is one downloadable unit as listed by the chapter feed. It is never
// mutated after selection.
type Chapter struct {
	ID     string
	Number string
	Name   string
}

var reUnderscore = regexp.MustCompile(`_+`)

func sanitize(s string) string {
	repl := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		" ", "_",
		":", "_",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	s = repl.Replace(strings.TrimSpace(s))

	clean := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == '-' {
			clean = append(clean, r)
		}
	}
	s = reUnderscore.ReplaceAllString(string(clean), "_")

	return strings.Trim(s, "_.")
}

// SanitizeName makes s safe to use as a single path element.
func SanitizeName(s string) string {
	return sanitize(s)
}

func (c Chapter) shortID() string {
	id := sanitize(c.ID)
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

func (c Chapter) hasNumber() bool {
	n := sanitize(c.Number)
	return n != "" && !strings.EqualFold(n, "N_A") && !strings.EqualFold(n, "NA")
}

// Label is the human facing name used in progress bars and summaries.
func (c Chapter) Label() string {
	if c.hasNumber() {
		return "Ch." + c.Number
	}
	return "Ch." + c.shortID()
}

func (c Chapter) String() string {
	num := c.Number
	if !c.hasNumber() {
		num = c.shortID()
	}
	if c.Name != "" {
		return fmt.Sprintf("Chapter %s: %s", num, c.Name)
	}
	return fmt.Sprintf("Chapter %s", num)
}

func (c Chapter) baseName() string {
	if c.hasNumber() {
		return "Chapter_" + sanitize(c.Number)
	}
	return "Chapter_" + c.shortID()
}

func (c Chapter) OutputPDF() string {
	return c.baseName() + ".pdf"
}

func (c Chapter) OutputPDFPath(out string) string {
	return filepath.Join(out, c.OutputPDF())
}

// Dedupe drops repeated chapter IDs, keeping the first occurrence and the
// order of list.
func Dedupe(list []Chapter) []Chapter {
	out := make([]Chapter, 0, len(list))
	seen := make(map[string]bool, len(list))

	for _, c := range list {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}

	return out
}

// OutputNames assigns every chapter a file name, keyed by chapter ID. The
// first chapter with a given number keeps the plain name; later ones get
// their short ID appended.
func OutputNames(list []Chapter) map[string]string {
	out := make(map[string]string, len(list))
	used := map[string]bool{}

	for _, c := range list {
		if _, ok := out[c.ID]; ok {
			continue
		}

		name := c.OutputPDF()
		if used[name] {
			name = c.baseName() + "_" + c.shortID() + ".pdf"
		}

		used[name] = true
		out[c.ID] = name
	}

	return out
}

func numericKey(number string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(number), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// SortByNumber orders chapters numerically by chapter number. Chapters
// without a numeric number keep their relative order at the end.
func SortByNumber(list []Chapter) {
	sort.SliceStable(list, func(i, j int) bool {
		a, aok := numericKey(list[i].Number)
		b, bok := numericKey(list[j].Number)

		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		default:
			return false
		}
	})
}
