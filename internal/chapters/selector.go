package chapters

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter picks chapters by a single index or chapter number, a 1-based index
// range ("5-12") or an index list ("1,3,5"), in that order of precedence.
func Filter(all []Chapter, chapter string, rng string, list string) []Chapter {
	if chapter != "" {
		byNumber := FilterByNumber(all, chapter)
		if len(byNumber) > 0 {
			return byNumber
		}
		if idx, err := atoi(chapter); err == nil {
			if idx > 0 && idx <= len(all) {
				return []Chapter{all[idx-1]}
			}
		}
		return []Chapter{}
	}
	if rng != "" {
		return FilterRange(all, rng)
	}
	if list != "" {
		return FilterList(all, list)
	}
	return all
}

func FilterByNumber(all []Chapter, number string) []Chapter {
	number = strings.TrimSpace(number)

	var out []Chapter
	for _, ch := range all {
		if ch.Number == number {
			out = append(out, ch)
		}
	}
	return out
}

func FilterRange(all []Chapter, rng string) []Chapter {
	parts := strings.Split(rng, "-")
	if len(parts) != 2 {
		return nil
	}
	start, err1 := atoi(parts[0])
	end, err2 := atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil
	}
	if start <= 0 || end <= 0 || start > end || end > len(all) {
		return nil
	}
	return all[start-1 : end]
}

func FilterList(all []Chapter, list string) []Chapter {
	out := []Chapter{}
	for n := range strings.SplitSeq(list, ",") {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		idx, err := atoi(n)
		if err != nil {
			continue
		}
		if idx > 0 && idx <= len(all) {
			out = append(out, all[idx-1])
		}
	}
	return Dedupe(out)
}

// ParseSelection interprets interactive input: "all", one index, a range or
// a comma separated list. Repeated chapters are selected once. Empty results
// are an error.
func ParseSelection(all []Chapter, input string) ([]Chapter, error) {
	input = strings.TrimSpace(strings.ToLower(input))

	var out []Chapter
	switch {
	case input == "" || input == "all" || input == "*":
		out = all
	case strings.Contains(input, ","):
		out = FilterList(all, input)
	case strings.Contains(input, "-"):
		out = FilterRange(all, input)
	default:
		out = Filter(all, input, "", "")
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("selection %q matches no chapters", input)
	}

	return Dedupe(out), nil
}

func atoi(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
