package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/clausecheck/internal/model"
)

const (
	maxHeuristicPages = 10
	heuristicPageSize = 3000 // runes per page when no markers are present
)

// pageMarker matches the localized "page N of M" footer, e.g. "стр. 2 из 7"
var pageMarker = regexp.MustCompile(`(?i)стр\.\s*\d+\s*из\s*\d+`)

// Segment splits text into page spans.
// Offsets are rune offsets; spans cover [0, runeLen(text)) without gaps or overlaps.
func Segment(text string) []model.PageSpan {
	if text == "" {
		return []model.PageSpan{}
	}
	n := utf8.RuneCountInString(text)

	locs := pageMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return fixedSpans(n)
	}

	bounds := []int{0}
	lastByte, lastRune := 0, 0
	for _, loc := range locs {
		off := lastRune + utf8.RuneCountInString(text[lastByte:loc[0]])
		lastByte, lastRune = loc[0], off
		// A marker at the very start would yield an empty leading page
		if off == bounds[len(bounds)-1] {
			continue
		}
		bounds = append(bounds, off)
	}
	bounds = append(bounds, n)

	spans := make([]model.PageSpan, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		spans = append(spans, model.PageSpan{Page: i + 1, Start: bounds[i], End: bounds[i+1]})
	}
	return spans
}

func fixedSpans(n int) []model.PageSpan {
	pages := max(1, min(maxHeuristicPages, n/heuristicPageSize))
	step := max(1, n/pages)

	spans := make([]model.PageSpan, 0, pages)
	for i := 0; i < pages; i++ {
		end := (i + 1) * step
		if i == pages-1 {
			end = n
		}
		spans = append(spans, model.PageSpan{Page: i + 1, Start: i * step, End: end})
	}
	return spans
}

// PageAt returns the page whose span contains the rune offset, or 1
func PageAt(spans []model.PageSpan, offset int) int {
	for _, s := range spans {
		if s.Start <= offset && offset < s.End {
			return s.Page
		}
	}
	return 1
}

var sentenceTerminators = strings.NewReplacer("!", ".", "?", ".", "…", ".", "\r", "\n")

// SplitSentences normalizes terminal punctuation and splits text into
// trimmed, non-empty sentences.
func SplitSentences(text string) []string {
	if text == "" {
		return nil
	}
	text = sentenceTerminators.Replace(text)

	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, s := range strings.Split(line, ".") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Locate finds excerpt literally in text and returns its rune offset and page.
// A missing excerpt yields the (0, 1) sentinel.
func Locate(text, excerpt string, spans []model.PageSpan) model.Locator {
	if excerpt == "" {
		return model.Locator{PageGuess: 1}
	}
	pos := strings.Index(text, excerpt)
	if pos < 0 {
		return model.Locator{PageGuess: 1}
	}
	idx := utf8.RuneCountInString(text[:pos])
	return model.Locator{PageGuess: PageAt(spans, idx), CharIndex: idx}
}
