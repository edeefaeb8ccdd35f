package index

import (
	"strings"
	"unicode/utf8"
)

// ChunkText splits text on ". " and greedily packs sentences into chunks of
// roughly targetTokens tokens, assuming four characters per token.
func ChunkText(text string, targetTokens int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if targetTokens <= 0 {
		targetTokens = 200
	}
	maxChars := targetTokens * 4

	var parts, buf []string
	chars := 0
	for _, s := range strings.Split(strings.ReplaceAll(text, "\r", " "), ". ") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		n := utf8.RuneCountInString(s)
		if chars+n > maxChars && len(buf) > 0 {
			parts = append(parts, strings.TrimSpace(strings.Join(buf, ". ")))
			buf, chars = []string{s}, n
			continue
		}
		buf = append(buf, s)
		chars += n
	}
	if len(buf) > 0 {
		parts = append(parts, strings.TrimSpace(strings.Join(buf, ". ")))
	}
	return parts
}
