package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNoText is returned when a document yields no usable text
	ErrNoText = errors.New("no text extracted")

	// ErrUnsupportedContent is returned for scanned formats that need OCR
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// Extraction is the text obtained from one document
type Extraction struct {
	Text  string
	Lang  string // "RU", "EN" or "" for empty text
	Pages int
}

// Extractor turns raw document bytes into text
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (Extraction, error)
}

// TextExtractor handles plain text and HTML documents
type TextExtractor struct{}

// NewTextExtractor creates a new text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract decodes data according to contentType.
// Unknown content types are treated as UTF-8 text.
func (e *TextExtractor) Extract(ctx context.Context, data []byte, contentType string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "application/pdf"), looksLikePDF(data):
		return Extraction{}, fmt.Errorf("%w: pdf", ErrUnsupportedContent)
	case strings.HasPrefix(ct, "image/"), looksLikeImage(data):
		return Extraction{}, fmt.Errorf("%w: image", ErrUnsupportedContent)
	}

	var raw string
	if strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml") {
		doc, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			return Extraction{}, fmt.Errorf("parse html: %w", err)
		}
		raw = extractVisibleText(mainContent(doc))
	} else {
		raw = string(bytes.ToValidUTF8(data, nil))
	}

	text := CleanText(raw)
	if text == "" {
		return Extraction{}, ErrNoText
	}

	return Extraction{
		Text:  text,
		Lang:  GuessLang(text),
		Pages: len(Segment(text)),
	}, nil
}

// mainContent narrows a page to its <main> or <article> element when present,
// dropping navigation and footers of bank websites.
func mainContent(doc *html.Node) *html.Node {
	if n := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "main"
	}); n != nil {
		return n
	}
	if n := findFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && (n.Data == "article" || attr(n, "role") == "main")
	}); n != nil {
		return n
	}
	return doc
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// extractVisibleText collects text nodes, skipping scripts and styles.
// Block elements end with a newline so sentence and page markers survive.
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article":
				buf.WriteString("\n")
			}
		}
	}

	walk(n)
	return buf.String()
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\r]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
	lineEdges       = regexp.MustCompile(` ?\n ?`)
)

// CleanText normalizes to NFC, collapses horizontal whitespace and
// limits runs of blank lines to one.
func CleanText(t string) string {
	if t == "" {
		return ""
	}
	t = norm.NFC.String(t)
	t = horizontalSpace.ReplaceAllString(t, " ")
	t = lineEdges.ReplaceAllString(t, "\n")
	t = blankLines.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

// GuessLang picks RU or EN by counting Cyrillic against Latin letters
func GuessLang(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	var cyr, lat int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyr++
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			lat++
		}
	}
	if cyr > lat {
		return "RU"
	}
	return "EN"
}

// ContentTypeForPath guesses a content type from a file extension
func ContentTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return "text/html"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "text/plain"
	}
}

func looksLikePDF(b []byte) bool {
	return bytes.HasPrefix(b, []byte("%PDF-"))
}

func looksLikeImage(b []byte) bool {
	return bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) ||
		bytes.HasPrefix(b, []byte("\xFF\xD8\xFF")) ||
		bytes.HasPrefix(b, []byte("II*\x00")) ||
		bytes.HasPrefix(b, []byte("MM\x00*"))
}
