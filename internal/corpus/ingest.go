package corpus

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/index"
	"github.com/ppiankov/clausecheck/internal/model"
)

const (
	maxRefRunes   = 180
	maxTitleRunes = 200

	// DefaultChunkTokens bounds the size of one knowledge doc
	DefaultChunkTokens = 200
)

var blockHeader = regexp.MustCompile(`(?i)^(Пункт|Статья|\d+\.)`)

type block struct {
	ref  string
	body strings.Builder
}

// Blocks splits law text into articles. A line starting with "Пункт",
// "Статья" or "N." opens a new block; blocks with blank bodies are dropped.
func Blocks(text string) []model.KnowledgeDoc {
	var docs []model.KnowledgeDoc
	cur := &block{}

	flush := func() {
		body := cur.body.String()
		if strings.TrimSpace(body) == "" {
			return
		}
		docs = append(docs, model.KnowledgeDoc{Ref: cur.ref, Title: cur.ref, Text: body})
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if blockHeader.MatchString(trimmed) {
			flush()
			cur = &block{ref: truncateRunes(trimmed, maxRefRunes)}
			continue
		}
		cur.body.WriteString(line)
		cur.body.WriteString("\n")
	}
	flush()
	return docs
}

// Ingest turns law text into knowledge docs under lawID. Bodies longer than
// chunkTokens are split with index.ChunkText; every chunk keeps the article ref.
func Ingest(text, lawID string, chunkTokens int) []model.KnowledgeDoc {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}

	var docs []model.KnowledgeDoc
	next := make(map[string]int) // repeated refs continue numbering
	for _, b := range Blocks(text) {
		title := b.Title
		if title == "" {
			title = lawID
		}
		title = truncateRunes(title, maxTitleRunes)

		chunks := []string{strings.TrimSpace(b.Text)}
		if utf8.RuneCountInString(chunks[0]) > chunkTokens*4 {
			chunks = index.ChunkText(b.Text, chunkTokens)
		}
		for _, c := range chunks {
			docs = append(docs, model.KnowledgeDoc{
				ID:    DocID(lawID, b.Ref, next[b.Ref]),
				LawID: lawID,
				Ref:   b.Ref,
				Title: title,
				Text:  c,
			})
			next[b.Ref]++
		}
	}
	return docs
}

// IngestFile extracts text from a .txt or .html law file and ingests it
func IngestFile(ctx context.Context, path, lawID string, ex extract.Extractor, chunkTokens int) ([]model.KnowledgeDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read law file: %w", err)
	}

	res, err := ex.Extract(ctx, data, extract.ContentTypeForPath(path))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", path, err)
	}

	docs := Ingest(res.Text, lawID, chunkTokens)
	if len(docs) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyCorpus)
	}
	return docs, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
