// Package enrich picks the contract excerpt that best illustrates a finding
// and composes its long-form explanation and corrective clause.
package enrich

import (
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/index"
	"github.com/ppiankov/clausecheck/internal/model"
	"go.uber.org/zap"
)

const (
	// DefaultWindow is half the maximum excerpt length, in runes
	DefaultWindow = 220

	minSnippetRunes = 20
)

// Vectorizer embeds texts into one shared lexical space
type Vectorizer interface {
	LexicalEmbed(texts []string) ([][]float64, error)
}

// Enricher fills ClauseExcerpt, ReasonLong and SuggestedFix on findings
type Enricher struct {
	vec    Vectorizer
	window int
	logger *zap.Logger
}

// New creates an enricher. A nil vectorizer ranks sentences by token overlap.
func New(vec Vectorizer, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		vec:    vec,
		window: DefaultWindow,
		logger: logger.Named("enrich"),
	}
}

// Enrich returns f with excerpt, reason and fix populated; other fields are untouched
func (e *Enricher) Enrich(f model.Finding, text string) model.Finding {
	summary := f.Summary
	if summary == "" {
		summary = f.Title.EN
	}

	var lawTitles []string
	for _, c := range f.Citations {
		if t := c.Title; t != "" {
			lawTitles = append(lawTitles, t)
		} else if c.Ref != "" {
			lawTitles = append(lawTitles, c.Ref)
		}
	}

	f.ClauseExcerpt = e.ChooseExcerpt(text, summary, f.OffendingText)
	f.ReasonLong = ReasonLong(ruleTitle(f), lawTitles)
	f.SuggestedFix = SuggestedFix(f.Title.EN + " " + f.Title.RU + " " + summary)
	return f
}

func ruleTitle(f model.Finding) string {
	switch {
	case f.Title.RU != "":
		return f.Title.RU
	case f.Title.EN != "":
		return f.Title.EN
	}
	return f.Summary
}

// ChooseExcerpt prefers a snippet of at least 20 runes. Otherwise it ranks
// document sentences against summary and returns the best one with its
// neighbours, truncated to twice the window.
func (e *Enricher) ChooseExcerpt(text, summary, snippet string) string {
	if s := strings.TrimSpace(snippet); utf8.RuneCountInString(s) >= minSnippetRunes {
		return s
	}

	sents := extract.SplitSentences(text)
	if len(sents) == 0 {
		return ""
	}

	best := e.bestSentence(sents, summary)

	var b strings.Builder
	if best > 0 {
		b.WriteString(sents[best-1])
		b.WriteString(". ")
	}
	b.WriteString(sents[best])
	if best+1 < len(sents) {
		b.WriteString(". ")
		b.WriteString(sents[best+1])
	}

	ex := strings.TrimSpace(b.String())
	if limit := 2 * e.window; utf8.RuneCountInString(ex) > limit {
		ex = string([]rune(ex)[:limit])
	}
	return ex
}

// bestSentence returns the index of the highest scoring sentence; the first wins ties
func (e *Enricher) bestSentence(sents []string, summary string) int {
	if e.vec != nil {
		vecs, err := e.vec.LexicalEmbed(append([]string{summary}, sents...))
		if err == nil {
			return argmax(len(sents), func(i int) float64 {
				return index.Cosine(vecs[0], vecs[i+1])
			})
		}
		e.logger.Debug("lexical ranking unavailable, using token overlap", zap.Error(err))
	}
	return argmax(len(sents), func(i int) float64 {
		return index.Jaccard(sents[i], summary)
	})
}

func argmax(n int, score func(int) float64) int {
	best, bestScore := 0, -1.0
	for i := 0; i < n; i++ {
		if s := score(i); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
