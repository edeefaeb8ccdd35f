package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/model"
	"go.uber.org/zap"
)

const (
	excerptBefore = 120
	excerptAfter  = 220
	fallbackRunes = 400

	confidenceHigh  = 0.85
	confidenceOther = 0.75
)

// ErrCitationLookup marks a failed retrieval for one rule
var ErrCitationLookup = errors.New("citation lookup failed")

// Retriever returns supporting citations for a rule
type Retriever interface {
	Search(ctx context.Context, query string, topK int, lawHint string) ([]model.Citation, error)
}

// RuleError is a recovered per-rule failure.
// It unwraps to ErrInvalidRule or ErrCitationLookup.
type RuleError struct {
	Code string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Code, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// Evaluator applies a catalog to document text
type Evaluator struct {
	retriever Retriever
	topK      int
	logger    *zap.Logger
}

// NewEvaluator creates an evaluator. A nil retriever yields findings without citations.
func NewEvaluator(retriever Retriever, topK int, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topK <= 0 {
		topK = 3
	}
	return &Evaluator{
		retriever: retriever,
		topK:      topK,
		logger:    logger.Named("rules"),
	}
}

// Evaluate checks every atom independently and returns findings in catalog order.
// Malformed atoms and failed citation lookups are returned as RuleErrors
// and never stop the remaining atoms.
func (e *Evaluator) Evaluate(ctx context.Context, text string, cat *Catalog) ([]model.Finding, []error) {
	findings := []model.Finding{}
	var errs []error
	if cat == nil || text == "" {
		return findings, errs
	}

	lower := strings.ToLower(text)
	spans := extract.Segment(text)

	for _, r := range cat.rules {
		code := r.atom.Code
		if r.err != nil {
			e.logger.Warn("skipping malformed rule", zap.String("code", code), zap.Error(r.err))
			errs = append(errs, &RuleError{Code: code, Err: r.err})
			continue
		}

		hit, err := violated(r.atom.Predicate, r.signals(text, lower))
		if err != nil {
			errs = append(errs, &RuleError{Code: code, Err: err})
			continue
		}
		if !hit {
			continue
		}

		f, err := e.finding(ctx, r, text, spans)
		if err != nil {
			e.logger.Warn("citation lookup failed", zap.String("code", code), zap.Error(err))
			errs = append(errs, &RuleError{Code: code, Err: err})
		}
		findings = append(findings, f)
	}

	return findings, errs
}

// finding builds the finding for a violated atom. A retrieval error still
// yields a complete finding, with no citations.
func (e *Evaluator) finding(ctx context.Context, r compiledRule, text string, spans []model.PageSpan) (model.Finding, error) {
	a := r.atom
	offending := excerpt(text, r.terms)

	title := a.Title.EN
	if title == "" {
		title = a.Code
	}

	f := model.Finding{
		RuleCode:      a.Code,
		Title:         a.Title,
		Summary:       title,
		OffendingText: offending,
		Severity:      a.Severity,
		LawRef:        a.LawRef,
		Law:           model.LawReference{Ref: a.LawRef},
		Citations:     []model.Citation{},
		Locator:       extract.Locate(text, offending, spans),
		Confidence:    confidenceOther,
	}
	if a.Severity == model.SeverityHigh {
		f.Confidence = confidenceHigh
	}

	if e.retriever == nil {
		return f, nil
	}
	cites, err := e.retriever.Search(ctx, title, e.topK, a.LawRef)
	if err != nil {
		return f, fmt.Errorf("%w: %v", ErrCitationLookup, err)
	}
	if len(cites) > 0 {
		f.Citations = cites
		f.Law.Ref = cites[0].Ref
		f.Law.Title = cites[0].Title
		for _, c := range cites {
			if c.FullText != "" {
				f.Law.FullTexts = append(f.Law.FullTexts, c.FullText)
			}
		}
	}
	return f, nil
}

// OffendingExcerpt returns the whitespace-collapsed window around the first
// must_not term, else the first hint term, found case-insensitively.
// Without a match it returns the first 400 runes of text.
func OffendingExcerpt(text string, a model.RuleAtom) string {
	return excerpt(text, termPatterns(a))
}

// termPatterns compiles the excerpt terms of a in search order
func termPatterns(a model.RuleAtom) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(a.MustNot)+len(a.HintsAny))
	for _, list := range [][]string{a.MustNot, a.HintsAny} {
		for _, term := range list {
			if term == "" {
				continue
			}
			out = append(out, regexp.MustCompile("(?i)"+regexp.QuoteMeta(term)))
		}
	}
	return out
}

func excerpt(text string, terms []*regexp.Regexp) string {
	for _, re := range terms {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		start := backRunes(text, loc[0], excerptBefore)
		end := forwardRunes(text, loc[1], excerptAfter)
		return strings.Join(strings.Fields(text[start:end]), " ")
	}
	return prefixRunes(text, fallbackRunes)
}

// backRunes moves n runes left from byte offset i
func backRunes(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

// forwardRunes moves n runes right from byte offset i
func forwardRunes(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

func prefixRunes(s string, n int) string {
	return s[:forwardRunes(s, 0, n)]
}
