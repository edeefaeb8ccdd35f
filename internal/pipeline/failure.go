package pipeline

import (
	"context"
	"errors"

	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/index"
	"github.com/ppiankov/clausecheck/internal/rules"
	"github.com/ppiankov/clausecheck/internal/translate"
)

// FailureKind classifies pipeline failures. Only KindExtraction is fatal.
type FailureKind string

const (
	KindExtraction           FailureKind = "extraction"
	KindRetrievalUnavailable FailureKind = "retrieval_unavailable"
	KindCitationLookup       FailureKind = "citation_lookup"
	KindTranslation          FailureKind = "translation"
	KindRuleEvaluation       FailureKind = "rule_evaluation"
	KindPersistence          FailureKind = "persistence"
	KindCancelled            FailureKind = "cancelled"
)

var (
	// ErrExtraction wraps every failure of the ocr stage
	ErrExtraction = errors.New("extraction failed")

	// ErrPersistence wraps report sink failures
	ErrPersistence = errors.New("persist report")
)

// Classify maps an error to its failure kind
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrExtraction),
		errors.Is(err, extract.ErrNoText),
		errors.Is(err, extract.ErrUnsupportedContent):
		return KindExtraction
	case errors.Is(err, index.ErrRetrievalUnavailable):
		return KindRetrievalUnavailable
	case errors.Is(err, rules.ErrCitationLookup):
		return KindCitationLookup
	case errors.Is(err, translate.ErrTranslationFailed):
		return KindTranslation
	case errors.Is(err, ErrPersistence):
		return KindPersistence
	default:
		return KindRuleEvaluation
	}
}
