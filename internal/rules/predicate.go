package rules

import (
	"fmt"
	"strings"

	"github.com/ppiankov/clausecheck/internal/model"
)

// signals are the term and pattern checks an atom's predicate combines
type signals struct {
	hints    bool // hints_any empty or any hint present
	mustHave bool // must_have empty or all present
	mustNot  bool // must_not non-empty and any present
	pattern  bool // any pattern matched
}

func (r compiledRule) signals(text, lower string) signals {
	a := r.atom
	s := signals{
		hints:    len(a.HintsAny) == 0 || containsAny(lower, a.HintsAny),
		mustHave: len(a.MustHave) == 0 || containsAll(lower, a.MustHave),
		mustNot:  len(a.MustNot) > 0 && containsAny(lower, a.MustNot),
	}
	for _, re := range r.patterns {
		if re.MatchString(text) {
			s.pattern = true
			break
		}
	}
	return s
}

// violated applies the atom's predicate shape to its signals
func violated(kind model.PredicateKind, s signals) (bool, error) {
	switch kind {
	case model.PredicateHintsAndEvidence:
		return s.hints && (s.pattern || s.mustNot), nil
	case model.PredicateForbidden:
		return s.mustNot || s.pattern, nil
	case model.PredicateMissingRequired:
		return s.hints && !s.mustHave, nil
	}
	return false, fmt.Errorf("%w: unknown predicate %q", ErrInvalidRule, kind)
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func containsAll(lower string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(lower, strings.ToLower(t)) {
			return false
		}
	}
	return true
}
