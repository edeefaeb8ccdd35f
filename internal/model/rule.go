package model

// Severity is the regulatory weight of a rule atom
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// PredicateKind selects which boolean combination decides a violation
type PredicateKind string

const (
	// PredicateHintsAndEvidence fires when a hint is present and either a pattern
	// or a forbidden term is found (e.g. prepayment with fee or notice period).
	PredicateHintsAndEvidence PredicateKind = "hints_and_evidence"

	// PredicateForbidden fires when a forbidden term or pattern is present (e.g. penalty cap).
	PredicateForbidden PredicateKind = "forbidden"

	// PredicateMissingRequired fires when hints are present but a required phrase is absent.
	PredicateMissingRequired PredicateKind = "missing_required"
)

// Valid reports whether k is a supported predicate shape
func (k PredicateKind) Valid() bool {
	switch k {
	case PredicateHintsAndEvidence, PredicateForbidden, PredicateMissingRequired:
		return true
	}
	return false
}

// LocalizedText holds a string in the three report languages
type LocalizedText struct {
	EN string `json:"en" yaml:"en"`
	RU string `json:"ru" yaml:"ru"`
	KY string `json:"ky" yaml:"ky"`
}

// Get returns the text for lang, falling back to English
func (t LocalizedText) Get(lang string) string {
	switch lang {
	case "ru":
		if t.RU != "" {
			return t.RU
		}
	case "ky":
		if t.KY != "" {
			return t.KY
		}
	}
	return t.EN
}

// RuleAtom is one discrete regulatory requirement.
// Atoms are loaded once and treated as read-only afterwards.
type RuleAtom struct {
	Code      string        `json:"code" yaml:"code"`
	LawRef    string        `json:"law_ref" yaml:"law_ref"`
	Title     LocalizedText `json:"title" yaml:"title"`
	Mandatory bool          `json:"mandatory" yaml:"mandatory"`
	HintsAny  []string      `json:"hints_any,omitempty" yaml:"hints_any,omitempty"`
	MustHave  []string      `json:"must_have,omitempty" yaml:"must_have,omitempty"`
	MustNot   []string      `json:"must_not,omitempty" yaml:"must_not,omitempty"`
	Patterns  []string      `json:"patterns,omitempty" yaml:"patterns,omitempty"` // case-insensitive regexes
	Predicate PredicateKind `json:"predicate" yaml:"predicate"`
	Severity  Severity      `json:"severity" yaml:"severity"`
}
