package model

// Finding is one rule violation detected in one document
type Finding struct {
	RuleCode      string        `json:"violation_code"`
	Title         LocalizedText `json:"title"`
	Summary       string        `json:"summary"`
	OffendingText string        `json:"offending_text"`
	Severity      Severity      `json:"severity"`
	LawRef        string        `json:"law_ref"`
	Law           LawReference  `json:"law"`
	Citations     []Citation    `json:"citations"`
	Locator       Locator       `json:"contract_locator"`
	ClauseExcerpt string        `json:"clause_excerpt,omitempty"`
	ReasonLong    string        `json:"reason_long,omitempty"`
	SuggestedFix  string        `json:"suggested_fix,omitempty"`
	Confidence    float64       `json:"confidence"`

	// MultiLang is keyed by language code ("ru", "en", "ky")
	MultiLang map[string]LocalizedFinding `json:"multi_lang,omitempty"`
}

// LawReference is the resolved law for a finding (top citation or the atom's own ref)
type LawReference struct {
	Ref       string   `json:"ref"`
	Title     string   `json:"title"`
	FullTexts []string `json:"full_texts,omitempty"`
}

// Locator points at the offending excerpt inside the source document
type Locator struct {
	PageGuess int `json:"page_guess"`
	CharIndex int `json:"char_index"`
}

// LocalizedFinding holds the human-facing fields of a finding in one language
type LocalizedFinding struct {
	Title         string `json:"title"`
	Excerpt       string `json:"excerpt"`
	OffendingText string `json:"offending_text"`
	Why           string `json:"why"`
	Fix           string `json:"fix"`
}
