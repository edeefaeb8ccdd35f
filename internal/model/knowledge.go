package model

// KnowledgeDoc is a retrievable law passage
type KnowledgeDoc struct {
	ID        string    `json:"id" yaml:"id"`
	LawID     string    `json:"law_id" yaml:"law_id"`
	Ref       string    `json:"ref" yaml:"ref"` // Citation anchor, e.g. "П.21(7)"
	Title     string    `json:"title" yaml:"title"`
	Text      string    `json:"text" yaml:"text"`
	Embedding []float32 `json:"embedding,omitempty" yaml:"-"`
}

// Citation is a knowledge passage offered as evidence for a finding.
// Citations are produced per query and never persisted on their own.
type Citation struct {
	LawID    string  `json:"law_id"`
	Ref      string  `json:"ref"`
	Title    string  `json:"title,omitempty"`
	Snippet  string  `json:"snippet,omitempty"`
	FullText string  `json:"full_text,omitempty"`
	Score    float64 `json:"score"`
}

// PageSpan is a page interval over the document text, in rune offsets
type PageSpan struct {
	Page  int `json:"page"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// DedupeCitations removes repeated (law_id, ref) pairs, keeping first occurrence
func DedupeCitations(cites []Citation) []Citation {
	type key struct{ lawID, ref string }
	seen := make(map[key]bool)
	out := make([]Citation, 0, len(cites))
	for _, c := range cites {
		k := key{c.LawID, c.Ref}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}
