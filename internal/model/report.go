package model

import "time"

// Status is the terminal state of a pipeline run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Report is the assembled result of one compliance scan
type Report struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal,omitempty"`
	Source    string    `json:"source,omitempty"`
	Status    Status    `json:"status"`
	Lang      string    `json:"lang,omitempty"`
	Pages     int       `json:"pages"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`

	Findings []Finding  `json:"violations"`
	Evidence []Citation `json:"evidence"` // deduplicated by (law_id, ref)

	// Trace is the ordered, machine-auditable record of every stage that ran
	Trace []TraceStep `json:"agent_trace"`

	Assessment   *Assessment   `json:"assessment,omitempty"`
	Degradations []Degradation `json:"degradations,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// TraceStep records one stage: which tool ran, with what, and what it saw
type TraceStep struct {
	Step        string         `json:"step"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args"`
	Observation map[string]any `json:"observation"`
}

// Degradation marks a failure that was recovered locally.
// Kind is one of the pipeline failure kinds (translation, citation_lookup, ...).
type Degradation struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Failed reports whether the run ended in the failed state
func (r *Report) Failed() bool {
	return r.Status == StatusFailed
}

// CountBySeverity tallies findings per severity level
func (r *Report) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
