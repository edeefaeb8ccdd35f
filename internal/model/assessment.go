package model

// Level is the overall verdict of a completed scan
type Level string

const (
	LevelCompliant    Level = "compliant"
	LevelReview       Level = "needs_review"
	LevelNonCompliant Level = "non_compliant"
)

// SignalType names one diagnostic behind an assessment
type SignalType string

const (
	SignalSeverityLoad      SignalType = "severity_load"
	SignalCitationCoverage  SignalType = "citation_coverage"
	SignalFindingConfidence SignalType = "finding_confidence"
	SignalDegraded          SignalType = "degraded_stages"
)

// Assessment condenses a report into a compliance index (100 = nothing found)
// and a confidence in that verdict.
type Assessment struct {
	Index      int      `json:"index"`
	Level      Level    `json:"level"`
	Confidence string   `json:"confidence"` // high, medium, low-medium, low
	Signals    []Signal `json:"signals"`
}

// Signal explains one component of an assessment
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    string         `json:"severity"` // info, warning, critical
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
}
