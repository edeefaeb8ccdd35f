// Package score turns a completed report into a compliance assessment.
package score

import (
	"fmt"
	"math"

	"github.com/ppiankov/clausecheck/internal/model"
)

const (
	signalInfo     = "info"
	signalWarning  = "warning"
	signalCritical = "critical"
)

// severityWeight is the index penalty per finding
var severityWeight = map[model.Severity]int{
	model.SeverityHigh:   30,
	model.SeverityMedium: 15,
	model.SeverityLow:    5,
}

// kinds that mean some rules may have been judged without their evidence
var weakeningKinds = map[string]bool{
	"retrieval_unavailable": true,
	"citation_lookup":       true,
	"rule_evaluation":       true,
}

// Scorer calculates the compliance index and generates signals
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate assesses a report. Failed reports get no assessment.
func (s *Scorer) Calculate(r *model.Report) *model.Assessment {
	if r == nil || r.Failed() {
		return nil
	}

	var signals []model.Signal

	// 1. Severity load (index penalty)
	penalty, loadSignal := s.severityLoad(r.Findings)
	signals = append(signals, loadSignal)

	// 2. Citation coverage
	coverage, coverageSignal := s.citationCoverage(r.Findings)
	signals = append(signals, coverageSignal)

	// 3. Mean finding confidence
	meanConf, confSignal := s.findingConfidence(r.Findings)
	signals = append(signals, confSignal)

	// 4. Degraded stages
	weakened, degradedSignal := s.degraded(r.Degradations)
	if degradedSignal.Type != "" {
		signals = append(signals, degradedSignal)
	}

	index := 100 - penalty
	if index < 0 {
		index = 0
	}

	return &model.Assessment{
		Index:      index,
		Level:      s.determineLevel(index, r.Findings),
		Confidence: s.determineConfidence(coverage, meanConf, weakened),
		Signals:    signals,
	}
}

func (s *Scorer) severityLoad(findings []model.Finding) (int, model.Signal) {
	counts := make(map[model.Severity]int)
	penalty := 0
	for _, f := range findings {
		counts[f.Severity]++
		penalty += severityWeight[f.Severity]
	}
	if penalty > 100 {
		penalty = 100
	}

	severity := signalInfo
	switch {
	case counts[model.SeverityHigh] > 0:
		severity = signalCritical
	case len(findings) > 0:
		severity = signalWarning
	}

	return penalty, model.Signal{
		Type:     model.SignalSeverityLoad,
		Severity: severity,
		Description: fmt.Sprintf("%d violations: %d high, %d medium, %d low",
			len(findings), counts[model.SeverityHigh], counts[model.SeverityMedium], counts[model.SeverityLow]),
		Data: map[string]any{
			"high":    counts[model.SeverityHigh],
			"medium":  counts[model.SeverityMedium],
			"low":     counts[model.SeverityLow],
			"penalty": penalty,
			"formula": "min(high*30 + medium*15 + low*5, 100)",
		},
	}
}

// citationCoverage is the share of findings backed by at least one passage
func (s *Scorer) citationCoverage(findings []model.Finding) (float64, model.Signal) {
	if len(findings) == 0 {
		return 1, model.Signal{
			Type:        model.SignalCitationCoverage,
			Severity:    signalInfo,
			Description: "No violations to cite",
			Data:        map[string]any{"findings": 0},
		}
	}

	cited := 0
	for _, f := range findings {
		if len(f.Citations) > 0 {
			cited++
		}
	}
	ratio := float64(cited) / float64(len(findings))

	severity := signalInfo
	if ratio < 0.5 {
		severity = signalCritical
	} else if ratio < 1.0 {
		severity = signalWarning
	}

	return ratio, model.Signal{
		Type:        model.SignalCitationCoverage,
		Severity:    severity,
		Description: fmt.Sprintf("Cited violations: %d/%d (%.0f%%)", cited, len(findings), ratio*100),
		Data: map[string]any{
			"cited":    cited,
			"findings": len(findings),
			"ratio":    ratio,
		},
	}
}

func (s *Scorer) findingConfidence(findings []model.Finding) (float64, model.Signal) {
	if len(findings) == 0 {
		return 1, model.Signal{
			Type:        model.SignalFindingConfidence,
			Severity:    signalInfo,
			Description: "No violations detected",
		}
	}

	sum := 0.0
	for _, f := range findings {
		sum += f.Confidence
	}
	mean := sum / float64(len(findings))

	severity := signalInfo
	if mean < 0.5 {
		severity = signalWarning
	}
	return mean, model.Signal{
		Type:        model.SignalFindingConfidence,
		Severity:    severity,
		Description: fmt.Sprintf("Mean violation confidence: %.2f", mean),
		Data:        map[string]any{"mean": math.Round(mean*1e4) / 1e4},
	}
}

// degraded reports whether any recovered failure could have hidden violations
func (s *Scorer) degraded(ds []model.Degradation) (bool, model.Signal) {
	if len(ds) == 0 {
		return false, model.Signal{}
	}

	kinds := make(map[string]int)
	weakened := false
	for _, d := range ds {
		kinds[d.Kind]++
		if weakeningKinds[d.Kind] {
			weakened = true
		}
	}

	severity := signalInfo
	if weakened {
		severity = signalWarning
	}
	return weakened, model.Signal{
		Type:        model.SignalDegraded,
		Severity:    severity,
		Description: fmt.Sprintf("%d stages degraded", len(ds)),
		Data:        map[string]any{"kinds": kinds},
	}
}

func (s *Scorer) determineLevel(index int, findings []model.Finding) model.Level {
	if len(findings) == 0 {
		return model.LevelCompliant
	}
	for _, f := range findings {
		if f.Severity == model.SeverityHigh {
			return model.LevelNonCompliant
		}
	}
	if index < 60 {
		return model.LevelNonCompliant
	}
	return model.LevelReview
}

func (s *Scorer) determineConfidence(coverage, meanConf float64, weakened bool) string {
	if weakened {
		return "low-medium"
	}
	if coverage >= 0.8 && meanConf >= 0.7 {
		return "high"
	} else if coverage >= 0.5 {
		return "medium"
	} else {
		return "low"
	}
}
