package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/clausecheck/internal/model"
)

// Renderer writes reports as JSON and Markdown
type Renderer struct {
	lang string // language of the Markdown body
}

// NewRenderer creates a renderer; lang selects the MultiLang entry used in Markdown
func NewRenderer(lang string) *Renderer {
	if lang == "" {
		lang = SourceLang
	}
	return &Renderer{lang: lang}
}

// RenderJSON writes the indented report to path
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// WriteJSON writes the indented report to w
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// RenderMarkdown writes a human-readable report to path
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown renders the report body
func (r *Renderer) Markdown(report *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Contract compliance report\n\n")
	fmt.Fprintf(&b, "- **Source:** %s\n", orDash(report.Source))
	fmt.Fprintf(&b, "- **Status:** %s\n", report.Status)
	fmt.Fprintf(&b, "- **Language / pages:** %s / %d\n", orDash(report.Lang), report.Pages)
	fmt.Fprintf(&b, "- **Violations:** %d\n", len(report.Findings))
	if a := report.Assessment; a != nil {
		fmt.Fprintf(&b, "- **Assessment:** %s, index %d/100, confidence %s\n", a.Level, a.Index, a.Confidence)
	}
	b.WriteString("\n")

	if report.Failed() {
		fmt.Fprintf(&b, "> Scan failed: %s\n", report.Error)
		return b.String()
	}

	for i, f := range report.Findings {
		lf, ok := f.MultiLang[r.lang]
		if !ok {
			lf = sourceLocalized(f)
		}
		fmt.Fprintf(&b, "## %d. %s `%s`\n\n", i+1, lf.Title, f.RuleCode)
		fmt.Fprintf(&b, "- **Severity:** %s (confidence %.2f)\n", f.Severity, f.Confidence)
		fmt.Fprintf(&b, "- **Law:** %s %s\n", f.Law.Ref, f.Law.Title)
		fmt.Fprintf(&b, "- **Location:** page %d, char %d\n\n", f.Locator.PageGuess, f.Locator.CharIndex)
		if lf.Excerpt != "" {
			fmt.Fprintf(&b, "> %s\n\n", lf.Excerpt)
		}
		if lf.Why != "" {
			fmt.Fprintf(&b, "%s\n\n", lf.Why)
		}
		if lf.Fix != "" {
			fmt.Fprintf(&b, "**Suggested fix:** %s\n\n", lf.Fix)
		}
	}

	if len(report.Evidence) > 0 {
		fmt.Fprintf(&b, "## Evidence\n\n")
		for _, c := range report.Evidence {
			fmt.Fprintf(&b, "- %s %s: %s\n", c.Ref, c.Title, c.Snippet)
		}
		b.WriteString("\n")
	}

	if len(report.Degradations) > 0 {
		fmt.Fprintf(&b, "## Degradations\n\n")
		for _, d := range report.Degradations {
			fmt.Fprintf(&b, "- [%s/%s] %s\n", d.Stage, d.Kind, d.Message)
		}
	}
	return b.String()
}

// RenderSummary prints a short overview
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	if report.Failed() {
		fmt.Fprintf(w, "✗ %s: %s\n", orDash(report.Source), report.Error)
		return
	}
	counts := report.CountBySeverity()
	fmt.Fprintf(w, "✓ %s: %d violations (high %d, medium %d, low %d), %d citations",
		orDash(report.Source), len(report.Findings),
		counts[model.SeverityHigh], counts[model.SeverityMedium], counts[model.SeverityLow],
		len(report.Evidence))
	if n := len(report.Degradations); n > 0 {
		fmt.Fprintf(w, ", %d degraded", n)
	}
	if a := report.Assessment; a != nil {
		fmt.Fprintf(w, " [%s %d/100]", a.Level, a.Index)
	}
	fmt.Fprintln(w)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
