package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ppiankov/clausecheck/internal/model"
	"github.com/ppiankov/clausecheck/internal/translate"
)

// SourceLang is the language of contracts and of the generated explanations
const SourceLang = "ru"

type field int

const (
	fieldExcerpt field = iota
	fieldOffending
	fieldWhy
	fieldFix
)

var fieldNames = [...]string{"excerpt", "offending_text", "why", "fix"}

type translationJob struct {
	finding int
	lang    string
	field   field
	text    string
	// mirror copies the excerpt result into OffendingText when both hold the same text
	mirror bool
}

// localize fills MultiLang on every finding. The source language keeps the
// original text; each target is translated concurrently with at most
// p.concurrency calls in flight. A failed call keeps the source text.
func (p *Pipeline) localize(ctx context.Context, findings []model.Finding, r *model.Report, log *zap.Logger) {
	enabled := p.translator != nil && p.translator.Enabled()

	var jobs []translationJob
	for i := range findings {
		f := &findings[i]
		f.MultiLang = make(map[string]model.LocalizedFinding, len(p.targets)+1)
		f.MultiLang[SourceLang] = sourceLocalized(*f)

		for _, lang := range p.targets {
			if lang == SourceLang {
				continue
			}
			lf := sourceLocalized(*f)
			lf.Title = f.Title.Get(lang)
			f.MultiLang[lang] = lf
			if !enabled {
				continue
			}
			same := f.ClauseExcerpt == f.OffendingText
			for fld, text := range []string{f.ClauseExcerpt, f.OffendingText, f.ReasonLong, f.SuggestedFix} {
				if field(fld) == fieldOffending && same {
					continue
				}
				jobs = append(jobs, translationJob{
					finding: i, lang: lang, field: field(fld), text: text,
					mirror: field(fld) == fieldExcerpt && same,
				})
			}
		}
	}

	step := model.TraceStep{
		Step: "i18n",
		Tool: "translate",
		Args: map[string]any{"targets": append([]string(nil), p.targets...)},
	}
	if !enabled {
		step.Observation = map[string]any{"enabled": false, "calls": 0}
		r.Trace = append(r.Trace, step)
		return
	}

	results := make([]string, len(jobs))
	failed := make([]bool, len(jobs))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)
	for i, job := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i], failed[i] = job.text, true
				return
			}
			defer func() { <-sem }()

			out, ok := p.translator.Translate(ctx, job.text, job.lang)
			results[i], failed[i] = out, !ok
		}()
	}
	wg.Wait()

	nFailed := 0
	for i, job := range jobs {
		lf := findings[job.finding].MultiLang[job.lang]
		setField(&lf, job.field, results[i])
		if job.mirror {
			setField(&lf, fieldOffending, results[i])
		}
		findings[job.finding].MultiLang[job.lang] = lf

		if failed[i] {
			nFailed++
			p.degrade(r, log, "translate", fmt.Errorf("%w: %s %s -> %s",
				translate.ErrTranslationFailed, findings[job.finding].RuleCode, fieldNames[job.field], job.lang))
		}
	}

	step.Observation = map[string]any{"enabled": true, "calls": len(jobs), "failed": nFailed}
	r.Trace = append(r.Trace, step)
}

func sourceLocalized(f model.Finding) model.LocalizedFinding {
	return model.LocalizedFinding{
		Title:         f.Title.Get(SourceLang),
		Excerpt:       f.ClauseExcerpt,
		OffendingText: f.OffendingText,
		Why:           f.ReasonLong,
		Fix:           f.SuggestedFix,
	}
}

func setField(lf *model.LocalizedFinding, f field, text string) {
	switch f {
	case fieldExcerpt:
		lf.Excerpt = text
	case fieldOffending:
		lf.OffendingText = text
	case fieldWhy:
		lf.Why = text
	case fieldFix:
		lf.Fix = text
	}
}
