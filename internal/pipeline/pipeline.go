// Package pipeline runs one contract through extraction, rule evaluation,
// enrichment and translation, and assembles the auditable report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/clausecheck/internal/enrich"
	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/model"
	"github.com/ppiankov/clausecheck/internal/rules"
	"github.com/ppiankov/clausecheck/internal/score"
)

// DefaultGoal is recorded when the caller gives none
const DefaultGoal = "Check the contract against NBKR consumer-credit requirements"

// Input is one document to scan. A non-blank Text bypasses extraction.
type Input struct {
	Goal        string
	Text        string
	Data        []byte
	ContentType string
	Source      string
}

// Translator is the never-failing translation collaborator (translate.Safe)
type Translator interface {
	Enabled() bool
	Translate(ctx context.Context, text, target string) (string, bool)
}

// RetrievalHealth reports a dense backend that fell back to lexical
type RetrievalHealth interface {
	Unavailable(ctx context.Context) error
}

// ReportSink persists finished reports
type ReportSink interface {
	SaveReport(ctx context.Context, r *model.Report) error
}

// Options wires the orchestrator's collaborators
type Options struct {
	Extractor   extract.Extractor
	Evaluator   *rules.Evaluator
	Catalog     *rules.Catalog
	Enricher    *enrich.Enricher
	Translator  Translator      // nil disables translation
	Retrieval   RetrievalHealth // optional
	Sink        ReportSink      // optional
	Targets     []string        // translation targets, default en, ky
	Concurrency int             // concurrent translation calls, default 4
	Logger      *zap.Logger
}

// Pipeline orchestrates the scan stages in strict order:
// ocr, evaluate, enrich, translate, assemble.
type Pipeline struct {
	extractor   extract.Extractor
	evaluator   *rules.Evaluator
	catalog     *rules.Catalog
	enricher    *enrich.Enricher
	scorer      *score.Scorer
	translator  Translator
	retrieval   RetrievalHealth
	sink        ReportSink
	targets     []string
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// New creates a pipeline. Missing extractor, evaluator, catalog and
// enricher are replaced with lexical-only defaults.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		extractor:   opts.Extractor,
		evaluator:   opts.Evaluator,
		catalog:     opts.Catalog,
		enricher:    opts.Enricher,
		scorer:      score.NewScorer(),
		translator:  opts.Translator,
		retrieval:   opts.Retrieval,
		sink:        opts.Sink,
		targets:     opts.Targets,
		concurrency: opts.Concurrency,
		logger:      logger.Named("pipeline"),
		now:         time.Now,
	}
	if p.extractor == nil {
		p.extractor = extract.NewTextExtractor()
	}
	if p.evaluator == nil {
		p.evaluator = rules.NewEvaluator(nil, 0, logger)
	}
	if p.catalog == nil {
		p.catalog = rules.DefaultCatalog()
	}
	if p.enricher == nil {
		p.enricher = enrich.New(nil, logger)
	}
	if len(p.targets) == 0 {
		p.targets = []string{"en", "ky"}
	}
	if p.concurrency <= 0 {
		p.concurrency = 4
	}
	return p
}

// ScanFile reads path and runs the pipeline on it
func (p *Pipeline) ScanFile(ctx context.Context, path string) (*model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.Run(ctx, Input{
		Data:        data,
		ContentType: extract.ContentTypeForPath(path),
		Source:      path,
	}), nil
}

// Run executes every stage and always returns a report. Extraction failure
// and cancellation produce a failed report; every other failure is recovered,
// logged and recorded as a degradation.
func (p *Pipeline) Run(ctx context.Context, in Input) *model.Report {
	start := p.now()
	r := &model.Report{
		ID:        uuid.New().String(),
		Goal:      in.Goal,
		Source:    in.Source,
		StartedAt: start.UTC(),
		Findings:  []model.Finding{},
		Evidence:  []model.Citation{},
		Trace:     []model.TraceStep{},
	}
	if r.Goal == "" {
		r.Goal = DefaultGoal
	}
	log := p.logger.With(zap.String("report_id", r.ID), zap.String("source", in.Source))

	finish := func() *model.Report {
		r.ElapsedMS = p.now().Sub(start).Milliseconds()
		p.persist(ctx, r, log)
		return r
	}
	fail := func(err error) *model.Report {
		r.Status = model.StatusFailed
		r.Error = err.Error()
		r.Findings = []model.Finding{}
		log.Warn("scan failed", zap.String("kind", string(Classify(err))), zap.Error(err))
		return finish()
	}

	// ocr
	text, err := p.extract(ctx, in, r)
	if err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// evaluate
	if p.retrieval != nil {
		if err := p.retrieval.Unavailable(ctx); err != nil {
			p.degrade(r, log, "evaluate", err)
		}
	}
	findings, errs := p.evaluator.Evaluate(ctx, text, p.catalog)
	for _, e := range errs {
		p.degrade(r, log, "evaluate", e)
	}
	r.Trace = append(r.Trace, model.TraceStep{
		Step:        "policy",
		Tool:        "policy.flag",
		Args:        map[string]any{"rules": p.catalog.Len()},
		Observation: map[string]any{"items": len(findings), "errors": len(errs)},
	})
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// enrich
	for i := range findings {
		findings[i] = p.enricher.Enrich(findings[i], text)
	}
	r.Trace = append(r.Trace, model.TraceStep{
		Step:        "enrich",
		Tool:        "report.enrich",
		Args:        map[string]any{},
		Observation: map[string]any{"items": len(findings)},
	})
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// translate
	p.localize(ctx, findings, r, log)
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	// assemble
	var cites []model.Citation
	for _, f := range findings {
		cites = append(cites, f.Citations...)
	}
	r.Findings = findings
	r.Evidence = model.DedupeCitations(cites)
	r.Status = model.StatusCompleted
	r.Assessment = p.scorer.Calculate(r)
	r.Trace = append(r.Trace, model.TraceStep{
		Step: "decide",
		Tool: "agent",
		Args: map[string]any{},
		Observation: map[string]any{
			"status":     "stop",
			"violations": len(findings),
			"evidence":   len(r.Evidence),
			"level":      string(r.Assessment.Level),
		},
	})

	log.Info("scan completed",
		zap.Int("violations", len(r.Findings)),
		zap.Int("index", r.Assessment.Index),
		zap.Int("degradations", len(r.Degradations)))
	return finish()
}

// extract runs the ocr stage and records its trace step
func (p *Pipeline) extract(ctx context.Context, in Input, r *model.Report) (string, error) {
	step := model.TraceStep{
		Step: "ocr",
		Tool: "ocr.extract",
		Args: map[string]any{"content_type": in.ContentType},
	}
	defer func() { r.Trace = append(r.Trace, step) }()

	if strings.TrimSpace(in.Text) != "" {
		r.Lang, r.Pages = extract.GuessLang(in.Text), len(extract.Segment(in.Text))
		step.Observation = map[string]any{"ok": true, "chars": len([]rune(in.Text)), "lang": r.Lang, "pages": r.Pages}
		return in.Text, nil
	}

	res, err := p.extractor.Extract(ctx, in.Data, in.ContentType)
	if err == nil && strings.TrimSpace(res.Text) == "" {
		err = extract.ErrNoText
	}
	if err != nil {
		step.Observation = map[string]any{"ok": false, "error": err.Error()}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	r.Lang, r.Pages = res.Lang, res.Pages
	step.Observation = map[string]any{"ok": true, "chars": len([]rune(res.Text)), "lang": res.Lang, "pages": res.Pages}
	return res.Text, nil
}

func (p *Pipeline) degrade(r *model.Report, log *zap.Logger, stage string, err error) {
	kind := Classify(err)
	log.Warn("stage degraded", zap.String("stage", stage), zap.String("kind", string(kind)), zap.Error(err))
	r.Degradations = append(r.Degradations, model.Degradation{
		Stage:   stage,
		Kind:    string(kind),
		Message: err.Error(),
	})
}

func (p *Pipeline) persist(ctx context.Context, r *model.Report, log *zap.Logger) {
	if p.sink == nil {
		return
	}
	// a cancelled scan is still worth recording
	if err := p.sink.SaveReport(context.WithoutCancel(ctx), r); err != nil {
		p.degrade(r, log, "assemble", fmt.Errorf("%w: %w", ErrPersistence, err))
	}
}
