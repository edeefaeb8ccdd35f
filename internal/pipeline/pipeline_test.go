package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/clausecheck/internal/corpus"
	"github.com/ppiankov/clausecheck/internal/enrich"
	"github.com/ppiankov/clausecheck/internal/extract"
	"github.com/ppiankov/clausecheck/internal/index"
	"github.com/ppiankov/clausecheck/internal/model"
	"github.com/ppiankov/clausecheck/internal/rules"
	"github.com/ppiankov/clausecheck/internal/translate"
)

const contract = "Кредитный договор № 17. Заемщик вправе осуществить досрочное погашение кредита. " +
	"За досрочное погашение взимается комиссия 500 сом. " +
	"За просрочку платежа начисляется неустойка 20% годовых. " +
	"Дополнительные платежи взимаются по тарифам банка."

type fakeTranslator struct {
	mu       sync.Mutex
	failLang string
	calls    int
}

func (f *fakeTranslator) Enabled() bool { return true }

func (f *fakeTranslator) Translate(_ context.Context, text, target string) (string, bool) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if text == "" {
		return "", true
	}
	if target == f.failLang {
		return text, false
	}
	return "[" + target + "] " + text, true
}

type memorySink struct {
	reports []*model.Report
	err     error
}

func (s *memorySink) SaveReport(_ context.Context, r *model.Report) error {
	if s.err != nil {
		return s.err
	}
	s.reports = append(s.reports, r)
	return nil
}

type downRetrieval struct{}

func (downRetrieval) Unavailable(context.Context) error {
	return index.ErrRetrievalUnavailable
}

type failingRetriever struct{}

func (failingRetriever) Search(context.Context, string, int, string) ([]model.Citation, error) {
	return nil, errors.New("index offline")
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	ix := index.New(corpus.DefaultLaws(), index.Options{}, nil, nil)
	if opts.Evaluator == nil {
		opts.Evaluator = rules.NewEvaluator(ix, 3, opts.Logger)
	}
	if opts.Enricher == nil {
		opts.Enricher = enrich.New(ix, opts.Logger)
	}
	return New(opts)
}

func kinds(r *model.Report) map[string]int {
	out := make(map[string]int)
	for _, d := range r.Degradations {
		out[d.Kind]++
	}
	return out
}

func TestRun_TextInput(t *testing.T) {
	p := newPipeline(t, Options{})

	r := p.Run(context.Background(), Input{Text: contract, Source: "inline"})

	if r.Status != model.StatusCompleted {
		t.Fatalf("status = %s, error = %s", r.Status, r.Error)
	}
	if r.ID == "" || r.Goal != DefaultGoal {
		t.Errorf("missing id or default goal: %q %q", r.ID, r.Goal)
	}
	if r.Lang != "RU" || r.Pages != 1 {
		t.Errorf("expected RU/1 for a short russian contract, got %s/%d", r.Lang, r.Pages)
	}

	want := []string{"prepayment_no_fees", "penalty_cap_10", "penalty_rate_le_credit_rate", "fees_annex_only"}
	if len(r.Findings) != len(want) {
		t.Fatalf("expected %d findings, got %d", len(want), len(r.Findings))
	}
	for i, code := range want {
		f := r.Findings[i]
		if f.RuleCode != code {
			t.Errorf("findings[%d] = %s, want %s", i, f.RuleCode, code)
		}
		if f.ClauseExcerpt == "" || f.ReasonLong == "" || f.SuggestedFix == "" {
			t.Errorf("%s not enriched", code)
		}
		if f.Locator.CharIndex < 0 || f.Locator.CharIndex > len([]rune(contract)) {
			t.Errorf("%s locator out of range: %+v", code, f.Locator)
		}
	}

	// every rule cites from the same three laws
	if len(r.Evidence) != 3 {
		t.Errorf("expected 3 deduplicated citations, got %d", len(r.Evidence))
	}

	var steps []string
	for _, s := range r.Trace {
		steps = append(steps, s.Step)
	}
	if strings.Join(steps, ",") != "ocr,policy,enrich,i18n,decide" {
		t.Errorf("unexpected trace order: %v", steps)
	}
	if r.Trace[0].Observation["ok"] != true || r.Trace[1].Observation["items"] != 4 {
		t.Errorf("unexpected observations: %+v %+v", r.Trace[0].Observation, r.Trace[1].Observation)
	}
	if len(r.Degradations) != 0 {
		t.Errorf("unexpected degradations: %+v", r.Degradations)
	}
	if r.Assessment == nil || r.Assessment.Level == model.LevelCompliant {
		t.Fatalf("expected a non-compliant assessment, got %+v", r.Assessment)
	}
	if r.Trace[4].Observation["level"] != string(r.Assessment.Level) {
		t.Errorf("decide step level = %v, want %s", r.Trace[4].Observation["level"], r.Assessment.Level)
	}
}

func TestRun_TextInputMetadataMatchesExtractor(t *testing.T) {
	p := newPipeline(t, Options{})
	text := "стр. 1 из 2\nThe borrower may repay the loan early at any time.\n" +
		"стр. 2 из 2\nThe lender publishes its tariffs on the website."

	fromText := p.Run(context.Background(), Input{Text: text})
	fromData := p.Run(context.Background(), Input{Data: []byte(text), ContentType: "text/plain"})

	if fromText.Lang != "EN" || fromText.Pages != 2 {
		t.Errorf("text input: got %s/%d, want EN/2", fromText.Lang, fromText.Pages)
	}
	if fromText.Lang != fromData.Lang || fromText.Pages != fromData.Pages {
		t.Errorf("text input %s/%d differs from extractor %s/%d",
			fromText.Lang, fromText.Pages, fromData.Lang, fromData.Pages)
	}
	if fromText.Trace[0].Observation["pages"] != 2 {
		t.Errorf("ocr observation = %+v", fromText.Trace[0].Observation)
	}
}

func TestRun_TranslationDisabledKeepsSource(t *testing.T) {
	p := newPipeline(t, Options{})
	r := p.Run(context.Background(), Input{Text: contract})

	f := r.Findings[1]
	for _, lang := range []string{"ru", "en", "ky"} {
		lf, ok := f.MultiLang[lang]
		if !ok {
			t.Fatalf("missing %s block", lang)
		}
		if lf.Why != f.ReasonLong || lf.Excerpt != f.ClauseExcerpt {
			t.Errorf("%s block must keep source text", lang)
		}
		if lf.Title != f.Title.Get(lang) {
			t.Errorf("%s title = %q, want %q", lang, lf.Title, f.Title.Get(lang))
		}
	}
	if r.Trace[3].Observation["enabled"] != false {
		t.Errorf("expected disabled i18n step, got %+v", r.Trace[3].Observation)
	}
}

func TestRun_TranslationFailureDegrades(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	tr := &fakeTranslator{failLang: "ky"}
	p := newPipeline(t, Options{Translator: tr, Logger: zap.New(core), Concurrency: 2})

	r := p.Run(context.Background(), Input{Text: contract})

	if r.Status != model.StatusCompleted {
		t.Fatalf("translation failure must not fail the scan: %s", r.Error)
	}
	if want := expectedCalls(r.Findings, 2); tr.calls != want {
		t.Errorf("expected %d translation calls, got %d", want, tr.calls)
	}

	f := r.Findings[0]
	if got := f.MultiLang["en"].Why; got != "[en] "+f.ReasonLong {
		t.Errorf("en why = %q", got)
	}
	if got := f.MultiLang["ky"].Why; got != f.ReasonLong {
		t.Errorf("failed ky translation must keep source text, got %q", got)
	}
	if got := f.MultiLang["ru"].Why; got != f.ReasonLong {
		t.Errorf("ru must keep the original, got %q", got)
	}
	if f.MultiLang["ky"].Title != f.Title.KY {
		t.Errorf("ky title must come from the atom, got %q", f.MultiLang["ky"].Title)
	}

	k := kinds(r)
	if k[string(KindTranslation)] == 0 || len(k) != 1 {
		t.Errorf("expected only translation degradations, got %v", k)
	}
	if logs.FilterMessage("stage degraded").Len() != len(r.Degradations) {
		t.Errorf("every degradation must be logged: %d logs, %d degradations",
			logs.FilterMessage("stage degraded").Len(), len(r.Degradations))
	}
}

// expectedCalls counts one call per translated field and target language;
// an excerpt equal to the offending text is translated once.
func expectedCalls(findings []model.Finding, targets int) int {
	n := 0
	for _, f := range findings {
		per := 4
		if f.ClauseExcerpt == f.OffendingText {
			per = 3
		}
		n += per * targets
	}
	return n
}

func TestRun_SharedExcerptTranslatedOnce(t *testing.T) {
	tr := &fakeTranslator{}
	p := newPipeline(t, Options{Translator: tr, Concurrency: 2})

	r := p.Run(context.Background(), Input{Text: contract})
	if r.Status != model.StatusCompleted {
		t.Fatalf("status = %s: %s", r.Status, r.Error)
	}

	shared := 0
	for _, f := range r.Findings {
		if f.ClauseExcerpt != f.OffendingText {
			continue
		}
		shared++
		for _, lang := range []string{"en", "ky"} {
			lf := f.MultiLang[lang]
			want := "[" + lang + "] " + f.OffendingText
			if lf.Excerpt != want || lf.OffendingText != want {
				t.Errorf("%s/%s: excerpt %q, offending %q, want both %q", f.RuleCode, lang, lf.Excerpt, lf.OffendingText, want)
			}
		}
	}
	if shared == 0 {
		t.Fatal("fixture must produce a finding whose excerpt is the offending text")
	}
	if want := expectedCalls(r.Findings, 2); tr.calls != want {
		t.Errorf("expected %d translation calls, got %d", want, tr.calls)
	}
	if got := r.Trace[3].Observation["calls"]; got != tr.calls {
		t.Errorf("i18n observation calls = %v, translator saw %d", got, tr.calls)
	}
}

func TestRun_ExtractionFailure(t *testing.T) {
	tests := []struct {
		name  string
		in    Input
		cause error
	}{
		{"pdf", Input{Data: []byte("%PDF-1.5 scanned"), ContentType: "application/pdf"}, extract.ErrUnsupportedContent},
		{"empty", Input{Data: []byte("   \n  "), ContentType: "text/plain"}, extract.ErrNoText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			p := newPipeline(t, Options{Sink: sink})
			r := p.Run(context.Background(), tt.in)

			if r.Status != model.StatusFailed || r.Error == "" {
				t.Fatalf("expected failed report, got %s", r.Status)
			}
			if len(r.Findings) != 0 {
				t.Errorf("failed report must have no findings")
			}
			if len(r.Trace) != 1 || r.Trace[0].Observation["ok"] != false {
				t.Errorf("expected a single failed ocr step, got %+v", r.Trace)
			}
			if len(sink.reports) != 1 {
				t.Errorf("failed reports are persisted too")
			}
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newPipeline(t, Options{}).Run(ctx, Input{Text: contract})
	if r.Status != model.StatusFailed {
		t.Fatalf("expected failed, got %s", r.Status)
	}
	if !strings.Contains(r.Error, context.Canceled.Error()) {
		t.Errorf("error = %q", r.Error)
	}
}

func TestRun_RecoveredFailures(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	p := newPipeline(t, Options{
		Evaluator: rules.NewEvaluator(failingRetriever{}, 3, nil),
		Retrieval: downRetrieval{},
		Sink:      sink,
	})

	r := p.Run(context.Background(), Input{Text: contract})

	if r.Status != model.StatusCompleted {
		t.Fatalf("status = %s", r.Status)
	}
	k := kinds(r)
	if k[string(KindRetrievalUnavailable)] != 1 {
		t.Errorf("expected one retrieval_unavailable, got %v", k)
	}
	if k[string(KindCitationLookup)] != len(r.Findings) {
		t.Errorf("expected one citation_lookup per finding, got %v", k)
	}
	if k[string(KindPersistence)] != 1 {
		t.Errorf("expected one persistence degradation, got %v", k)
	}
	for _, f := range r.Findings {
		if f.Citations == nil || len(f.Citations) != 0 {
			t.Errorf("%s: expected empty citations", f.RuleCode)
		}
	}
	if len(r.Evidence) != 0 {
		t.Errorf("expected no evidence, got %d", len(r.Evidence))
	}
}

func TestRun_MalformedRuleIsolated(t *testing.T) {
	atoms := rules.DefaultAtoms()
	atoms[0].Patterns = []string{"(unclosed"}
	p := newPipeline(t, Options{Catalog: rules.NewCatalog(atoms)})

	r := p.Run(context.Background(), Input{Text: contract})

	if len(r.Findings) != 3 || r.Findings[0].RuleCode != "penalty_cap_10" {
		t.Errorf("other rules must still be evaluated, got %d findings", len(r.Findings))
	}
	if kinds(r)[string(KindRuleEvaluation)] != 1 {
		t.Errorf("expected one rule_evaluation degradation, got %+v", r.Degradations)
	}
}

func TestRun_Deterministic(t *testing.T) {
	p := newPipeline(t, Options{})
	a := p.Run(context.Background(), Input{Text: contract})
	b := p.Run(context.Background(), Input{Text: contract})

	if !reflect.DeepEqual(a.Findings, b.Findings) {
		t.Error("findings differ between identical runs")
	}
}

func TestScanFile_HTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contract.html")
	doc := "<html><body><p>" + contract + "</p></body></html>"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := newPipeline(t, Options{}).ScanFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if r.Status != model.StatusCompleted || r.Source != path {
		t.Fatalf("unexpected report: %s %s %s", r.Status, r.Source, r.Error)
	}
	if r.Lang != "RU" || len(r.Findings) != 4 {
		t.Errorf("lang %s, findings %d", r.Lang, len(r.Findings))
	}
	if r.Trace[0].Args["content_type"] != "text/html" {
		t.Errorf("content type not traced: %+v", r.Trace[0].Args)
	}
}

func TestScanFile_Missing(t *testing.T) {
	if _, err := newPipeline(t, Options{}).ScanFile(context.Background(), "/nonexistent/contract.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FailureKind
	}{
		{extract.ErrNoText, KindExtraction},
		{errors.Join(ErrExtraction, errors.New("x")), KindExtraction},
		{index.ErrRetrievalUnavailable, KindRetrievalUnavailable},
		{&rules.RuleError{Code: "c", Err: rules.ErrCitationLookup}, KindCitationLookup},
		{&rules.RuleError{Code: "c", Err: rules.ErrInvalidRule}, KindRuleEvaluation},
		{translate.ErrTranslationFailed, KindTranslation},
		{ErrPersistence, KindPersistence},
		{context.DeadlineExceeded, KindCancelled},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestRenderer(t *testing.T) {
	r := newPipeline(t, Options{}).Run(context.Background(), Input{Text: contract, Source: "c.txt"})
	dir := t.TempDir()
	rd := NewRenderer("en")

	jsonPath := filepath.Join(dir, "out", "report.json")
	if err := rd.RenderJSON(r, jsonPath); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"violations", "evidence", "agent_trace", "status", "assessment"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("JSON report missing %q", key)
		}
	}

	var streamed strings.Builder
	if err := rd.WriteJSON(&streamed, r); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if streamed.String() != string(data) {
		t.Error("WriteJSON output must match the rendered report file")
	}

	md := rd.Markdown(r)
	if !strings.Contains(md, "Excessive penalties for late payment") || !strings.Contains(md, "`penalty_cap_10`") {
		t.Errorf("markdown missing english title:\n%s", md)
	}

	var sb strings.Builder
	rd.RenderSummary(&sb, r)
	if !strings.Contains(sb.String(), "4 violations") {
		t.Errorf("summary = %q", sb.String())
	}
}
