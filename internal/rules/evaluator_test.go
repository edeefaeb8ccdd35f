package rules

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ppiankov/clausecheck/internal/index"
	"github.com/ppiankov/clausecheck/internal/model"
)

const sampleContract = "Кредитный договор № 17. Заемщик вправе осуществить досрочное погашение кредита. " +
	"За досрочное погашение взимается комиссия 500 сом. " +
	"За просрочку платежа начисляется неустойка 20% годовых. " +
	"Дополнительные платежи взимаются по тарифам банка."

func lawDocs() []model.KnowledgeDoc {
	return []model.KnowledgeDoc{
		{LawID: "nbkr", Ref: "П.21(7)", Title: "Досрочное погашение", Text: "Право заемщика на досрочное погашение без комиссий."},
		{LawID: "nbkr", Ref: "П.21(8)", Title: "Ограничение неустойки", Text: "Неустойка не более процентной ставки по кредиту."},
		{LawID: "nbkr", Ref: "П.42", Title: "Перечень расходов", Text: "Иные комиссии вне перечня запрещены."},
	}
}

type failingRetriever struct{}

func (failingRetriever) Search(context.Context, string, int, string) ([]model.Citation, error) {
	return nil, errors.New("index offline")
}

func TestEvaluate_PrepaymentScenario(t *testing.T) {
	atom := model.RuleAtom{
		Code:      "prepayment_no_fees",
		LawRef:    "П.21(7)",
		Title:     model.LocalizedText{EN: "Right to early repayment without fees"},
		HintsAny:  []string{"досроч"},
		MustNot:   []string{"комисси"},
		Predicate: model.PredicateHintsAndEvidence,
		Severity:  model.SeverityHigh,
	}
	text := "Заемщик вправе на досрочное погашение кредита. При этом взимается комиссия 500 сом за операцию."

	ev := NewEvaluator(index.New(lawDocs(), index.Options{}, nil, nil), 3, nil)
	findings, errs := ev.Evaluate(context.Background(), text, NewCatalog([]model.RuleAtom{atom}))

	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if !strings.Contains(f.OffendingText, "комиссия 500 сом") {
		t.Errorf("expected offending text to contain the fee clause, got %q", f.OffendingText)
	}
	if len(f.Citations) == 0 || f.Citations[0].Ref != "П.21(7)" {
		t.Errorf("expected hinted citation first, got %+v", f.Citations)
	}
	if f.Law.Ref != "П.21(7)" || f.Law.Title != "Досрочное погашение" {
		t.Errorf("expected law from top citation, got %+v", f.Law)
	}
	if f.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %v", f.Confidence)
	}
}

func TestEvaluate_DefaultCatalog(t *testing.T) {
	ev := NewEvaluator(index.New(lawDocs(), index.Options{}, nil, nil), 3, nil)
	findings, errs := ev.Evaluate(context.Background(), sampleContract, DefaultCatalog())

	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}

	var codes []string
	for _, f := range findings {
		codes = append(codes, f.RuleCode)
	}
	want := []string{"prepayment_no_fees", "penalty_cap_10", "penalty_rate_le_credit_rate", "fees_annex_only"}
	if !reflect.DeepEqual(codes, want) {
		t.Errorf("expected findings %v in catalog order, got %v", want, codes)
	}

	for _, f := range findings {
		switch f.Severity {
		case model.SeverityHigh:
			if f.Confidence != 0.85 {
				t.Errorf("%s: expected 0.85, got %v", f.RuleCode, f.Confidence)
			}
		default:
			if f.Confidence != 0.75 {
				t.Errorf("%s: expected 0.75, got %v", f.RuleCode, f.Confidence)
			}
		}
	}
}

func TestEvaluate_Predicates(t *testing.T) {
	tests := []struct {
		name string
		text string
		code string
		want bool
	}{
		{"prepayment notice period", "Досрочное погашение при уведомлении за 30 дней.", "prepayment_no_fees", true},
		{"prepayment fee", "Досрочное погашение, штраф 1%.", "prepayment_no_fees", true},
		{"prepayment clean", "Заемщик вправе погасить кредит досрочно в любое время.", "prepayment_no_fees", false},
		{"prepayment fee without hint", "Комиссия за выдачу кредита.", "prepayment_no_fees", false},
		{"penalty cap pattern without hint", "Ставка 20 процентов годовых.", "penalty_cap_10", true},
		{"penalty cap spaced percent", "Пени 20 % в день.", "penalty_cap_10", true},
		{"penalty cap within limits", "Неустойка 0,1% в день.", "penalty_cap_10", false},
		{"penalty rate missing clause", "Неустойка 0,1% в день.", "penalty_rate_le_credit_rate", true},
		{"penalty rate stated", "Неустойка не более процентной ставки по кредиту.", "penalty_rate_le_credit_rate", false},
		{"fees annex tariff", "Комиссии по тарифу банка.", "fees_annex_only", true},
		{"fees annex additional payments", "Перечень: дополнительные платежи.", "fees_annex_only", true},
		{"fees annex no evidence", "Перечень расходов приведен в Приложении 6.", "fees_annex_only", false},
	}

	cat := DefaultCatalog()
	ev := NewEvaluator(nil, 3, nil)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, _ := ev.Evaluate(context.Background(), tt.text, cat)
			got := false
			for _, f := range findings {
				if f.RuleCode == tt.code {
					got = true
				}
			}
			if got != tt.want {
				t.Errorf("%s on %q: expected %v, got %v", tt.code, tt.text, tt.want, got)
			}
		})
	}
}

func TestEvaluate_NoTriggers(t *testing.T) {
	ev := NewEvaluator(index.New(lawDocs(), index.Options{}, nil, nil), 3, nil)
	findings, errs := ev.Evaluate(context.Background(), "Настоящий документ описывает погоду в горах.", DefaultCatalog())

	if len(findings) != 0 || len(errs) != 0 {
		t.Errorf("expected no findings and no errors, got %d findings, %v", len(findings), errs)
	}
	if findings == nil {
		t.Error("expected empty, non-nil findings")
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	ev := NewEvaluator(index.New(lawDocs(), index.Options{}, nil, nil), 3, nil)

	first, _ := ev.Evaluate(context.Background(), sampleContract, DefaultCatalog())
	second, _ := ev.Evaluate(context.Background(), sampleContract, DefaultCatalog())

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical findings across runs")
	}
}

func TestEvaluate_LocatorRoundTrip(t *testing.T) {
	ev := NewEvaluator(nil, 3, nil)
	findings, _ := ev.Evaluate(context.Background(), sampleContract, DefaultCatalog())

	for _, f := range findings {
		pos := strings.Index(sampleContract, f.OffendingText)
		if pos < 0 {
			t.Fatalf("%s: expected literal offending text in single-spaced document", f.RuleCode)
		}
		want := utf8.RuneCountInString(sampleContract[:pos])
		if f.Locator.CharIndex != want {
			t.Errorf("%s: expected char index %d, got %d", f.RuleCode, want, f.Locator.CharIndex)
		}
		if f.Locator.PageGuess != 1 {
			t.Errorf("%s: expected page 1, got %d", f.RuleCode, f.Locator.PageGuess)
		}
	}
}

func TestEvaluate_MalformedRuleIsolated(t *testing.T) {
	atoms := DefaultAtoms()
	bad := model.RuleAtom{Code: "broken", Predicate: model.PredicateForbidden, Patterns: []string{"(("}, Severity: model.SeverityLow}
	atoms = append(atoms[:1], append([]model.RuleAtom{bad}, atoms[1:]...)...)

	ev := NewEvaluator(nil, 3, nil)
	findings, errs := ev.Evaluate(context.Background(), sampleContract, NewCatalog(atoms))

	if len(findings) != 4 {
		t.Errorf("expected the 4 valid rules to still fire, got %d", len(findings))
	}
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidRule) {
		t.Fatalf("expected one ErrInvalidRule, got %v", errs)
	}
	var re *RuleError
	if !errors.As(errs[0], &re) || re.Code != "broken" {
		t.Errorf("expected RuleError for broken, got %v", errs[0])
	}
}

func TestEvaluate_CitationLookupFailure(t *testing.T) {
	ev := NewEvaluator(failingRetriever{}, 3, nil)
	findings, errs := ev.Evaluate(context.Background(), sampleContract, DefaultCatalog())

	if len(findings) != 4 {
		t.Fatalf("expected findings despite retrieval failure, got %d", len(findings))
	}
	for _, f := range findings {
		if f.Citations == nil || len(f.Citations) != 0 {
			t.Errorf("%s: expected empty citation list, got %v", f.RuleCode, f.Citations)
		}
		if f.Law.Ref != f.LawRef || f.Law.Title != "" {
			t.Errorf("%s: expected fallback law ref, got %+v", f.RuleCode, f.Law)
		}
	}
	if len(errs) != 4 {
		t.Fatalf("expected one error per finding, got %d", len(errs))
	}
	for _, err := range errs {
		if !errors.Is(err, ErrCitationLookup) {
			t.Errorf("expected ErrCitationLookup, got %v", err)
		}
	}
}

func TestOffendingExcerpt_Window(t *testing.T) {
	text := strings.Repeat("а", 200) + "КОМИССИЯ" + strings.Repeat("б", 300)
	atom := model.RuleAtom{MustNot: []string{"комисси"}}

	got := OffendingExcerpt(text, atom)
	if n := utf8.RuneCountInString(got); n != 120+7+220 {
		t.Errorf("expected %d runes, got %d", 120+7+220, n)
	}
	if !strings.HasPrefix(got, strings.Repeat("а", 120)+"КОМИССИ") {
		t.Errorf("unexpected window start %q", got[:40])
	}
}

func TestOffendingExcerpt_PriorityAndFallback(t *testing.T) {
	text := "Пункт о погашении.   Комиссия\n\tвзимается."
	atom := model.RuleAtom{HintsAny: []string{"погашени"}, MustNot: []string{"комиссия"}}

	got := OffendingExcerpt(text, atom)
	if got != "Пункт о погашении. Комиссия взимается." {
		t.Errorf("expected collapsed whitespace, got %q", got)
	}

	long := strings.Repeat("ж", 500)
	if got := OffendingExcerpt(long, model.RuleAtom{HintsAny: []string{"нет"}}); utf8.RuneCountInString(got) != 400 {
		t.Errorf("expected 400-rune fallback, got %d", utf8.RuneCountInString(got))
	}
}

func TestCatalog_PrecompilesExcerptTerms(t *testing.T) {
	cat := DefaultCatalog()
	for _, r := range cat.rules {
		want := 0
		for _, term := range append(append([]string{}, r.atom.MustNot...), r.atom.HintsAny...) {
			if term != "" {
				want++
			}
		}
		if len(r.terms) != want {
			t.Errorf("%s: %d compiled terms, want %d", r.atom.Code, len(r.terms), want)
		}
		if got, direct := excerpt(sampleContract, r.terms), OffendingExcerpt(sampleContract, r.atom); got != direct {
			t.Errorf("%s: precompiled excerpt %q differs from %q", r.atom.Code, got, direct)
		}
	}
}
