package rules

import "github.com/ppiankov/clausecheck/internal/model"

// DefaultCatalog returns the built-in NBKR consumer-credit atoms
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultAtoms())
}

// DefaultAtoms returns a fresh copy of the built-in atoms
func DefaultAtoms() []model.RuleAtom {
	return []model.RuleAtom{
		{
			Code:   "prepayment_no_fees",
			LawRef: "П.21(7)",
			Title: model.LocalizedText{
				EN: "Right to early repayment without fees",
				RU: "Право на досрочное погашение без комиссий",
				KY: "Комиссиясыз мөөнөтүнөн мурда төлөө укугу",
			},
			Mandatory: true,
			HintsAny:  []string{"досроч", "предварительного уведомления", "погасить", "погашение"},
			MustNot:   []string{"комисс", "штраф", "иной платеж"},
			Patterns:  []string{`30\s*дн`, `предварительного уведомления`},
			Predicate: model.PredicateHintsAndEvidence,
			Severity:  model.SeverityHigh,
		},
		{
			Code:   "penalty_cap_10",
			LawRef: "П.21(8)",
			Title: model.LocalizedText{
				EN: "Excessive penalties for late payment",
				RU: "Чрезмерные штрафы за просрочку",
				KY: "Кечиктирүү боюнча ашыкча айыптар",
			},
			Mandatory: true,
			HintsAny:  []string{"неустойк", "штраф", "пен", "%", "процент"},
			MustNot:   []string{"20 процент", "20%"},
			Patterns:  []string{`20\s*%|20\s*процент`},
			Predicate: model.PredicateForbidden,
			Severity:  model.SeverityHigh,
		},
		{
			Code:   "penalty_rate_le_credit_rate",
			LawRef: "П.21(8)",
			Title: model.LocalizedText{
				EN: "Penalty rate must not exceed loan rate",
				RU: "Ставка неустойки не выше ставки по кредиту",
				KY: "Айып чени кредит ченинен жогору эмес",
			},
			Mandatory: true,
			HintsAny:  []string{"ставк", "неустойк", "штраф", "пен"},
			MustHave:  []string{"не более процентной ставки по кредиту"},
			Predicate: model.PredicateMissingRequired,
			Severity:  model.SeverityMedium,
		},
		{
			Code:   "fees_annex_only",
			LawRef: "П.42",
			Title: model.LocalizedText{
				EN: "All fees must be listed in Annex 6",
				RU: "Все комиссии только по Перечню (Прил. 6)",
				KY: "Бардык комиссиялар тиркеме 6да гана",
			},
			Mandatory: true,
			HintsAny:  []string{"расход", "перечень", "комисс", "штраф", "Приложени", "Прил."},
			MustHave:  []string{"перечень расходов", "не допускается включение дополнительных сборов"},
			Patterns:  []string{`дополнительные платежи`, `тариф`},
			Predicate: model.PredicateHintsAndEvidence,
			Severity:  model.SeverityMedium,
		},
	}
}
