package corpus

import "github.com/ppiankov/clausecheck/internal/model"

// DefaultLawID names the built-in compendium of NBKR requirements
const DefaultLawID = "initial_nbkr_compendium"

// DefaultLaws returns the built-in knowledge base used when no corpus is configured
func DefaultLaws() []model.KnowledgeDoc {
	laws := []model.KnowledgeDoc{
		{
			LawID: DefaultLawID,
			Ref:   "П.21(7)",
			Title: "Право заемщика на досрочное погашение без комиссий",
			Text:  "Кредитный договор должен предусматривать право заемщика на досрочное погашение кредита в любое время без каких-либо комиссий, штрафных санкций и иных платежей.",
		},
		{
			LawID: DefaultLawID,
			Ref:   "П.21(8)",
			Title: "Ограничение неустойки",
			Text:  "Размер процента по неустойке (штрафам, пени) должен быть не более процентной ставки по кредиту; размер неустойки за весь период действия кредита не должен превышать 10 процентов от суммы кредита.",
		},
		{
			LawID: DefaultLawID,
			Ref:   "П.42",
			Title: "Требования к комиссиям и расходам; перечень (Приложение 6)",
			Text:  "Взимаемые банком услуги должны иметь отдельную ценность; запрещается взимание за одну и ту же операцию; перечень расходов и штрафных санкций является неотъемлемой частью договора; включение иных комиссий/услуг вне перечня запрещается.",
		},
	}
	for i := range laws {
		laws[i].ID = DocID(laws[i].LawID, laws[i].Ref, 0)
	}
	return laws
}
