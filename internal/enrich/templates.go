package enrich

import "strings"

const riskParagraph = "По сути, формулировка ограничивает права заемщика и противоречит обязательным требованиям НБКР. " +
	"Она создает риск необоснованных расходов для клиента и снижает прозрачность условий. " +
	"Требуется привести договор в соответствие с нормами и исключить двусмысленность."

// ReasonLong explains which rule was violated and which norms apply
func ReasonLong(ruleTitle string, lawTitles []string) string {
	var b strings.Builder
	b.WriteString("Данный пункт договора нарушает правило: «")
	b.WriteString(ruleTitle)
	b.WriteString("». ")
	if len(lawTitles) > 0 {
		b.WriteString("Соответствующие нормы: ")
		b.WriteString(strings.Join(lawTitles, "; "))
		b.WriteString(". ")
	}
	b.WriteString(riskParagraph)
	return b.String()
}

type fixTemplate struct {
	keys []string
	text string
}

// fixTemplates are checked in order against the lowercased rule title
var fixTemplates = []fixTemplate{
	{
		keys: []string{"early repayment", "досроч"},
		text: "Заменить условие о досрочном погашении на: " +
			"«Заемщик вправе погасить кредит полностью или частично в любое время " +
			"без взимания каких-либо комиссий, штрафных санкций и иных платежей. " +
			"Проценты начисляются только до фактической даты досрочного погашения».",
	},
	{
		keys: []string{"penalty", "неусто"},
		text: "Скорректировать пункт о неустойке: " +
			"«Размер неустойки не превышает процентную ставку по кредиту; " +
			"суммарный размер всех штрафов/пеней за весь срок кредита — не более 10% от суммы кредита».",
	},
	{
		keys: []string{"cession", "уступк"},
		text: "Исключить право уступки без согласия заемщика и указать: " +
			"«Уступка права требования допускается исключительно при наличии письменного согласия заемщика».",
	},
}

const genericFix = "Сформулировать пункт в соответствии с нормами НБКР, исключив односторонние права и неполные раскрытия."

// SuggestedFix picks the corrective clause for the rule's category
func SuggestedFix(ruleTitle string) string {
	lt := strings.ToLower(ruleTitle)
	for _, tpl := range fixTemplates {
		for _, k := range tpl.keys {
			if strings.Contains(lt, k) {
				return tpl.text
			}
		}
	}
	return genericFix
}
