package extract

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSegment_Empty(t *testing.T) {
	spans := Segment("")
	if spans == nil || len(spans) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", spans)
	}
}

func TestSegment_NoMarkersCoversText(t *testing.T) {
	for _, n := range []int{1, 5, 2999, 3000, 6001, 10000, 45000} {
		text := strings.Repeat("д", n)
		spans := Segment(text)

		if len(spans) < 1 || len(spans) > 10 {
			t.Fatalf("n=%d: expected 1..10 spans, got %d", n, len(spans))
		}
		if spans[0].Start != 0 {
			t.Errorf("n=%d: first span should start at 0, got %d", n, spans[0].Start)
		}
		for i := 1; i < len(spans); i++ {
			if spans[i].Start != spans[i-1].End {
				t.Errorf("n=%d: gap or overlap between span %d and %d", n, i-1, i)
			}
			if spans[i].Page != i+1 {
				t.Errorf("n=%d: expected page %d, got %d", n, i+1, spans[i].Page)
			}
		}
		if last := spans[len(spans)-1]; last.End != n {
			t.Errorf("n=%d: last span should end at %d, got %d", n, n, last.End)
		}
	}
}

func TestSegment_PageCountHeuristic(t *testing.T) {
	tests := []struct {
		n     int
		pages int
	}{
		{100, 1},
		{9000, 3},
		{45000, 10},
	}

	for _, tt := range tests {
		spans := Segment(strings.Repeat("x", tt.n))
		if len(spans) != tt.pages {
			t.Errorf("n=%d: expected %d pages, got %d", tt.n, tt.pages, len(spans))
		}
	}
}

func TestSegment_Markers(t *testing.T) {
	text := "Начало договора стр. 1 из 3 условия кредита Стр. 2 из 3 неустойка СТР.3 ИЗ 3 подписи"
	spans := Segment(text)

	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d: %v", len(spans), spans)
	}

	first := utf8.RuneCountInString(text[:strings.Index(text, "стр. 1")])
	if spans[0].Start != 0 || spans[0].End != first {
		t.Errorf("expected leading span [0,%d), got [%d,%d)", first, spans[0].Start, spans[0].End)
	}
	second := utf8.RuneCountInString(text[:strings.Index(text, "Стр. 2")])
	if spans[1].Start != first || spans[1].End != second {
		t.Errorf("expected span [%d,%d), got [%d,%d)", first, second, spans[1].Start, spans[1].End)
	}
	if spans[3].End != utf8.RuneCountInString(text) {
		t.Errorf("last span should end at text length, got %d", spans[3].End)
	}
}

func TestSegment_MarkerAtStart(t *testing.T) {
	text := "стр. 1 из 2 первая страница стр. 2 из 2 вторая"
	spans := Segment(text)

	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d: %v", len(spans), spans)
	}
	if spans[0].Start != 0 || spans[0].End == 0 {
		t.Errorf("first span should be non-empty from 0, got %v", spans[0])
	}
}

func TestSplitSentences(t *testing.T) {
	text := "Первое предложение. Второе! Третье?\r\nЧетвертое… пятое.."
	got := SplitSentences(text)
	want := []string{"Первое предложение", "Второе", "Третье", "Четвертое", "пятое"}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}

	if SplitSentences("") != nil {
		t.Error("expected nil for empty text")
	}
	if got := SplitSentences(" . \n ! "); len(got) != 0 {
		t.Errorf("expected no sentences from punctuation only, got %q", got)
	}
}

func TestLocate(t *testing.T) {
	text := "Раздел 1. Заемщик вправе погасить кредит досрочно. стр. 1 из 2 Комиссия 500 сом взимается."
	spans := Segment(text)

	loc := Locate(text, "Комиссия 500 сом", spans)
	want := utf8.RuneCountInString(text[:strings.Index(text, "Комиссия")])
	if loc.CharIndex != want {
		t.Errorf("expected char index %d, got %d", want, loc.CharIndex)
	}
	if loc.PageGuess != 2 {
		t.Errorf("expected page 2, got %d", loc.PageGuess)
	}

	missing := Locate(text, "нет такого текста", spans)
	if missing.CharIndex != 0 || missing.PageGuess != 1 {
		t.Errorf("expected sentinel (1, 0), got (%d, %d)", missing.PageGuess, missing.CharIndex)
	}
}
