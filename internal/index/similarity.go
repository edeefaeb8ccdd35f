package index

import (
	"math"
	"strings"
)

// Cosine returns the cosine similarity of a and b.
// Vectors of different length are truncated to the shorter one;
// a zero-norm vector yields 0.
func Cosine(a, b []float64) float64 {
	d := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < d; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / math.Sqrt(na*nb)
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// Jaccard returns the overlap of the lowercase whitespace tokens of a and b
func Jaccard(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)

	inter := 0
	for t := range sa {
		if sb[t] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(max(1, union))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(s)) {
		set[t] = true
	}
	return set
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
