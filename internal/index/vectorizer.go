package index

import (
	"errors"
	"math"
	"sort"
	"strings"
)

const (
	minGram         = 3
	maxGram         = 5
	defaultFeatures = 6000
)

// ErrNotFitted is returned when transforming with an unfitted vectorizer
var ErrNotFitted = errors.New("vectorizer not fitted")

// seedCorpus fits the vectorizer when the knowledge base is empty
var seedCorpus = []string{
	"seed",
	"credit agreement",
	"APR disclosure",
	"досрочное погашение кредита",
	"комиссия за досрочное погашение",
	"раскрытие комиссий",
	"персональные данные согласие",
}

// Vectorizer is a TF-IDF model over character n-grams taken inside word
// boundaries (each word padded with one space on both sides).
// It is fitted once; every transform returns vectors of length Dim().
type Vectorizer struct {
	maxFeatures int
	vocab       map[string]int
	idf         []float64
}

// NewVectorizer creates an unfitted vectorizer keeping at most maxFeatures terms
func NewVectorizer(maxFeatures int) *Vectorizer {
	if maxFeatures <= 0 {
		maxFeatures = defaultFeatures
	}
	return &Vectorizer{maxFeatures: maxFeatures}
}

// Fit learns vocabulary and inverse document frequencies from corpus.
// An all-empty corpus falls back to the built-in seed phrases.
func (v *Vectorizer) Fit(corpus []string) {
	docs := make([]string, 0, len(corpus))
	for _, c := range corpus {
		if strings.TrimSpace(c) != "" {
			docs = append(docs, c)
		}
	}
	if len(docs) == 0 {
		docs = seedCorpus
	}

	total := make(map[string]int)
	df := make(map[string]int)
	for _, d := range docs {
		counts := charWBNgrams(d)
		for term, c := range counts {
			total[term] += c
			df[term]++
		}
	}

	terms := make([]string, 0, len(total))
	for term := range total {
		terms = append(terms, term)
	}
	if len(terms) > v.maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if total[terms[i]] != total[terms[j]] {
				return total[terms[i]] > total[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.maxFeatures]
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v.vocab = make(map[string]int, len(terms))
	v.idf = make([]float64, len(terms))
	for i, term := range terms {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
}

// Fitted reports whether Fit has run
func (v *Vectorizer) Fitted() bool {
	return v.vocab != nil
}

// Dim returns the vocabulary size, the length of every transformed vector
func (v *Vectorizer) Dim() int {
	return len(v.idf)
}

// Transform maps texts to L2-normalized TF-IDF vectors
func (v *Vectorizer) Transform(texts []string) ([][]float64, error) {
	if !v.Fitted() {
		return nil, ErrNotFitted
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec := make([]float64, len(v.idf))
		for term, c := range charWBNgrams(t) {
			if j, ok := v.vocab[term]; ok {
				vec[j] = float64(c) * v.idf[j]
			}
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

// charWBNgrams counts lowercase n-grams of each space-padded word.
// Words shorter than the smallest n contribute themselves once.
func charWBNgrams(text string) map[string]int {
	counts := make(map[string]int)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		w := []rune(" " + word + " ")
		for n := minGram; n <= maxGram; n++ {
			if len(w) <= n {
				counts[string(w)]++
				break
			}
			for off := 0; off+n <= len(w); off++ {
				counts[string(w[off:off+n])]++
			}
		}
	}
	return counts
}

func normalize(vec []float64) {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
