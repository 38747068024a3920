package priority

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// feature is one non-zero entry of a document vector.
type feature struct {
	idx int
	val float64
}

// vectorizer maps documents to L2-normalised TF-IDF vectors over a bounded
// vocabulary. Terms are kept in lexical order so the vocabulary index of a
// term does not depend on the order documents were seen in.
type vectorizer struct {
	terms []string
	index map[string]int
	idf   []float64
}

// fitVectorizer learns the vocabulary and smoothed idf weights from docs.
// When the corpus has more than maxFeatures distinct terms, the most
// frequent ones across the whole corpus are kept, ties broken lexically.
func fitVectorizer(docs []string, maxFeatures int) *vectorizer {
	total := make(map[string]int)
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range analyze(doc) {
			total[tok]++
			if _, ok := seen[tok]; !ok {
				seen[tok] = struct{}{}
				df[tok]++
			}
		}
	}

	terms := make([]string, 0, len(total))
	for t := range total {
		terms = append(terms, t)
	}
	if maxFeatures > 0 && len(terms) > maxFeatures {
		slices.SortFunc(terms, func(a, b string) int {
			if total[a] != total[b] {
				return total[b] - total[a]
			}
			return strings.Compare(a, b)
		})
		terms = terms[:maxFeatures]
	}
	slices.Sort(terms)

	n := float64(len(docs))
	v := &vectorizer{
		terms: terms,
		index: make(map[string]int, len(terms)),
		idf:   make([]float64, len(terms)),
	}
	for i, t := range terms {
		v.index[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

func newVectorizer(terms []string, idf []float64) *vectorizer {
	v := &vectorizer{terms: terms, idf: idf, index: make(map[string]int, len(terms))}
	for i, t := range terms {
		v.index[t] = i
	}
	return v
}

func (v *vectorizer) size() int { return len(v.terms) }

// transform returns the sparse vector of doc sorted by feature index.
// Terms outside the vocabulary are ignored.
func (v *vectorizer) transform(doc string) []feature {
	counts := make(map[int]int)
	for _, tok := range analyze(doc) {
		if i, ok := v.index[tok]; ok {
			counts[i]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	out := make([]feature, 0, len(counts))
	var norm float64
	for i, c := range counts {
		w := float64(c) * v.idf[i]
		out = append(out, feature{idx: i, val: w})
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range out {
		out[i].val /= norm
	}
	slices.SortFunc(out, func(a, b feature) int { return a.idx - b.idx })
	return out
}

// analyze lowercases doc and splits it into word tokens of at least two
// characters.
func analyze(doc string) []string {
	fields := strings.FieldsFunc(strings.ToLower(doc), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}
