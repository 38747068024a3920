package textproc

import (
	_ "embed"
	"strings"
)

// nouns.txt lists base-form nouns separated by whitespace; lines starting
// with # are comments. A suffix rule only fires
// when it lands on an entry, so unknown words pass through unchanged.
//
//go:embed nouns.txt
var nounList string

// nounRules are the plural detachment rules, tried in order.
var nounRules = []struct{ suffix, repl string }{
	{"s", ""},
	{"ses", "s"},
	{"xes", "x"},
	{"zes", "z"},
	{"ches", "ch"},
	{"shes", "sh"},
	{"men", "man"},
	{"ies", "y"},
}

// irregularNouns maps plurals that no suffix rule can recover.
var irregularNouns = map[string]string{
	"analyses":    "analysis",
	"appendices":  "appendix",
	"axes":        "axis",
	"children":    "child",
	"crises":      "crisis",
	"criteria":    "criterion",
	"diagnoses":   "diagnosis",
	"feet":        "foot",
	"geese":       "goose",
	"halves":      "half",
	"indices":     "index",
	"knives":      "knife",
	"leaves":      "leaf",
	"lives":       "life",
	"matrices":    "matrix",
	"mice":        "mouse",
	"parentheses": "parenthesis",
	"phenomena":   "phenomenon",
	"selves":      "self",
	"shelves":     "shelf",
	"teeth":       "tooth",
	"theses":      "thesis",
	"vertices":    "vertex",
	"wives":       "wife",
	"women":       "woman",
}

var nouns = func() map[string]struct{} {
	m := make(map[string]struct{}, 1024)
	for _, line := range strings.Split(nounList, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		for _, w := range strings.Fields(line) {
			if !IsStopword(w) {
				m[w] = struct{}{}
			}
		}
	}
	for _, base := range irregularNouns {
		m[base] = struct{}{}
	}
	return m
}()

// Lemmatize returns the noun base form of tok. Verbs are not reduced:
// "running" stays "running" while "tests" becomes "test". Among the
// candidate forms found in the lexicon the shortest wins; if none is found
// tok is returned as is.
func Lemmatize(tok string) string {
	if len(tok) < 3 {
		return tok
	}

	var candidates []string
	if _, ok := nouns[tok]; ok {
		candidates = append(candidates, tok)
	}
	if base, ok := irregularNouns[tok]; ok {
		candidates = append(candidates, base)
	} else {
		for _, r := range nounRules {
			if !strings.HasSuffix(tok, r.suffix) {
				continue
			}
			stem := tok[:len(tok)-len(r.suffix)] + r.repl
			if _, ok := nouns[stem]; ok {
				candidates = append(candidates, stem)
			}
		}
	}

	if len(candidates) == 0 {
		return tok
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if len(c) < len(best) {
			best = c
		}
	}
	return best
}
