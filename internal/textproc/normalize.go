// Package textproc turns free-form ticket text into the canonical token
// stream shared by model training, inference, and team routing.
//
// The pipeline is fixed: Unicode fold to lowercase, strip URLs, strip
// everything that is not a letter, digit, or whitespace, drop standalone
// numbers, collapse whitespace, drop English stopwords, and lemmatize each
// remaining token as a noun. Every stage is a pure function and the
// resources it reads (stopwords, noun lexicon) are built once at init.
package textproc

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// urlRe matches anything that starts like a link up to the next whitespace.
var urlRe = regexp.MustCompile(`https?\S+|www\S+`)

// Normalize runs the full pipeline over text. It never fails; empty or
// all-punctuation input yields "".
func Normalize(text string) string {
	tokens := strings.Fields(Clean(text))
	tokens = RemoveStopwords(tokens)
	for i, tok := range tokens {
		tokens[i] = Lemmatize(tok)
	}
	return strings.Join(tokens, " ")
}

// Combine builds the document the classifier sees for a ticket. The title is
// repeated so its terms carry twice the weight of description terms.
func Combine(title, description string) string {
	return Normalize(title + " " + title + " " + description)
}

// Clean applies the character-level stages: case folding, URL removal,
// punctuation removal, standalone number removal, and whitespace collapse.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	// cases.Caser keeps internal state, one per call
	s := cases.Lower(language.English).String(norm.NFKC.String(text))
	s = urlRe.ReplaceAllString(s, " ")
	s = strings.Map(keepRune, s)

	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		if isNumber(f) {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

// RemoveStopwords filters tokens in place and returns the kept prefix.
func RemoveStopwords(tokens []string) []string {
	out := tokens[:0]
	for _, tok := range tokens {
		if IsStopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func keepRune(r rune) rune {
	switch {
	case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsDigit(r):
		return r
	case unicode.IsSpace(r):
		return ' '
	}
	return -1
}

func isNumber(tok string) bool {
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return tok != ""
}
