package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var quoteReplacer = strings.NewReplacer("’", "'", "‘", "'", "`", "'")

// Normalize applies NFKC normalisation, folds typographic apostrophes,
// drops control characters, collapses runs of whitespace and lower-cases.
func Normalize(text string) string {
	normed := norm.NFKC.String(text)
	normed = quoteReplacer.Replace(normed)
	normed = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, normed)
	return strings.ToLower(strings.Join(strings.Fields(normed), " "))
}

// Tokenize splits normalised text into letter/digit words.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// query is the pre-processed form shared by every classification rule.
type query struct {
	// leading is lower-cased with only leading whitespace removed, so that a
	// house number followed by a space is still recognisable.
	leading string
	text    string
	tokens  []string
}

func newQuery(raw string) query {
	leading := strings.ToLower(strings.TrimLeftFunc(norm.NFKC.String(raw), unicode.IsSpace))
	text := Normalize(raw)
	return query{
		leading: leading,
		text:    text,
		tokens:  Tokenize(text),
	}
}
