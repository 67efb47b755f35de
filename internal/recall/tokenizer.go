// Package recall turns free text typed at the catalog prompt into a recall
// query: an ordered sequence of upper-cased terms, each classified as a
// literal, a right-truncated wildcard or a plural/possessive form.
package recall

import "strings"

// ignored lists the punctuation that separates terms like a space does.
const ignored = "-.,;:!"

var punctuation = strings.NewReplacer(
	"-", " ",
	".", " ",
	",", " ",
	";", " ",
	":", " ",
	"!", " ",
)

// Tokenize upper-cases text, blanks out punctuation and splits on spaces.
// Empty fragments are dropped, so empty input yields an empty slice.
func Tokenize(text string) []string {
	text = punctuation.Replace(strings.ToUpper(text))
	parts := strings.Split(text, " ")
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		words = append(words, p)
	}
	return words
}
