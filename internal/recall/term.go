package recall

import "strings"

// Kind classifies how a term matches stored values.
type Kind int

const (
	// Literal terms match the whole word as typed.
	Literal Kind = iota
	// Wildcard terms (trailing '?') match any word starting with the stem.
	Wildcard
	// PluralOrPossessive terms (trailing S, 'S or S') match the stem followed
	// by S or 'S.
	PluralOrPossessive
)

func (k Kind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Wildcard:
		return "wildcard"
	case PluralOrPossessive:
		return "plural-or-possessive"
	default:
		return "unknown"
	}
}

// Term is one classified word of a recall query.
type Term struct {
	Text string
	Stem string
	Kind Kind
}

func (t Term) IsWildcard() bool { return t.Kind == Wildcard }

func (t Term) IsPluralOrPossessive() bool { return t.Kind == PluralOrPossessive }

// Classify applies the recall morphology rules to a single upper-cased word.
// Rules are checked in priority order: wildcard, then plural/possessive,
// then literal. Every input classifies; there is no error case.
func Classify(word string) Term {
	switch {
	case strings.HasSuffix(word, "?"):
		return Term{Text: word, Stem: strings.TrimRight(word, "?"), Kind: Wildcard}
	case strings.HasSuffix(word, "'S"), strings.HasSuffix(word, "S'"):
		return Term{Text: word, Stem: word[:len(word)-2], Kind: PluralOrPossessive}
	case strings.HasSuffix(word, "S"):
		return Term{Text: word, Stem: word[:len(word)-1], Kind: PluralOrPossessive}
	default:
		return Term{Text: word, Stem: word, Kind: Literal}
	}
}
