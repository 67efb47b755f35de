package predicate

import (
	"strings"

	"github.com/eigenbahn/dynix/internal/recall"
)

var luceneSpecial = strings.NewReplacer(
	`\`, `\\`, `+`, `\+`, `-`, `\-`, `&`, `\&`, `|`, `\|`, `!`, `\!`,
	`(`, `\(`, `)`, `\)`, `{`, `\{`, `}`, `\}`, `[`, `\[`, `]`, `\]`,
	`^`, `\^`, `"`, `\"`, `~`, `\~`, `*`, `\*`, `?`, `\?`, `:`, `\:`, `/`, `\/`,
)

// Words the index parser treats as operators when bare.
var luceneReserved = map[string]struct{}{
	"AND": {}, "OR": {}, "NOT": {}, "TO": {},
}

// BooleanCompiler renders the Lucene-style boolean-index dialect.
type BooleanCompiler struct{}

func NewBoolean() *BooleanCompiler { return &BooleanCompiler{} }

func (c *BooleanCompiler) Dialect() Dialect { return BooleanIndex }

// TermPattern renders one term. The index stems on its own, so plural and
// possessive forms reduce to the bare stem.
func (c *BooleanCompiler) TermPattern(t recall.Term) string {
	switch t.Kind {
	case recall.Wildcard:
		return escapeLucene(t.Stem) + "*"
	case recall.PluralOrPossessive:
		if t.Stem == "" {
			return quoteReserved(escapeLucene(t.Text))
		}
		return quoteReserved(escapeLucene(t.Stem))
	default:
		return quoteReserved(escapeLucene(t.Text))
	}
}

// Compile ORs the terms within a field and ORs the fields.
func (c *BooleanCompiler) Compile(terms []recall.Term, fields FieldSet) Predicate {
	p := Predicate{Dialect: BooleanIndex}
	if len(terms) == 0 || len(fields) == 0 {
		return p
	}
	patterns := make([]string, len(terms))
	for i, t := range terms {
		patterns[i] = c.TermPattern(t)
	}
	alternatives := strings.Join(patterns, " OR ")

	groups := make([]string, len(fields))
	for i, field := range fields {
		groups[i] = field + ":(" + alternatives + ")"
	}
	p.Expr = strings.Join(groups, " OR ")
	return p
}

func escapeLucene(s string) string {
	return luceneSpecial.Replace(s)
}

func quoteReserved(s string) string {
	if _, ok := luceneReserved[s]; ok {
		return `"` + s + `"`
	}
	return s
}
