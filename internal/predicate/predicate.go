// Package predicate compiles recall queries into backend-native search
// predicates. One compiler exists per dialect: the relational dialect emits
// regex column matches (terms ANDed within a field, fields ORed) and the
// boolean-index dialect emits a Lucene query (terms and fields both ORed).
package predicate

import (
	"fmt"
	"strings"

	"github.com/eigenbahn/dynix/internal/recall"
)

// Dialect identifies a backend's native query model.
type Dialect int

const (
	Relational Dialect = iota
	BooleanIndex
)

func (d Dialect) String() string {
	switch d {
	case Relational:
		return "predicate-relational"
	case BooleanIndex:
		return "boolean-index"
	default:
		return "unknown"
	}
}

// FieldSet lists the backend field identifiers a search type targets. For
// relational backends the identifiers are SQL expressions; for the index
// backend they are index field names.
type FieldSet []string

// Predicate is an opaque, backend-native search expression. Relational
// predicates carry their regex patterns as bind arguments.
type Predicate struct {
	Dialect Dialect
	Expr    string
	Args    []any
}

// IsEmpty reports whether the predicate was compiled from no terms.
func (p Predicate) IsEmpty() bool { return p.Expr == "" }

// Key returns a stable textual identity for the predicate, suitable for
// cache keys and logging.
func (p Predicate) Key() string {
	var b strings.Builder
	b.WriteString(p.Dialect.String())
	b.WriteByte('|')
	b.WriteString(p.Expr)
	for _, a := range p.Args {
		b.WriteByte('|')
		fmt.Fprint(&b, a)
	}
	return b.String()
}

func (p Predicate) String() string {
	if len(p.Args) == 0 {
		return p.Expr
	}
	return fmt.Sprintf("%s %q", p.Expr, p.Args)
}

// Compiler turns classified terms and a field set into a Predicate. An empty
// term sequence or field set compiles to an empty predicate.
type Compiler interface {
	Dialect() Dialect
	Compile(terms []recall.Term, fields FieldSet) Predicate
}
