package predicate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/eigenbahn/dynix/internal/recall"
)

// Variant carries the per-engine details of the relational dialect.
type Variant struct {
	Name          string
	LeftBoundary  string
	RightBoundary string
	WordChar      string
	CaseSensitive bool
	MatchOp       string
	Placeholder   func(n int) string
}

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

var (
	// SQLite relies on a REGEXP function registered by the driver wrapper,
	// which matches case-insensitively.
	SQLite = Variant{
		Name:          "sqlite",
		LeftBoundary:  `\b`,
		RightBoundary: `\b`,
		WordChar:      `\w`,
		MatchOp:       "REGEXP",
		Placeholder:   questionMark,
	}
	MySQL = Variant{
		Name:          "mysql",
		LeftBoundary:  "[[:<:]]",
		RightBoundary: "[[:>:]]",
		WordChar:      `\w`,
		MatchOp:       "REGEXP",
		Placeholder:   questionMark,
	}
	// Postgres ARE uses \m and \M for word starts and ends; \b is backspace.
	Postgres = Variant{
		Name:          "postgres",
		LeftBoundary:  `\m`,
		RightBoundary: `\M`,
		WordChar:      `\w`,
		CaseSensitive: true,
		MatchOp:       "~",
		Placeholder:   dollar,
	}
	Generic = Variant{
		Name:          "generic",
		LeftBoundary:  `\b`,
		RightBoundary: `\b`,
		WordChar:      "[A-Z]",
		CaseSensitive: true,
		MatchOp:       "REGEXP",
		Placeholder:   questionMark,
	}
)

// VariantByName returns the named variant, falling back to Generic.
func VariantByName(name string) Variant {
	switch name {
	case SQLite.Name, "sqlite3":
		return SQLite
	case MySQL.Name:
		return MySQL
	case Postgres.Name, "postgresql":
		return Postgres
	default:
		return Generic
	}
}

// RelationalCompiler renders the regex-predicate dialect.
type RelationalCompiler struct {
	variant Variant
}

func NewRelational(v Variant) *RelationalCompiler {
	if v.Placeholder == nil {
		v.Placeholder = questionMark
	}
	return &RelationalCompiler{variant: v}
}

func (c *RelationalCompiler) Dialect() Dialect { return Relational }

func (c *RelationalCompiler) Variant() Variant { return c.variant }

// Pattern renders the regex one term must match somewhere in a field value.
func (c *RelationalCompiler) Pattern(t recall.Term) string {
	v := c.variant
	switch t.Kind {
	case recall.Wildcard:
		return ".*" + v.LeftBoundary + regexp.QuoteMeta(t.Stem) + v.WordChar + "*" + v.RightBoundary + ".*"
	case recall.PluralOrPossessive:
		return ".*" + v.LeftBoundary + regexp.QuoteMeta(t.Stem) + "('S|S)" + v.RightBoundary + "S?.*"
	default:
		return ".*" + v.LeftBoundary + regexp.QuoteMeta(t.Text) + v.RightBoundary + ".*"
	}
}

// Compile ANDs every term within a field and ORs the fields.
func (c *RelationalCompiler) Compile(terms []recall.Term, fields FieldSet) Predicate {
	p := Predicate{Dialect: Relational}
	if len(terms) == 0 || len(fields) == 0 {
		return p
	}
	patterns := make([]string, len(terms))
	for i, t := range terms {
		patterns[i] = c.Pattern(t)
	}

	groups := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)*len(terms))
	for _, field := range fields {
		column := field
		if c.variant.CaseSensitive {
			column = "UPPER(" + field + ")"
		}
		clauses := make([]string, 0, len(patterns))
		for _, pat := range patterns {
			args = append(args, pat)
			clauses = append(clauses, column+" "+c.variant.MatchOp+" "+c.variant.Placeholder(len(args)))
		}
		groups = append(groups, "("+strings.Join(clauses, " AND ")+")")
	}
	p.Expr = strings.Join(groups, " OR ")
	p.Args = args
	return p
}
