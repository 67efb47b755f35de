package predicate

import (
	"reflect"
	"regexp"
	"testing"

	"github.com/eigenbahn/dynix/internal/recall"
)

func terms(raw string) []recall.Term {
	return recall.Parse(raw).Terms()
}

func TestRelationalPatterns(t *testing.T) {
	c := NewRelational(SQLite)
	tests := []struct {
		word string
		want string
	}{
		{"CAT", `.*\bCAT\b.*`},
		{"COMPUT?", `.*\bCOMPUT\w*\b.*`},
		{"CATS", `.*\bCAT('S|S)\bS?.*`},
		{"CAT'S", `.*\bCAT('S|S)\bS?.*`},
		{"CATS'", `.*\bCAT('S|S)\bS?.*`},
		{"C++", `.*\bC\+\+\b.*`},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			if got := c.Pattern(recall.Classify(tt.word)); got != tt.want {
				t.Errorf("Pattern(%q) = %q, want %q", tt.word, got, tt.want)
			}
		})
	}
}

func TestRelationalVariantMarkers(t *testing.T) {
	term := recall.Classify("COMPUT?")
	tests := []struct {
		variant Variant
		want    string
	}{
		{MySQL, `.*[[:<:]]COMPUT\w*[[:>:]].*`},
		{Postgres, `.*\mCOMPUT\w*\M.*`},
		{Generic, `.*\bCOMPUT[A-Z]*\b.*`},
	}
	for _, tt := range tests {
		t.Run(tt.variant.Name, func(t *testing.T) {
			if got := NewRelational(tt.variant).Pattern(term); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelationalANDsTermsWithinField(t *testing.T) {
	p := NewRelational(SQLite).Compile(terms("A B"), FieldSet{"title"})
	if p.Dialect != Relational {
		t.Fatalf("unexpected dialect %v", p.Dialect)
	}
	if want := "(title REGEXP ? AND title REGEXP ?)"; p.Expr != want {
		t.Errorf("Expr = %q, want %q", p.Expr, want)
	}
	wantArgs := []any{`.*\bA\b.*`, `.*\bB\b.*`}
	if !reflect.DeepEqual(p.Args, wantArgs) {
		t.Errorf("Args = %q, want %q", p.Args, wantArgs)
	}
}

func TestRelationalORsFields(t *testing.T) {
	p := NewRelational(SQLite).Compile(terms("A B"), FieldSet{"f1", "f2"})
	want := "(f1 REGEXP ? AND f1 REGEXP ?) OR (f2 REGEXP ? AND f2 REGEXP ?)"
	if p.Expr != want {
		t.Errorf("Expr = %q, want %q", p.Expr, want)
	}
	if len(p.Args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(p.Args))
	}
	if p.Args[0] != p.Args[2] || p.Args[1] != p.Args[3] {
		t.Errorf("each field must repeat the per-term patterns, got %q", p.Args)
	}
}

func TestRelationalCaseSensitiveWrapsColumn(t *testing.T) {
	p := NewRelational(Postgres).Compile(terms("A B"), FieldSet{"title", "author"})
	want := "(UPPER(title) ~ $1 AND UPPER(title) ~ $2) OR (UPPER(author) ~ $3 AND UPPER(author) ~ $4)"
	if p.Expr != want {
		t.Errorf("Expr = %q, want %q", p.Expr, want)
	}
}

func TestRelationalEmpty(t *testing.T) {
	c := NewRelational(SQLite)
	if p := c.Compile(nil, FieldSet{"title"}); !p.IsEmpty() || len(p.Args) != 0 {
		t.Errorf("expected empty predicate, got %v", p)
	}
	if p := c.Compile(terms("A"), nil); !p.IsEmpty() {
		t.Errorf("expected empty predicate for empty field set, got %v", p)
	}
}

func TestRelationalMatchesPluralAndPossessive(t *testing.T) {
	c := NewRelational(SQLite)
	match := func(word, value string) bool {
		re := regexp.MustCompile("(?i)" + c.Pattern(recall.Classify(word)))
		return re.MatchString(value)
	}
	tests := []struct {
		word  string
		value string
		want  bool
	}{
		{"CAT", "CAT'S CRADLE", true},
		{"CAT", "THE CAT IN THE HAT", true},
		{"CAT", "CATS IN THE CRADLE", false},
		{"CAT", "CATALOGUE", false},
		{"CATS", "CAT'S CRADLE", true},
		{"CATS", "CATS IN THE CRADLE", true},
		{"CATS", "A CAT", false},
		{"CAT'S", "CATS IN THE CRADLE", true},
		{"COMPUT?", "Computers and you", true},
		{"COMPUT?", "COMPUTE", true},
		{"COMPUT?", "MICROCOMPUTERS", false},
	}
	for _, tt := range tests {
		if got := match(tt.word, tt.value); got != tt.want {
			t.Errorf("%q against %q: got %v, want %v", tt.word, tt.value, got, tt.want)
		}
	}
}

func TestBooleanTermPatterns(t *testing.T) {
	c := NewBoolean()
	tests := []struct {
		word string
		want string
	}{
		{"COMPUT?", "COMPUT*"},
		{"CATS", "CAT"},
		{"CAT'S", "CAT"},
		{"CAT", "CAT"},
		{"AND", `"AND"`},
		{"C++", `C\+\+`},
		{"S", "S"},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			if got := c.TermPattern(recall.Classify(tt.word)); got != tt.want {
				t.Errorf("TermPattern(%q) = %q, want %q", tt.word, got, tt.want)
			}
		})
	}
}

func TestBooleanORsTermsAndFields(t *testing.T) {
	p := NewBoolean().Compile(terms("A B"), FieldSet{"title", "creator"})
	if p.Dialect != BooleanIndex {
		t.Fatalf("unexpected dialect %v", p.Dialect)
	}
	want := "title:(A OR B) OR creator:(A OR B)"
	if p.Expr != want {
		t.Errorf("Expr = %q, want %q", p.Expr, want)
	}
	if len(p.Args) != 0 {
		t.Errorf("boolean predicates carry no args, got %v", p.Args)
	}
}

func TestBooleanEmpty(t *testing.T) {
	if p := NewBoolean().Compile(nil, FieldSet{"title"}); !p.IsEmpty() {
		t.Errorf("expected empty predicate, got %q", p.Expr)
	}
}

func TestDialectsDivergeOnTermCombination(t *testing.T) {
	q := terms("GONE WIND")
	rel := NewRelational(SQLite).Compile(q, FieldSet{"title"})
	idx := NewBoolean().Compile(q, FieldSet{"title"})
	if rel.Expr != "(title REGEXP ? AND title REGEXP ?)" {
		t.Errorf("relational dialect must AND terms, got %q", rel.Expr)
	}
	if idx.Expr != "title:(GONE OR WIND)" {
		t.Errorf("boolean dialect must OR terms, got %q", idx.Expr)
	}
}

func TestPredicateKeyIsStable(t *testing.T) {
	c := NewRelational(SQLite)
	a := c.Compile(terms("cats cradle"), FieldSet{"title"})
	b := c.Compile(terms("CATS, CRADLE"), FieldSet{"title"})
	if a.Key() != b.Key() {
		t.Errorf("equivalent queries produced different keys:\n%s\n%s", a.Key(), b.Key())
	}
	other := c.Compile(terms("cat cradle"), FieldSet{"title"})
	if a.Key() == other.Key() {
		t.Error("different queries produced the same key")
	}
}

func TestVariantByName(t *testing.T) {
	if VariantByName("sqlite3").Name != "sqlite" {
		t.Error("sqlite3 alias not recognised")
	}
	if VariantByName("postgresql").Name != "postgres" {
		t.Error("postgresql alias not recognised")
	}
	if VariantByName("oracle").Name != "generic" {
		t.Error("unknown engines should fall back to generic")
	}
}
