package recall

// Query is the immutable recall form of one patron search.
type Query struct {
	Raw   string
	terms []Term
}

// Parse tokenizes raw and classifies every word.
func Parse(raw string) Query {
	words := Tokenize(raw)
	terms := make([]Term, 0, len(words))
	for _, w := range words {
		terms = append(terms, Classify(w))
	}
	return Query{Raw: raw, terms: terms}
}

// Terms returns a copy of the classified terms in input order.
func (q Query) Terms() []Term {
	out := make([]Term, len(q.terms))
	copy(out, q.terms)
	return out
}

// Prefix returns a copy of the first n terms. n is clamped to [0, Len].
func (q Query) Prefix(n int) []Term {
	if n < 0 {
		n = 0
	}
	if n > len(q.terms) {
		n = len(q.terms)
	}
	out := make([]Term, n)
	copy(out, q.terms[:n])
	return out
}

func (q Query) Len() int { return len(q.terms) }

func (q Query) Empty() bool { return len(q.terms) == 0 }

// Words returns the upper-cased words as typed.
func (q Query) Words() []string {
	out := make([]string, len(q.terms))
	for i, t := range q.terms {
		out[i] = t.Text
	}
	return out
}
