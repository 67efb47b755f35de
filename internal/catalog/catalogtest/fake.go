// Package catalogtest provides an in-memory catalog.Backend for tests.
package catalogtest

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
)

// Record is one stored row: field name to value.
type Record struct {
	ID     string
	Fields map[string]string
}

// Backend evaluates relational SQLite-variant predicates against records in
// memory by running each bound pattern through Go's regexp package.
// When Counts is set, Count answers from it instead, indexed by the number
// of terms in the predicate, which lets tests script large result totals.
type Backend struct {
	Records  []Record
	Fields   catalog.FieldMap
	Counts   []int
	CountErr error
	FetchErr error

	mu          sync.Mutex
	countCalls  []predicate.Predicate
	fetchCalls  []predicate.Predicate
	compiler    *predicate.RelationalCompiler
	compileOnce sync.Once
}

var _ catalog.Backend = (*Backend)(nil)

func (b *Backend) Name() string { return "fake" }

func (b *Backend) Dialect() predicate.Dialect { return predicate.Relational }

func (b *Backend) Compiler() predicate.Compiler {
	b.compileOnce.Do(func() { b.compiler = predicate.NewRelational(predicate.SQLite) })
	return b.compiler
}

func (b *Backend) FieldsForSearchType(t catalog.SearchType) (predicate.FieldSet, error) {
	if b.Fields == nil {
		return catalog.FieldMap{catalog.SearchTitle: {"title"}}.Lookup(t)
	}
	return b.Fields.Lookup(t)
}

func (b *Backend) Count(ctx context.Context, p predicate.Predicate) (int, error) {
	b.mu.Lock()
	b.countCalls = append(b.countCalls, p)
	b.mu.Unlock()
	if b.CountErr != nil {
		return 0, b.CountErr
	}
	if b.Counts != nil {
		n := termCount(p)
		if n < 1 || n > len(b.Counts) {
			return 0, fmt.Errorf("no scripted count for %d terms", n)
		}
		return b.Counts[n-1], nil
	}
	items, err := b.match(p)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func (b *Backend) FetchDetailed(ctx context.Context, p predicate.Predicate) ([]catalog.Item, error) {
	b.mu.Lock()
	b.fetchCalls = append(b.fetchCalls, p)
	b.mu.Unlock()
	if b.FetchErr != nil {
		return nil, b.FetchErr
	}
	return b.match(p)
}

// CountCalls returns the predicates passed to Count, in call order.
func (b *Backend) CountCalls() []predicate.Predicate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]predicate.Predicate(nil), b.countCalls...)
}

// FetchCalls returns the predicates passed to FetchDetailed, in call order.
func (b *Backend) FetchCalls() []predicate.Predicate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]predicate.Predicate(nil), b.fetchCalls...)
}

// Items builds n numbered records titled "TITLE <i>".
func Items(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = Record{
			ID:     fmt.Sprintf("%d", i+1),
			Fields: map[string]string{"title": fmt.Sprintf("TITLE %d", i+1)},
		}
	}
	return out
}

// termCount recovers the number of terms from a compiled relational
// predicate: the first OR group holds one clause per term.
func termCount(p predicate.Predicate) int {
	if p.IsEmpty() {
		return 0
	}
	group := strings.SplitN(p.Expr, " OR ", 2)[0]
	return strings.Count(group, " AND ") + 1
}

var clause = regexp.MustCompile(`(\w+) REGEXP \?`)

func (b *Backend) match(p predicate.Predicate) ([]catalog.Item, error) {
	if p.IsEmpty() {
		return nil, catalog.ErrEmptyPredicate
	}
	groups := strings.Split(p.Expr, " OR ")
	var items []catalog.Item
	for _, rec := range b.Records {
		argIdx := 0
		matched := false
		for _, g := range groups {
			all := true
			for _, m := range clause.FindAllStringSubmatch(g, -1) {
				pattern, _ := p.Args[argIdx].(string)
				argIdx++
				re, err := regexp.Compile("(?i)" + pattern)
				if err != nil {
					return nil, fmt.Errorf("compiling %q: %w", pattern, err)
				}
				if !re.MatchString(rec.Fields[m[1]]) {
					all = false
				}
			}
			if all {
				matched = true
			}
		}
		if matched {
			items = append(items, catalog.Item{ID: rec.ID, Title: rec.Fields["title"]})
		}
	}
	return items, nil
}
