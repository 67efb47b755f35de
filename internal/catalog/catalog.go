// Package catalog defines the capability contract every search backend
// implements, the record snapshot they return and the search categories a
// patron can pick from the welcome menu.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/eigenbahn/dynix/internal/predicate"
)

var (
	ErrUnknownSearchType = errors.New("unknown search type")
	ErrEmptyPredicate    = errors.New("empty predicate")
)

// SearchType names a search category.
type SearchType string

const (
	SearchAuthor      SearchType = "author"
	SearchPublisher   SearchType = "publisher"
	SearchTitle       SearchType = "title"
	SearchSubject     SearchType = "subject"
	SearchWord        SearchType = "word"
	SearchSeries      SearchType = "series"
	SearchUniversalID SearchType = "universal_id"
	SearchItem        SearchType = "item"
	SearchBib         SearchType = "bib"
)

// Placeholders shown when a backend has no value for a field.
const (
	Unknown        = "unknown"
	UnknownPubDate = "????"
)

// Item is an immutable snapshot of one catalog record.
type Item struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	SortTitle   string            `json:"sort_title"`
	Authors     []string          `json:"authors"`
	Publishers  []string          `json:"publishers"`
	Subjects    []string          `json:"subjects"`
	Series      []string          `json:"series"`
	PubDate     string            `json:"pub_date"`
	Identifiers map[string]string `json:"identifiers,omitempty"`
}

// Backend is the capability a search session needs from a catalog store.
// Count and FetchDetailed block until the backend answers.
type Backend interface {
	Name() string
	Dialect() predicate.Dialect
	Compiler() predicate.Compiler
	FieldsForSearchType(t SearchType) (predicate.FieldSet, error)
	Count(ctx context.Context, p predicate.Predicate) (int, error)
	FetchDetailed(ctx context.Context, p predicate.Predicate) ([]Item, error)
}

// FieldMap resolves search categories to backend field sets.
type FieldMap map[SearchType]predicate.FieldSet

// Lookup returns a copy of the field set for t.
func (m FieldMap) Lookup(t SearchType) (predicate.FieldSet, error) {
	fields, ok := m[t]
	if !ok || len(fields) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSearchType, t)
	}
	out := make(predicate.FieldSet, len(fields))
	copy(out, fields)
	return out, nil
}
