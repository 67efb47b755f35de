// Package session holds the state of one patron search: the recall query,
// the per-term running counts, the fetched records and the item cursor.
// A Session is owned by a single interaction loop and is not safe for
// concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
	"github.com/eigenbahn/dynix/internal/recall"
	"github.com/eigenbahn/dynix/pkg/tracing"
)

var (
	ErrEmptyQuery = errors.New("search query has no terms")
	ErrOutOfRange = errors.New("item number out of range")
	ErrNotFetched = errors.New("results not fetched")
)

// Stage is the phase a search is in.
type Stage int

const (
	StageCounting Stage = iota
	StageListing
	StageViewing
)

func (s Stage) String() string {
	switch s {
	case StageCounting:
		return "counting"
	case StageListing:
		return "listing"
	case StageViewing:
		return "viewing"
	default:
		return "unknown"
	}
}

// TermCount is the number of records matching the query up to and
// including Term.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

type Session struct {
	id         string
	searchType catalog.SearchType
	backend    catalog.Backend
	query      recall.Query
	fields     predicate.FieldSet

	counts  []TermCount
	total   int
	counted bool

	results []catalog.Item
	byID    map[string]int
	fetched bool

	cursor int
	stage  Stage
	logger *slog.Logger
}

// Begin parses raw into a recall query and resolves the field set for
// searchType. The backend is shared, not owned.
func Begin(raw string, backend catalog.Backend, searchType catalog.SearchType) (*Session, error) {
	q := recall.Parse(raw)
	if q.Empty() {
		return nil, fmt.Errorf("%w: %q", ErrEmptyQuery, raw)
	}
	fields, err := backend.FieldsForSearchType(searchType)
	if err != nil {
		return nil, fmt.Errorf("resolving fields on %s: %w", backend.Name(), err)
	}
	id := uuid.NewString()
	return &Session{
		id:         id,
		searchType: searchType,
		backend:    backend,
		query:      q,
		fields:     fields,
		stage:      StageCounting,
		logger: slog.Default().With(
			"component", "search-session",
			"search_id", id,
			"backend", backend.Name(),
			"search_type", string(searchType),
		),
	}, nil
}

// CountIncremental compiles the query prefix ending at each term and records
// how many records match it. Each call recomputes every prefix.
func (s *Session) CountIncremental(ctx context.Context) error {
	ctx, span := tracing.StartChildSpan(ctx, "count_incremental")
	defer span.End()

	compiler := s.backend.Compiler()
	counts := make([]TermCount, 0, s.query.Len())
	for i, term := range s.query.Terms() {
		p := compiler.Compile(s.query.Prefix(i+1), s.fields)
		n, err := s.backend.Count(ctx, p)
		if err != nil {
			span.SetAttr("error", err.Error())
			return fmt.Errorf("counting %q: %w", term.Text, err)
		}
		counts = append(counts, TermCount{Term: term.Text, Count: n})
	}
	s.counts = counts
	s.total = counts[len(counts)-1].Count
	s.counted = true
	span.SetAttr("total", s.total)
	s.logger.Debug("incremental count done", "counts", counts, "total", s.total)
	return nil
}

// FetchAll runs the full query and keeps the detailed records in backend
// order. The session moves to the listing stage.
func (s *Session) FetchAll(ctx context.Context) error {
	ctx, span := tracing.StartChildSpan(ctx, "fetch_all")
	defer span.End()

	p := s.backend.Compiler().Compile(s.query.Terms(), s.fields)
	items, err := s.backend.FetchDetailed(ctx, p)
	if err != nil {
		span.SetAttr("error", err.Error())
		return fmt.Errorf("fetching results: %w", err)
	}
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}
	s.results = items
	s.byID = byID
	s.fetched = true
	if !s.counted {
		s.total = len(items)
		s.counted = true
	}
	s.cursor = 0
	s.stage = StageListing
	span.SetAttr("fetched", len(items))
	s.logger.Debug("results fetched", "fetched", len(items), "total", s.total)
	return nil
}

// SelectItem points the cursor at the 1-based index and enters the viewing
// stage. On failure the session is left untouched.
func (s *Session) SelectItem(index int) error {
	if !s.fetched {
		return ErrNotFetched
	}
	if index < 1 || index > s.bound() {
		return fmt.Errorf("%w: %d not in 1..%d", ErrOutOfRange, index, s.bound())
	}
	s.cursor = index
	s.stage = StageViewing
	return nil
}

// StepItem moves the cursor by delta. Moves past either end are refused
// and reported as false; there is no wraparound.
func (s *Session) StepItem(delta int) bool {
	if s.stage != StageViewing {
		return false
	}
	next := s.cursor + delta
	if next < 1 || next > s.bound() {
		return false
	}
	s.cursor = next
	return true
}

// BackToListing leaves the viewing stage, keeping the fetched records.
func (s *Session) BackToListing() {
	if s.fetched {
		s.stage = StageListing
		s.cursor = 0
	}
}

// bound is the highest navigable index: the total, capped by what a single
// result page actually returned.
func (s *Session) bound() int {
	if s.fetched && len(s.results) < s.total {
		return len(s.results)
	}
	return s.total
}

func (s *Session) ID() string { return s.id }

func (s *Session) SearchType() catalog.SearchType { return s.searchType }

func (s *Session) BackendName() string { return s.backend.Name() }

func (s *Session) Query() recall.Query { return s.query }

func (s *Session) Stage() Stage { return s.stage }

func (s *Session) Counted() bool { return s.counted }

func (s *Session) Fetched() bool { return s.fetched }

// Total is the final running count. It is zero until counting completes.
func (s *Session) Total() int { return s.total }

// Counts returns a copy of the per-term running counts in query order.
func (s *Session) Counts() []TermCount {
	out := make([]TermCount, len(s.counts))
	copy(out, s.counts)
	return out
}

// Results returns the fetched records in backend order.
func (s *Session) Results() []catalog.Item {
	out := make([]catalog.Item, len(s.results))
	copy(out, s.results)
	return out
}

// Item returns the record at a 1-based position.
func (s *Session) Item(index int) (catalog.Item, bool) {
	if index < 1 || index > len(s.results) {
		return catalog.Item{}, false
	}
	return s.results[index-1], true
}

// ItemByID returns the fetched record with the given backend id.
func (s *Session) ItemByID(id string) (catalog.Item, bool) {
	i, ok := s.byID[id]
	if !ok {
		return catalog.Item{}, false
	}
	return s.results[i], true
}

// Cursor is the 1-based index of the viewed item, or 0 outside viewing.
func (s *Session) Cursor() int {
	if s.stage != StageViewing {
		return 0
	}
	return s.cursor
}

// Current returns the viewed item.
func (s *Session) Current() (catalog.Item, bool) {
	if s.stage != StageViewing {
		return catalog.Item{}, false
	}
	return s.Item(s.cursor)
}
