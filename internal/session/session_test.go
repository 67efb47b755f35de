package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/catalog/catalogtest"
)

func fetched(t *testing.T, n int) *Session {
	t.Helper()
	b := &catalogtest.Backend{Records: catalogtest.Items(n)}
	s, err := Begin("title", b, catalog.SearchTitle)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	ctx := context.Background()
	if err := s.CountIncremental(ctx); err != nil {
		t.Fatalf("CountIncremental: %v", err)
	}
	if err := s.FetchAll(ctx); err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if s.Total() != n {
		t.Fatalf("expected total %d, got %d", n, s.Total())
	}
	return s
}

func TestBegin(t *testing.T) {
	b := &catalogtest.Backend{}
	s, err := Begin("Gone with the wind", b, catalog.SearchTitle)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if s.Stage() != StageCounting {
		t.Errorf("expected counting stage, got %v", s.Stage())
	}
	if s.Query().Len() != 4 {
		t.Errorf("expected 4 terms, got %d", s.Query().Len())
	}
	if s.ID() == "" {
		t.Error("expected a search id")
	}
	if s.Counted() || s.Total() != 0 {
		t.Error("total must be undefined before counting")
	}
}

func TestBeginRejectsEmptyQuery(t *testing.T) {
	for _, raw := range []string{"", "   ", "-- ;"} {
		if _, err := Begin(raw, &catalogtest.Backend{}, catalog.SearchTitle); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Begin(%q): expected ErrEmptyQuery, got %v", raw, err)
		}
	}
}

func TestBeginUnknownSearchType(t *testing.T) {
	_, err := Begin("cat", &catalogtest.Backend{}, "dewey")
	if !errors.Is(err, catalog.ErrUnknownSearchType) {
		t.Fatalf("expected ErrUnknownSearchType, got %v", err)
	}
}

func TestCountIncrementalRecordsEveryPrefix(t *testing.T) {
	b := &catalogtest.Backend{Counts: []int{500, 40, 7}}
	s, err := Begin("alpha beta gamma", b, catalog.SearchTitle)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CountIncremental(context.Background()); err != nil {
		t.Fatalf("CountIncremental: %v", err)
	}
	want := []TermCount{{"ALPHA", 500}, {"BETA", 40}, {"GAMMA", 7}}
	if got := s.Counts(); !reflect.DeepEqual(got, want) {
		t.Errorf("Counts = %+v, want %+v", got, want)
	}
	if s.Total() != 7 {
		t.Errorf("Total = %d, want 7", s.Total())
	}

	calls := b.CountCalls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 backend count calls, got %d", len(calls))
	}
	for i, p := range calls {
		if len(p.Args) != i+1 {
			t.Errorf("call %d compiled %d terms, want %d", i, len(p.Args), i+1)
		}
	}

	// A second call recomputes from scratch.
	if err := s.CountIncremental(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(b.CountCalls()) != 6 {
		t.Errorf("expected 6 count calls after recount, got %d", len(b.CountCalls()))
	}
	if len(s.Counts()) != 3 {
		t.Errorf("recount must not accumulate, got %d counts", len(s.Counts()))
	}
}

func TestCountIncrementalKeepsDuplicateTerms(t *testing.T) {
	b := &catalogtest.Backend{Counts: []int{9, 9}}
	s, err := Begin("cat cat", b, catalog.SearchTitle)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CountIncremental(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Counts()); n != 2 {
		t.Errorf("expected 2 counts for duplicated term, got %d", n)
	}
}

func TestCountIncrementalBackendError(t *testing.T) {
	boom := errors.New("connection refused")
	b := &catalogtest.Backend{CountErr: boom}
	s, err := Begin("cat", b, catalog.SearchTitle)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CountIncremental(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if s.Counted() {
		t.Error("failed count must leave total undefined")
	}
}

func TestFetchAll(t *testing.T) {
	records := []catalogtest.Record{
		{ID: "7", Fields: map[string]string{"title": "CAT'S CRADLE"}},
		{ID: "3", Fields: map[string]string{"title": "CATS IN THE CRADLE"}},
		{ID: "5", Fields: map[string]string{"title": "DOG DAYS"}},
	}
	b := &catalogtest.Backend{Records: records}
	s, err := Begin("cats", b, catalog.SearchTitle)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CountIncremental(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.FetchAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Stage() != StageListing {
		t.Errorf("expected listing stage, got %v", s.Stage())
	}
	results := s.Results()
	if len(results) != 2 || results[0].ID != "7" || results[1].ID != "3" {
		t.Fatalf("unexpected results %+v", results)
	}
	if it, ok := s.ItemByID("3"); !ok || it.Title != "CATS IN THE CRADLE" {
		t.Errorf("ItemByID(3) = %+v, %v", it, ok)
	}
	if len(b.FetchCalls()) != 1 {
		t.Errorf("expected one fetch call, got %d", len(b.FetchCalls()))
	}
}

func TestSelectItemBounds(t *testing.T) {
	s := fetched(t, 5)

	for _, idx := range []int{0, 6, -1} {
		if err := s.SelectItem(idx); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("SelectItem(%d): expected ErrOutOfRange, got %v", idx, err)
		}
		if s.Stage() != StageListing || s.Cursor() != 0 {
			t.Errorf("SelectItem(%d) mutated state: stage=%v cursor=%d", idx, s.Stage(), s.Cursor())
		}
	}

	if err := s.SelectItem(5); err != nil {
		t.Fatalf("SelectItem(5): %v", err)
	}
	if s.Stage() != StageViewing || s.Cursor() != 5 {
		t.Errorf("expected viewing at 5, got %v at %d", s.Stage(), s.Cursor())
	}
	it, ok := s.Current()
	if !ok || it.ID != "5" {
		t.Errorf("Current = %+v, %v", it, ok)
	}
}

func TestSelectItemRequiresFetch(t *testing.T) {
	b := &catalogtest.Backend{Counts: []int{3}}
	s, err := Begin("cat", b, catalog.SearchTitle)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.CountIncremental(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.SelectItem(1); !errors.Is(err, ErrNotFetched) {
		t.Fatalf("expected ErrNotFetched, got %v", err)
	}
}

func TestStepItemClamps(t *testing.T) {
	s := fetched(t, 3)
	if s.StepItem(1) {
		t.Error("StepItem outside viewing must be refused")
	}
	if err := s.SelectItem(1); err != nil {
		t.Fatal(err)
	}
	if s.StepItem(-1) || s.Cursor() != 1 {
		t.Errorf("StepItem(-1) at 1 must be a no-op, cursor=%d", s.Cursor())
	}
	if !s.StepItem(1) || s.Cursor() != 2 {
		t.Errorf("StepItem(+1) expected cursor 2, got %d", s.Cursor())
	}
	if !s.StepItem(1) || s.Cursor() != 3 {
		t.Errorf("StepItem(+1) expected cursor 3, got %d", s.Cursor())
	}
	if s.StepItem(1) || s.Cursor() != 3 {
		t.Errorf("StepItem(+1) at total must be a no-op, cursor=%d", s.Cursor())
	}
	if !s.StepItem(-1) || s.Cursor() != 2 {
		t.Errorf("StepItem(-1) expected cursor 2, got %d", s.Cursor())
	}
}

func TestNavigationBoundCappedByPage(t *testing.T) {
	b := &catalogtest.Backend{Counts: []int{500}, Records: catalogtest.Items(4)}
	s, err := Begin("title", b, catalog.SearchTitle)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := s.CountIncremental(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.FetchAll(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Total() != 500 {
		t.Fatalf("total should stay at the counted value, got %d", s.Total())
	}
	if err := s.SelectItem(5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("selecting past the fetched page must fail, got %v", err)
	}
	if err := s.SelectItem(4); err != nil {
		t.Errorf("SelectItem(4): %v", err)
	}
}

func TestBackToListing(t *testing.T) {
	s := fetched(t, 2)
	if err := s.SelectItem(2); err != nil {
		t.Fatal(err)
	}
	s.BackToListing()
	if s.Stage() != StageListing || s.Cursor() != 0 {
		t.Errorf("expected listing with no cursor, got %v at %d", s.Stage(), s.Cursor())
	}
	if len(s.Results()) != 2 {
		t.Error("results must survive going back to the listing")
	}
}
