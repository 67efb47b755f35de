package archive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
	"github.com/eigenbahn/dynix/internal/recall"
	"github.com/eigenbahn/dynix/pkg/config"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
)

type recorder struct {
	mu      sync.Mutex
	queries []map[string][]string
}

func (r *recorder) last() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries[len(r.queries)-1]
}

func newServer(t *testing.T, status int, body string) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.queries = append(rec.queries, r.URL.Query())
		rec.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New("archive", config.ArchiveConfig{BaseURL: srv.URL, Rows: 10}), rec
}

func compileTitle(t *testing.T, c *Client, query string) predicate.Predicate {
	t.Helper()
	fields, err := c.FieldsForSearchType(catalog.SearchTitle)
	if err != nil {
		t.Fatal(err)
	}
	return c.Compiler().Compile(recall.Parse(query).Terms(), fields)
}

func TestCount(t *testing.T) {
	c, rec := newServer(t, http.StatusOK, `{"responseHeader":{"status":0},"response":{"numFound":1234,"start":0,"docs":[{"identifier":"x"}]}}`)
	n, err := c.Count(context.Background(), compileTitle(t, c, "huckleberry fin?"))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1234 {
		t.Errorf("expected 1234, got %d", n)
	}
	q := rec.last()
	if got := q["q"]; len(got) != 1 || got[0] != "title:(HUCKLEBERRY OR FIN*)" {
		t.Errorf("unexpected q %v", got)
	}
	if got := q["rows"]; len(got) != 1 || got[0] != "1" {
		t.Errorf("expected rows=1, got %v", got)
	}
	if got := q["fl[]"]; !reflect.DeepEqual(got, []string{"identifier"}) {
		t.Errorf("unexpected fl[] %v", got)
	}
	if got := q["output"]; len(got) != 1 || got[0] != "json" {
		t.Errorf("expected output=json, got %v", got)
	}
}

func TestFetchDetailedNormalizesDocs(t *testing.T) {
	body := `{"response":{"numFound":2,"start":0,"docs":[
		{"identifier":"huckfinn00twai","title":"Adventures of Huckleberry Finn","creator":"Twain, Mark",
		 "publisher":["Chatto & Windus","Webster"],"publicdate":"1884-12-10T00:00:00Z",
		 "subject":["Fiction","Mississippi River"],"collection":"americana","isbn":["9780486280615"]},
		{"identifier":"anon01"}
	]}}`
	c, rec := newServer(t, http.StatusOK, body)
	items, err := c.FetchDetailed(context.Background(), compileTitle(t, c, "huckleberry"))
	if err != nil {
		t.Fatalf("FetchDetailed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if got := rec.last()["rows"]; got[0] != "10" {
		t.Errorf("expected configured rows, got %v", got)
	}

	huck := items[0]
	if huck.ID != "huckfinn00twai" || huck.Title != "Adventures of Huckleberry Finn" {
		t.Errorf("unexpected item %+v", huck)
	}
	if !reflect.DeepEqual(huck.Authors, []string{"Twain, Mark"}) {
		t.Errorf("single creator not wrapped: %v", huck.Authors)
	}
	if !reflect.DeepEqual(huck.Publishers, []string{"Chatto & Windus", "Webster"}) {
		t.Errorf("unexpected publishers %v", huck.Publishers)
	}
	if !reflect.DeepEqual(huck.Series, []string{"americana"}) {
		t.Errorf("unexpected series %v", huck.Series)
	}
	if huck.PubDate != "1884" || huck.Identifiers["ISBN"] != "9780486280615" {
		t.Errorf("unexpected date or isbn: %q %v", huck.PubDate, huck.Identifiers)
	}

	anon := items[1]
	if anon.Title != catalog.Unknown || anon.PubDate != catalog.UnknownPubDate {
		t.Errorf("expected placeholders, got %+v", anon)
	}
	if !reflect.DeepEqual(anon.Authors, []string{catalog.Unknown}) || !reflect.DeepEqual(anon.Publishers, []string{catalog.Unknown}) {
		t.Errorf("expected unknown authors and publishers, got %+v", anon)
	}
	if anon.Subjects == nil || len(anon.Subjects) != 0 {
		t.Errorf("expected empty subjects, got %#v", anon.Subjects)
	}
}

func TestUnavailable(t *testing.T) {
	c, _ := newServer(t, http.StatusServiceUnavailable, `busy`)
	_, err := c.Count(context.Background(), compileTitle(t, c, "finn"))
	if !errors.Is(err, apperrors.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestMalformedResponse(t *testing.T) {
	c, _ := newServer(t, http.StatusOK, `<html>`)
	if _, err := c.FetchDetailed(context.Background(), compileTitle(t, c, "finn")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRejectsForeignPredicate(t *testing.T) {
	c, rec := newServer(t, http.StatusOK, `{}`)
	rel := predicate.NewRelational(predicate.SQLite).Compile(recall.Parse("finn").Terms(), predicate.FieldSet{"title"})
	if _, err := c.Count(context.Background(), rel); err == nil {
		t.Fatal("expected dialect error")
	}
	if _, err := c.Count(context.Background(), predicate.Predicate{Dialect: predicate.BooleanIndex}); !errors.Is(err, catalog.ErrEmptyPredicate) {
		t.Fatalf("expected ErrEmptyPredicate, got %v", err)
	}
	if len(rec.queries) != 0 {
		t.Errorf("expected no requests, got %d", len(rec.queries))
	}
}

func TestWordSearchSpansFields(t *testing.T) {
	c := New("archive", config.ArchiveConfig{})
	fields, err := c.FieldsForSearchType(catalog.SearchWord)
	if err != nil {
		t.Fatal(err)
	}
	want := predicate.FieldSet{"creator", "publisher", "title", "subject", "collection"}
	if !reflect.DeepEqual(fields, want) {
		t.Errorf("expected %v, got %v", want, fields)
	}
	if _, err := c.FieldsForSearchType("call_number"); !errors.Is(err, catalog.ErrUnknownSearchType) {
		t.Errorf("expected ErrUnknownSearchType, got %v", err)
	}
}

func TestStringListRejectsObjects(t *testing.T) {
	var l stringList
	if err := l.UnmarshalJSON([]byte(`{"a":1}`)); err == nil {
		t.Fatal("expected error for object")
	}
}
