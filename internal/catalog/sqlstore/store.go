// Package sqlstore serves catalog searches from a Calibre-style relational
// schema, either the SQLite metadata.db itself or a PostgreSQL mirror.
// Predicates come from the relational recall dialect and are bound as
// query arguments.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
)

// DefaultLimit bounds FetchDetailed to one result page.
const DefaultLimit = 50

type Store struct {
	name     string
	db       *sql.DB
	variant  predicate.Variant
	compiler *predicate.RelationalCompiler
	fields   catalog.FieldMap
	selects  string
	limit    int
	logger   *slog.Logger
}

var _ catalog.Backend = (*Store)(nil)

type options struct {
	limit  int
	fields map[catalog.SearchType][]string
}

// Option customises a Store.
type Option func(*options)

// WithLimit caps the number of records FetchDetailed returns.
func WithLimit(n int) Option { return func(o *options) { o.limit = n } }

// WithSearchFields replaces the category to column mapping. Column names are
// the logical ones: id, uuid, title, authors, publishers, tags, series,
// isbn, identifiers.
func WithSearchFields(m map[catalog.SearchType][]string) Option {
	return func(o *options) { o.fields = m }
}

// New wraps db. The variant must match the engine behind db.
func New(name string, db *sql.DB, variant predicate.Variant, opts ...Option) (*Store, error) {
	o := options{limit: DefaultLimit, fields: DefaultSearchFields}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limit <= 0 {
		o.limit = DefaultLimit
	}
	fields, err := fieldMap(variant, o.fields)
	if err != nil {
		return nil, fmt.Errorf("sqlstore %s: %w", name, err)
	}
	cols := columns(variant)
	selects := strings.Join([]string{
		"books.id",
		"COALESCE(books.title, '')",
		"COALESCE(books.sort, '')",
		"COALESCE(CAST(books.pubdate AS TEXT), '')",
		"COALESCE(" + cols[colAuthors] + ", '')",
		"COALESCE(" + cols[colPublishers] + ", '')",
		"COALESCE(" + cols[colTags] + ", '')",
		"COALESCE(" + cols[colSeries] + ", '')",
		"COALESCE(" + cols[colIdentifiers] + ", '')",
	}, ", ")
	return &Store{
		name:     name,
		db:       db,
		variant:  variant,
		compiler: predicate.NewRelational(variant),
		fields:   fields,
		selects:  selects,
		limit:    o.limit,
		logger:   slog.Default().With("component", "sqlstore", "backend", name, "variant", variant.Name),
	}, nil
}

func (s *Store) Name() string { return s.name }

func (s *Store) Dialect() predicate.Dialect { return predicate.Relational }

func (s *Store) Compiler() predicate.Compiler { return s.compiler }

func (s *Store) FieldsForSearchType(t catalog.SearchType) (predicate.FieldSet, error) {
	return s.fields.Lookup(t)
}

func (s *Store) Count(ctx context.Context, p predicate.Predicate) (int, error) {
	if err := s.check(p); err != nil {
		return 0, err
	}
	q := "SELECT COUNT(*) FROM books WHERE " + p.Expr
	var n int
	if err := s.db.QueryRowContext(ctx, q, p.Args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting on %s: %w", s.name, err)
	}
	s.logger.Debug("count", "args", len(p.Args), "count", n)
	return n, nil
}

// FetchDetailed returns up to the page limit of matching books ordered by
// sort title.
func (s *Store) FetchDetailed(ctx context.Context, p predicate.Predicate) ([]catalog.Item, error) {
	if err := s.check(p); err != nil {
		return nil, err
	}
	args := append(append(make([]any, 0, len(p.Args)+1), p.Args...), s.limit)
	q := "SELECT " + s.selects + " FROM books WHERE " + p.Expr +
		" ORDER BY books.sort, books.id LIMIT " + s.variant.Placeholder(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching from %s: %w", s.name, err)
	}
	defer rows.Close()

	items := make([]catalog.Item, 0)
	for rows.Next() {
		var (
			id                                      int64
			title, sortTitle, pubdate               string
			authors, publishers, tags, series, idts string
		)
		if err := rows.Scan(&id, &title, &sortTitle, &pubdate, &authors, &publishers, &tags, &series, &idts); err != nil {
			return nil, fmt.Errorf("scanning book row: %w", err)
		}
		items = append(items, catalog.Item{
			ID:          strconv.FormatInt(id, 10),
			Title:       title,
			SortTitle:   sortTitle,
			Authors:     splitList(authors),
			Publishers:  splitList(publishers),
			Subjects:    splitList(tags),
			Series:      splitList(series),
			PubDate:     pubYear(pubdate),
			Identifiers: splitIdentifiers(idts),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating book rows: %w", err)
	}
	s.logger.Debug("fetch", "returned", len(items))
	return items, nil
}

// Ping verifies the connection for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) check(p predicate.Predicate) error {
	if p.IsEmpty() {
		return catalog.ErrEmptyPredicate
	}
	if p.Dialect != predicate.Relational {
		return fmt.Errorf("%s cannot run %s predicates", s.name, p.Dialect)
	}
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, separator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitIdentifiers(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitList(s) {
		k, v, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		out[strings.ToUpper(k)] = v
	}
	return out
}

// pubYear keeps the year of a Calibre timestamp. Calibre stores an unknown
// date as year 101.
func pubYear(ts string) string {
	if len(ts) < 4 || strings.HasPrefix(ts, "0101") || strings.HasPrefix(ts, "0100") {
		return catalog.UnknownPubDate
	}
	return ts[:4]
}
