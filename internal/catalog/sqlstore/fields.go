package sqlstore

import (
	"fmt"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
)

// Logical columns of a book row. Multi-valued ones are aggregated into one
// string per book with separator so a single regex test covers every value.
const (
	colID          = "id"
	colUUID        = "uuid"
	colTitle       = "title"
	colAuthors     = "authors"
	colPublishers  = "publishers"
	colTags        = "tags"
	colSeries      = "series"
	colISBN        = "isbn"
	colIdentifiers = "identifiers"
)

const separator = " ; "

// columns renders each logical column as a SQL expression over the books
// table for the given engine.
func columns(v predicate.Variant) map[string]string {
	agg := func(expr string) string {
		switch v.Name {
		case predicate.Postgres.Name:
			return fmt.Sprintf("string_agg(%s, '%s')", expr, separator)
		case predicate.MySQL.Name:
			return fmt.Sprintf("GROUP_CONCAT(%s SEPARATOR '%s')", expr, separator)
		default:
			return fmt.Sprintf("group_concat(%s, '%s')", expr, separator)
		}
	}
	linked := func(table, link, key string) string {
		return fmt.Sprintf("(SELECT %s FROM %s x JOIN %s l ON l.%s = x.id WHERE l.book = books.id)",
			agg("x.name"), table, link, key)
	}
	return map[string]string{
		colID:          "CAST(books.id AS TEXT)",
		colUUID:        "books.uuid",
		colTitle:       "books.title",
		colAuthors:     linked("authors", "books_authors_link", "author"),
		colPublishers:  linked("publishers", "books_publishers_link", "publisher"),
		colTags:        linked("tags", "books_tags_link", "tag"),
		colSeries:      linked("series", "books_series_link", "series"),
		colISBN:        fmt.Sprintf("(SELECT %s FROM identifiers i WHERE i.book = books.id AND i.type = 'isbn')", agg("i.val")),
		colIdentifiers: fmt.Sprintf("(SELECT %s FROM identifiers i WHERE i.book = books.id)", agg("i.type || ':' || i.val")),
	}
}

// DefaultSearchFields maps the welcome menu categories to logical columns.
var DefaultSearchFields = map[catalog.SearchType][]string{
	catalog.SearchAuthor:      {colAuthors},
	catalog.SearchPublisher:   {colPublishers},
	catalog.SearchTitle:       {colTitle},
	catalog.SearchSubject:     {colTags},
	catalog.SearchWord:        {colTitle, colAuthors, colPublishers, colTags, colSeries},
	catalog.SearchSeries:      {colSeries},
	catalog.SearchUniversalID: {colISBN},
	catalog.SearchItem:        {colID},
	catalog.SearchBib:         {colUUID},
}

// fieldMap resolves logical columns to SQL expressions.
func fieldMap(v predicate.Variant, logical map[catalog.SearchType][]string) (catalog.FieldMap, error) {
	exprs := columns(v)
	out := make(catalog.FieldMap, len(logical))
	for t, cols := range logical {
		set := make(predicate.FieldSet, 0, len(cols))
		for _, c := range cols {
			expr, ok := exprs[c]
			if !ok {
				return nil, fmt.Errorf("search type %s: unknown column %q", t, c)
			}
			set = append(set, expr)
		}
		out[t] = set
	}
	return out, nil
}
