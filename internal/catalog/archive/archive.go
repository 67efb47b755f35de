// Package archive serves catalog searches from the archive.org advanced
// search API, an Elasticsearch index queried with Lucene syntax.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/predicate"
	"github.com/eigenbahn/dynix/pkg/config"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
)

const (
	DefaultBaseURL = "https://archive.org/advancedsearch.php"
	defaultRows    = 50
)

// Index fields, as named by archive.org.
const (
	fieldIdentifier = "identifier"
	fieldTitle      = "title"
	fieldCreator    = "creator"
	fieldPublisher  = "publisher"
	fieldPublicDate = "publicdate"
	fieldSubject    = "subject"
	fieldCollection = "collection"
	fieldISBN       = "isbn"
	fieldLCCN       = "lccn"
)

// SearchFields maps the menu categories to index fields.
var SearchFields = catalog.FieldMap{
	catalog.SearchAuthor:      {fieldCreator},
	catalog.SearchPublisher:   {fieldPublisher},
	catalog.SearchTitle:       {fieldTitle},
	catalog.SearchSubject:     {fieldSubject},
	catalog.SearchWord:        {fieldCreator, fieldPublisher, fieldTitle, fieldSubject, fieldCollection},
	catalog.SearchSeries:      {fieldCollection},
	catalog.SearchUniversalID: {fieldISBN},
	catalog.SearchItem:        {fieldIdentifier},
	catalog.SearchBib:         {fieldIdentifier},
}

var detailFields = []string{
	fieldIdentifier, fieldTitle, fieldCreator, fieldPublisher, fieldPublicDate,
	fieldSubject, fieldCollection, fieldISBN, fieldLCCN,
}

type Client struct {
	name     string
	baseURL  string
	rows     int
	http     *http.Client
	limiter  *rate.Limiter
	compiler *predicate.BooleanCompiler
	logger   *slog.Logger
}

var _ catalog.Backend = (*Client)(nil)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option { return func(cl *Client) { cl.http = c } }

// New creates a client. MinInterval spaces out requests so interactive
// counting does not hammer the public API.
func New(name string, cfg config.ArchiveConfig, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Rows <= 0 {
		cfg.Rows = defaultRows
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	c := &Client{
		name:     name,
		baseURL:  cfg.BaseURL,
		rows:     cfg.Rows,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
		compiler: predicate.NewBoolean(),
		logger:   slog.Default().With("component", "archive-client", "backend", name),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) Dialect() predicate.Dialect { return predicate.BooleanIndex }

func (c *Client) Compiler() predicate.Compiler { return c.compiler }

func (c *Client) FieldsForSearchType(t catalog.SearchType) (predicate.FieldSet, error) {
	return SearchFields.Lookup(t)
}

// Count asks for a single row and reads numFound; zero rows would fall back
// to the API's default page size.
func (c *Client) Count(ctx context.Context, p predicate.Predicate) (int, error) {
	if err := c.check(p); err != nil {
		return 0, err
	}
	resp, err := c.search(ctx, p.Expr, []string{fieldIdentifier}, 1)
	if err != nil {
		return 0, err
	}
	return resp.Response.NumFound, nil
}

func (c *Client) FetchDetailed(ctx context.Context, p predicate.Predicate) ([]catalog.Item, error) {
	if err := c.check(p); err != nil {
		return nil, err
	}
	resp, err := c.search(ctx, p.Expr, detailFields, c.rows)
	if err != nil {
		return nil, err
	}
	items := make([]catalog.Item, 0, len(resp.Response.Docs))
	for _, d := range resp.Response.Docs {
		items = append(items, d.item())
	}
	return items, nil
}

// Ping checks the API answers a trivial query.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.search(ctx, "identifier:*", []string{fieldIdentifier}, 1)
	return err
}

func (c *Client) check(p predicate.Predicate) error {
	if p.IsEmpty() {
		return catalog.ErrEmptyPredicate
	}
	if p.Dialect != predicate.BooleanIndex {
		return fmt.Errorf("%s cannot run %s predicates", c.name, p.Dialect)
	}
	return nil
}

func (c *Client) search(ctx context.Context, q string, fields []string, rows int) (*searchResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for %s rate limit: %w", c.name, err)
	}

	params := url.Values{}
	params.Set("q", q)
	for _, f := range fields {
		params.Add("fl[]", f)
	}
	params.Set("rows", strconv.Itoa(rows))
	params.Set("output", "json")
	u := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building archive request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrUnavailable, c.name, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("%w: %s returned %d: %s", apperrors.ErrUnavailable, c.name, res.StatusCode, body)
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding archive response: %w", err)
	}
	c.logger.Debug("archive search",
		"q", q,
		"rows", rows,
		"num_found", out.Response.NumFound,
		"latency", time.Since(start),
	)
	return &out, nil
}
