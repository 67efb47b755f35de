package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/eigenbahn/dynix/internal/analytics"
	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/session"
	"github.com/eigenbahn/dynix/pkg/logger"
	"github.com/eigenbahn/dynix/pkg/metrics"
	"github.com/eigenbahn/dynix/pkg/tracing"
)

// DefaultAutoListThreshold is the largest total that skips straight from
// counting to the listing.
const DefaultAutoListThreshold = 30

// Tracker receives analytics events; analytics.Collector satisfies it.
type Tracker interface {
	Track(event any)
}

type Options struct {
	Menu []Category
	// QuitKey ends the program from the welcome menu. Defaults to the key
	// after the last menu entry.
	QuitKey           string
	AutoListThreshold int
	Tracker           Tracker
	Metrics           *metrics.Metrics
}

// Machine owns the current screen and at most one search session. It is
// driven by a single interaction loop and is not safe for concurrent use.
type Machine struct {
	menu      []Category
	quitKey   string
	threshold int
	tracker   Tracker
	metrics   *metrics.Metrics

	welcome *State
	current *State
	span    *tracing.Span
	started time.Time
	notice  string
	done    bool
	logger  *slog.Logger
}

func New(opts Options) *Machine {
	if opts.AutoListThreshold <= 0 {
		opts.AutoListThreshold = DefaultAutoListThreshold
	}
	if opts.QuitKey == "" {
		opts.QuitKey = strconv.Itoa(len(opts.Menu) + 1)
	}
	welcome := &State{ID: KindWelcome.String(), Kind: KindWelcome}
	return &Machine{
		menu:      opts.Menu,
		quitKey:   Normalize(opts.QuitKey),
		threshold: opts.AutoListThreshold,
		tracker:   opts.Tracker,
		metrics:   opts.Metrics,
		welcome:   welcome,
		current:   welcome,
		logger:    slog.Default().With("component", "screen-machine"),
	}
}

func (m *Machine) Current() *State { return m.current }

// Done reports whether the patron quit from the welcome menu.
func (m *Machine) Done() bool { return m.done }

// Notice is the message shown on the current screen, if any.
func (m *Machine) Notice() string { return m.notice }

func (m *Machine) Threshold() int { return m.threshold }

// Frame snapshots what the current screen should display.
func (m *Machine) Frame() Frame {
	return Frame{State: m.current, Menu: m.menu, QuitKey: m.quitKey, Notice: m.notice}
}

// Handle applies one patron command to the current screen. Unrecognised
// commands leave the screen as it is.
func (m *Machine) Handle(ctx context.Context, input string) {
	m.notice = ""
	cmd := Normalize(input)
	switch m.current.Kind {
	case KindWelcome:
		m.handleWelcome(cmd)
	case KindSearchInput:
		m.handleSearchInput(ctx, input, cmd)
	case KindCounting:
		m.handleCounting(ctx, cmd)
	case KindListing:
		m.handleListing(cmd)
	case KindItem:
		m.handleItem(cmd)
	}
}

// Advance applies the transitions that need no input: a counting screen
// whose total is small enough moves on to the listing. The interaction loop
// calls it whenever a read times out. It reports whether the screen changed.
func (m *Machine) Advance(ctx context.Context) bool {
	if m.current.Kind != KindCounting {
		return false
	}
	s := m.current.Session
	if s == nil || s.Total() > m.threshold {
		return false
	}
	return m.display(ctx)
}

func (m *Machine) handleWelcome(cmd string) {
	if cmd == m.quitKey {
		m.done = true
		m.logger.Info("patron quit")
		return
	}
	for i := range m.menu {
		if Normalize(m.menu[i].Key) == cmd {
			m.enterSearchInput(&m.menu[i])
			return
		}
	}
}

func (m *Machine) handleSearchInput(ctx context.Context, raw, cmd string) {
	switch {
	case isStartOver(cmd) || isBack(cmd):
		m.enterWelcome()
		return
	case cmd == "":
		return
	}

	cat := m.current.Category
	s, err := session.Begin(raw, cat.Backend, cat.SearchType)
	if err != nil {
		if errors.Is(err, session.ErrEmptyQuery) {
			m.notice = "Please enter one or more words to search for."
			m.observeSearch(cat, "rejected")
			return
		}
		m.fail(cat, "", err)
		return
	}

	m.startSpan(ctx, s)
	m.started = time.Now()
	if err := s.CountIncremental(m.traced(ctx, s)); err != nil {
		m.fail(cat, s.ID(), err)
		return
	}
	m.recordCounted(cat, s)
	m.enter(&State{ID: KindCounting.String(), Kind: KindCounting, Category: cat, Session: s})
}

func (m *Machine) handleCounting(ctx context.Context, cmd string) {
	switch {
	case isStartOver(cmd):
		m.enterWelcome()
	case cmd == CmdDisplay:
		m.display(ctx)
	}
}

func (m *Machine) handleListing(cmd string) {
	cur := m.current
	switch {
	case isStartOver(cmd):
		m.enterWelcome()
	case isBack(cmd):
		if cur.Session.Total() > m.threshold {
			m.enter(&State{ID: KindCounting.String(), Kind: KindCounting, Category: cur.Category, Session: cur.Session})
			return
		}
		m.endSearch()
		m.enterSearchInput(cur.Category)
	case isDigits(cmd):
		n, err := strconv.Atoi(cmd)
		if err == nil {
			err = cur.Session.SelectItem(n)
		}
		if err != nil {
			m.notice = fmt.Sprintf("Please choose a line number from 1 to %d.", m.listed(cur.Session))
			return
		}
		m.enter(&State{ID: KindItem.String(), Kind: KindItem, Category: cur.Category, Session: cur.Session})
		m.trackItem(cur.Session)
	}
}

func (m *Machine) handleItem(cmd string) {
	cur := m.current
	switch {
	case isStartOver(cmd):
		m.enterWelcome()
	case isBack(cmd):
		cur.Session.BackToListing()
		m.enter(&State{ID: KindListing.String(), Kind: KindListing, Category: cur.Category, Session: cur.Session})
	case cmd == CmdPrevTitle:
		if cur.Session.StepItem(-1) {
			m.trackItem(cur.Session)
		} else {
			m.notice = "This is the first title."
		}
	case cmd == CmdNextTitle:
		if cur.Session.StepItem(1) {
			m.trackItem(cur.Session)
		} else {
			m.notice = "This is the last title."
		}
	}
}

// display fetches the full result page and shows the listing.
func (m *Machine) display(ctx context.Context) bool {
	cur := m.current
	s := cur.Session
	start := time.Now()
	if err := s.FetchAll(m.traced(ctx, s)); err != nil {
		m.fail(cur.Category, s.ID(), err)
		return true
	}
	m.track(analytics.SearchEvent{
		Type:       analytics.EventSearchListed,
		SearchID:   s.ID(),
		Backend:    s.BackendName(),
		SearchType: string(s.SearchType()),
		Query:      s.Query().Raw,
		Terms:      s.Query().Words(),
		TotalHits:  s.Total(),
		Returned:   len(s.Results()),
		LatencyMs:  time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
	m.enter(&State{ID: KindListing.String(), Kind: KindListing, Category: cur.Category, Session: s})
	return true
}

func (m *Machine) enterWelcome() {
	m.endSearch()
	m.enter(m.welcome)
}

func (m *Machine) enterSearchInput(cat *Category) {
	m.enter(&State{ID: KindSearchInput.String() + ":" + string(cat.SearchType), Kind: KindSearchInput, Category: cat})
}

func (m *Machine) enter(next *State) {
	if m.metrics != nil {
		m.metrics.ScreenTransitionsTotal.WithLabelValues(m.current.Kind.String(), next.Kind.String()).Inc()
	}
	m.logger.Debug("screen transition", "from", m.current.ID, "to", next.ID)
	m.current = next
}

// fail drops the search and returns to the welcome menu with a notice. The
// program keeps running.
func (m *Machine) fail(cat *Category, searchID string, err error) {
	m.logger.Error("search failed", "search_id", searchID, "backend", cat.Backend.Name(), "error", err)
	m.observeSearch(cat, "failed")
	m.track(analytics.SearchEvent{
		Type:       analytics.EventSearchFailed,
		SearchID:   searchID,
		Backend:    cat.Backend.Name(),
		SearchType: string(cat.SearchType),
		Error:      err.Error(),
		Timestamp:  time.Now().UTC(),
	})
	if errors.Is(err, catalog.ErrUnknownSearchType) {
		m.notice = fmt.Sprintf("%s searching is not available in this catalog.", cat.Label)
	} else {
		m.notice = "The catalog is not responding. Please try again later."
	}
	m.endSearch()
	m.enter(m.welcome)
}

func (m *Machine) startSpan(ctx context.Context, s *session.Session) {
	m.endSearch()
	_, span := tracing.StartSpan(ctx, "search", s.ID())
	span.SetAttr("backend", s.BackendName())
	span.SetAttr("search_type", string(s.SearchType()))
	span.SetAttr("query", s.Query().Raw)
	m.span = span
}

// traced carries the search span and id into backend calls.
func (m *Machine) traced(ctx context.Context, s *session.Session) context.Context {
	return logger.WithSearchID(tracing.ContextWithSpan(ctx, m.span), s.ID())
}

// endSearch closes the current search's span tree, if one is open.
func (m *Machine) endSearch() {
	if m.span == nil {
		return
	}
	m.span.Finish(m.logger)
	m.span = nil
}

func (m *Machine) recordCounted(cat *Category, s *session.Session) {
	counts := s.Counts()
	perTerm := make([]int, len(counts))
	for i, c := range counts {
		perTerm[i] = c.Count
	}
	outcome := "counted"
	if s.Total() == 0 {
		outcome = "zero_result"
	}
	m.observeSearch(cat, outcome)
	if m.metrics != nil {
		m.metrics.SearchTerms.Observe(float64(len(counts)))
		m.metrics.SearchTotalHits.WithLabelValues(s.BackendName()).Observe(float64(s.Total()))
	}
	m.track(analytics.SearchEvent{
		Type:       analytics.EventSearchCounted,
		SearchID:   s.ID(),
		Backend:    s.BackendName(),
		SearchType: string(s.SearchType()),
		Query:      s.Query().Raw,
		Terms:      s.Query().Words(),
		TermCounts: perTerm,
		TotalHits:  s.Total(),
		LatencyMs:  time.Since(m.started).Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
}

func (m *Machine) observeSearch(cat *Category, outcome string) {
	if m.metrics != nil {
		m.metrics.SearchesTotal.WithLabelValues(cat.Backend.Name(), string(cat.SearchType), outcome).Inc()
	}
}

func (m *Machine) trackItem(s *session.Session) {
	it, ok := s.Current()
	if !ok {
		return
	}
	m.track(analytics.ItemEvent{
		Type:      analytics.EventItemViewed,
		SearchID:  s.ID(),
		Backend:   s.BackendName(),
		ItemID:    it.ID,
		Title:     it.Title,
		Position:  s.Cursor(),
		Timestamp: time.Now().UTC(),
	})
}

func (m *Machine) track(event any) {
	if m.tracker != nil {
		m.tracker.Track(event)
	}
}

// listed is the number of selectable lines on a listing.
func (m *Machine) listed(s *session.Session) int {
	n := len(s.Results())
	if s.Total() < n {
		n = s.Total()
	}
	return n
}
