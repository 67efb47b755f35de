package analytics

import "time"

type EventType string

const (
	EventSearchCounted EventType = "search_counted"
	EventSearchListed  EventType = "search_listed"
	EventSearchFailed  EventType = "search_failed"
	EventItemViewed    EventType = "item_viewed"
)

// SearchEvent describes one stage of a patron search. TermCounts holds the
// running count after each term, in query order.
type SearchEvent struct {
	Type       EventType `json:"type"`
	SearchID   string    `json:"search_id"`
	Backend    string    `json:"backend"`
	SearchType string    `json:"search_type"`
	Query      string    `json:"query"`
	Terms      []string  `json:"terms"`
	TermCounts []int     `json:"term_counts,omitempty"`
	TotalHits  int       `json:"total_hits"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e SearchEvent) EventKey() string { return e.SearchID }

// ItemEvent records a patron opening a record from a result listing.
type ItemEvent struct {
	Type      EventType `json:"type"`
	SearchID  string    `json:"search_id"`
	Backend   string    `json:"backend"`
	ItemID    string    `json:"item_id"`
	Title     string    `json:"title"`
	Position  int       `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ItemEvent) EventKey() string { return e.SearchID }

type envelope struct {
	Type EventType `json:"type"`
}
