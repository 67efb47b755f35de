package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eigenbahn/dynix/pkg/kafka"
	"github.com/eigenbahn/dynix/pkg/metrics"
)

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	Listings          int64            `json:"listings"`
	ItemsViewed       int64            `json:"items_viewed"`
	FailedSearches    int64            `json:"failed_searches"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	AvgTerms          float64          `json:"avg_terms"`
	BySearchType      map[string]int64 `json:"by_search_type"`
	ByBackend         map[string]int64 `json:"by_backend"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	TopItems          []QueryCount     `json:"top_items"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds search events into running stats.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	listings          atomic.Int64
	itemsViewed       atomic.Int64
	failed            atomic.Int64
	zeroResults       atomic.Int64
	termTotal         atomic.Int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	itemCounts        map[string]int64
	bySearchType      map[string]int64
	byBackend         map[string]int64
	startTime         time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an aggregator. consumer may be nil when events are
// fed through Record directly.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		itemCounts:        make(map[string]int64),
		bySearchType:      make(map[string]int64),
		byBackend:         make(map[string]int64),
		startTime:         time.Now(),
		consumer:          consumer,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// SetConsumer attaches the stream the aggregator reads in Start.
func (a *Aggregator) SetConsumer(c *kafka.Consumer) { a.consumer = c }

func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent adapts the aggregator to a kafka consumer. Undecodable
// messages are logged and skipped so they do not block the partition. m may
// be nil.
func HandleEvent(agg *Aggregator, m *metrics.Metrics) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var env envelope
		if err := json.Unmarshal(value, &env); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		if m != nil {
			m.AnalyticsEventsTotal.WithLabelValues(eventLabel(env.Type)).Inc()
		}
		switch env.Type {
		case EventItemViewed:
			event, err := kafka.DecodeJSON[ItemEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode item event", "error", err)
				return nil
			}
			agg.Record(event)
		case EventSearchCounted, EventSearchListed, EventSearchFailed:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode search event", "error", err)
				return nil
			}
			agg.Record(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

func eventLabel(t EventType) string {
	switch t {
	case EventSearchCounted, EventSearchListed, EventSearchFailed, EventItemViewed:
		return string(t)
	}
	return "unknown"
}

// Record folds one event into the stats. Unknown values are ignored.
func (a *Aggregator) Record(event any) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearchEvent(e)
	case ItemEvent:
		a.recordItemEvent(e)
	}
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	switch event.Type {
	case EventSearchFailed:
		a.failed.Add(1)
		return
	case EventSearchListed:
		a.listings.Add(1)
		return
	}

	a.totalSearches.Add(1)
	a.termTotal.Add(int64(len(event.Terms)))
	if event.TotalHits == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.TotalHits == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.bySearchType[event.SearchType]++
	a.byBackend[event.Backend]++
	a.mu.Unlock()
}

func (a *Aggregator) recordItemEvent(event ItemEvent) {
	a.itemsViewed.Add(1)
	a.mu.Lock()
	a.itemCounts[event.Title]++
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches.Load(),
		Listings:        a.listings.Load(),
		ItemsViewed:     a.itemsViewed.Load(),
		FailedSearches:  a.failed.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		BySearchType:    copyCounts(a.bySearchType),
		ByBackend:       copyCounts(a.byBackend),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if stats.TotalSearches > 0 {
		stats.AvgTerms = float64(a.termTotal.Load()) / float64(stats.TotalSearches)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	stats.TopItems = topN(a.itemCounts, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}

	return stats
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN returns the n highest counts, ties broken alphabetically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
