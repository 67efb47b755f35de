// Package snapshot keeps periodic copies of the aggregated search stats so
// a restarted stats service can report history. SQLite and PostgreSQL are
// supported through database/sql.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eigenbahn/dynix/internal/analytics"
)

// Engines.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

var schemas = map[string]string{
	SQLite: `CREATE TABLE IF NOT EXISTS search_stat_snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	data        TEXT NOT NULL,
	captured_at TIMESTAMP NOT NULL
)`,
	Postgres: `CREATE TABLE IF NOT EXISTS search_stat_snapshots (
	id          BIGSERIAL PRIMARY KEY,
	data        JSONB NOT NULL,
	captured_at TIMESTAMPTZ NOT NULL
)`,
}

// Snapshot is one stored copy of the stats.
type Snapshot struct {
	ID         int64                     `json:"id"`
	CapturedAt time.Time                 `json:"captured_at"`
	Stats      analytics.AggregatedStats `json:"stats"`
}

type Store struct {
	db     *sql.DB
	engine string
	now    func() time.Time
	logger *slog.Logger
}

// New binds a store to db. The table is created when missing.
func New(ctx context.Context, db *sql.DB, engine string) (*Store, error) {
	ddl, ok := schemas[engine]
	if !ok {
		return nil, fmt.Errorf("snapshot store: unknown engine %q", engine)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("creating snapshot table: %w", err)
	}
	return &Store{
		db:     db,
		engine: engine,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default().With("component", "stats-snapshots"),
	}, nil
}

func (s *Store) placeholder(n int) string {
	if s.engine == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	q := fmt.Sprintf(`INSERT INTO search_stat_snapshots (data, captured_at) VALUES (%s, %s)`,
		s.placeholder(1), s.placeholder(2))
	if _, err := s.db.ExecContext(ctx, q, string(data), s.now()); err != nil {
		return fmt.Errorf("saving stats snapshot: %w", err)
	}
	s.logger.Debug("stats snapshot saved",
		"total_searches", stats.TotalSearches,
		"items_viewed", stats.ItemsViewed,
	)
	return nil
}

// Latest returns the newest snapshot, or nil when none was saved yet.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	list, err := s.List(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// List returns up to limit snapshots, newest first. Rows that no longer
// decode are skipped.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	q := fmt.Sprintf(`SELECT id, data, captured_at FROM search_stat_snapshots ORDER BY id DESC LIMIT %s`,
		s.placeholder(1))
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stats snapshots: %w", err)
	}
	defer rows.Close()

	out := []Snapshot{}
	for rows.Next() {
		var (
			snap Snapshot
			data []byte
		)
		if err := rows.Scan(&snap.ID, &data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning stats snapshot: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "id", snap.ID, "error", err)
			continue
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Run saves agg's stats every interval and once more when ctx ends.
func (s *Store) Run(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("stats snapshots started", "engine", s.engine, "interval", interval)

	for {
		select {
		case <-ticker.C:
			if err := s.Save(ctx, agg.Stats()); err != nil {
				s.logger.Error("stats snapshot failed", "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := s.Save(final, agg.Stats())
			cancel()
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				s.logger.Error("final stats snapshot failed", "error", err)
			}
			return
		}
	}
}

// HistoryHandler answers GET /stats/history with the newest snapshots first.
// limit=N asks for fewer than most.
func (s *Store) HistoryHandler(most int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := most
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				analytics.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive number"}, s.logger)
				return
			}
			limit = min(n, most)
		}
		list, err := s.List(r.Context(), limit)
		if err != nil {
			s.logger.Error("listing snapshots", "error", err)
			analytics.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots unavailable"}, s.logger)
			return
		}
		analytics.WriteJSON(w, http.StatusOK, list, s.logger)
	}
}
