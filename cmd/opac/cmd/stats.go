package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/eigenbahn/dynix/internal/analytics"
	"github.com/eigenbahn/dynix/internal/analytics/snapshot"
	"github.com/eigenbahn/dynix/pkg/config"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
	"github.com/eigenbahn/dynix/pkg/health"
	"github.com/eigenbahn/dynix/pkg/kafka"
	"github.com/eigenbahn/dynix/pkg/metrics"
	"github.com/eigenbahn/dynix/pkg/middleware"
	"github.com/eigenbahn/dynix/pkg/postgres"
	"github.com/eigenbahn/dynix/pkg/sqlite"
)

var corsOrigins []string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate patron searches from Kafka and serve the stats over HTTP",
	Long: `Consume the search events the catalog terminals publish and serve:

  GET /stats           aggregated search statistics
  GET /stats/history   stored snapshots, when snapshots are enabled
  GET /health/live     liveness
  GET /health/ready    readiness of Kafka and the snapshot store
  GET /metrics         Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Kafka.Enabled {
			return apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage,
				"the stats service needs kafka (set kafka.enabled or OPAC_KAFKA_BROKERS)")
		}
		return serveStats(cmd.Context(), cfg)
	},
}

func init() {
	statsCmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "browser origins allowed to read /stats")
}

func serveStats(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default().With("component", "stats-service")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	agg := analytics.NewAggregator(nil)
	agg.SetConsumer(kafka.NewConsumer(cfg.Kafka, analytics.HandleEvent(agg, m)))

	checker := health.NewChecker()
	checker.Register("kafka", health.Ping(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}, true))

	g, ctx := errgroup.WithContext(ctx)
	routes := statsRoutes{
		stats:    analytics.NewHandler(agg),
		checker:  checker,
		gatherer: reg,
		metrics:  m,
		origins:  corsOrigins,
	}

	store, db, err := openSnapshots(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer db.Close()
		checker.Register("snapshots", health.Ping(db.PingContext, false))
		routes.history = store.HistoryHandler(60)
		g.Go(func() error {
			store.Run(ctx, agg, cfg.Stats.Snapshots.Interval)
			return nil
		})
	}

	if cfg.Stats.RateLimit > 0 {
		routes.limiter = middleware.NewLimiter(cfg.Stats.RateLimit, cfg.Stats.RateBurst)
		g.Go(func() error {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					routes.limiter.Prune()
				}
			}
		})
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Stats.Port),
		Handler:           newStatsRouter(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error { return agg.Start(ctx) })
	g.Go(func() error {
		logger.Info("stats service listening", "addr", server.Addr, "topic", cfg.Kafka.Topics.SearchEvents)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("stats server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Stats.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("stats service stopped")
	return err
}

type statsRoutes struct {
	stats    *analytics.Handler
	history  http.HandlerFunc
	checker  *health.Checker
	gatherer prometheus.Gatherer
	metrics  *metrics.Metrics
	limiter  *middleware.Limiter
	origins  []string
}

// newStatsRouter mounts the stats endpoints. Requests pass CORS, metrics,
// the rate limit and the deadline in that order.
func newStatsRouter(rt statsRoutes) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if len(rt.origins) > 0 {
		r.Use(middleware.CORS(rt.origins))
	}
	r.Use(middleware.Metrics(rt.metrics))
	if rt.limiter != nil {
		r.Use(middleware.RateLimit(rt.limiter))
	}
	r.Use(middleware.Deadline(5 * time.Second))

	r.Get("/stats", rt.stats.Stats)
	if rt.history != nil {
		r.Get("/stats/history", rt.history)
	}
	r.Get("/health/live", rt.checker.LiveHandler())
	r.Get("/health/ready", rt.checker.ReadyHandler())
	r.Method(http.MethodGet, "/metrics", metrics.Handler(rt.gatherer))
	return r
}

// openSnapshots returns a nil store when snapshots are disabled.
func openSnapshots(ctx context.Context, cfg *config.Config) (*snapshot.Store, *sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Stats.Snapshots.Store {
	case "":
		return nil, nil, nil
	case config.BackendSQLite:
		db, err = sqlite.Open(cfg.Stats.Snapshots.Path)
	case config.BackendPostgres:
		var client *postgres.Client
		client, err = postgres.New(ctx, cfg.Postgres)
		if client != nil {
			db = client.DB
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: opening snapshot store: %w", apperrors.ErrUnavailable, err)
	}
	store, err := snapshot.New(ctx, db, cfg.Stats.Snapshots.Store)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db, nil
}
