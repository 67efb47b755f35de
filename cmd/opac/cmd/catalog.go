package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eigenbahn/dynix/internal/analytics"
	"github.com/eigenbahn/dynix/internal/catalog"
	"github.com/eigenbahn/dynix/internal/catalog/archive"
	"github.com/eigenbahn/dynix/internal/catalog/cache"
	"github.com/eigenbahn/dynix/internal/catalog/guard"
	"github.com/eigenbahn/dynix/internal/catalog/sqlstore"
	"github.com/eigenbahn/dynix/internal/predicate"
	"github.com/eigenbahn/dynix/internal/screen"
	"github.com/eigenbahn/dynix/pkg/config"
	apperrors "github.com/eigenbahn/dynix/pkg/errors"
	"github.com/eigenbahn/dynix/pkg/kafka"
	"github.com/eigenbahn/dynix/pkg/metrics"
	"github.com/eigenbahn/dynix/pkg/postgres"
	pkgredis "github.com/eigenbahn/dynix/pkg/redis"
	"github.com/eigenbahn/dynix/pkg/sqlite"
)

const pingTimeout = 5 * time.Second

// library holds every catalog backend named in the config plus the shared
// clients behind them. Close releases them in reverse order of opening.
type library struct {
	cfg       *config.Config
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	backends  map[string]catalog.Backend
	caches    map[string]*cache.Backend
	collector *analytics.Collector
	redis     *pkgredis.Client
	closers   []func() error
	logger    *slog.Logger
}

type libraryOptions struct {
	// analytics publishes patron searches to Kafka when enabled in config.
	analytics bool
	// only restricts opening to the named backend.
	only string
}

func openLibrary(ctx context.Context, cfg *config.Config, opts libraryOptions) (*library, error) {
	reg := prometheus.NewRegistry()
	lib := &library{
		cfg:      cfg,
		registry: reg,
		metrics:  metrics.New(reg),
		backends: make(map[string]catalog.Backend),
		caches:   make(map[string]*cache.Backend),
		logger:   slog.Default().With("component", "library"),
	}

	names := make([]string, 0, len(cfg.Backends))
	for name := range cfg.Backends {
		if opts.only == "" || opts.only == name {
			names = append(names, name)
		}
	}
	if opts.only != "" && len(names) == 0 {
		return nil, fmt.Errorf("%w: no backend named %q", apperrors.ErrInvalidInput, opts.only)
	}
	sort.Strings(names)

	for _, name := range names {
		b, err := lib.open(ctx, name, cfg.Backends[name])
		if err != nil {
			lib.Close()
			return nil, fmt.Errorf("opening backend %s: %w", name, err)
		}
		lib.backends[name] = b
	}

	if opts.analytics && cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		lib.collector = analytics.NewCollector(producer, 1000, 50, 2*time.Second)
		lib.collector.Start(ctx)
		lib.closers = append(lib.closers, producer.Close, func() error {
			lib.collector.Close()
			return nil
		})
		lib.logger.Info("search analytics enabled", "topic", cfg.Kafka.Topics.SearchEvents)
	}
	return lib, nil
}

// open builds one backend: the store itself, an optional result cache and
// the resilience guard outermost.
func (lib *library) open(ctx context.Context, name string, bc config.BackendConfig) (catalog.Backend, error) {
	var (
		base catalog.Backend
		err  error
	)
	switch bc.Kind {
	case config.BackendSQLite:
		base, err = lib.openSQLite(name)
	case config.BackendPostgres:
		base, err = lib.openPostgres(ctx, name)
	case config.BackendArchive:
		base = archive.New(name, lib.cfg.Archive)
	default:
		err = fmt.Errorf("%w: unknown backend kind %q", apperrors.ErrInvalidInput, bc.Kind)
	}
	if err != nil {
		return nil, err
	}
	lib.ping(ctx, base)

	if bc.Cache {
		if store := lib.redisClient(ctx); store != nil {
			c := cache.Wrap(base, store, lib.cfg.Redis.CacheTTL, lib.metrics)
			lib.caches[name] = c
			base = c
		}
	}
	return guard.Wrap(base, lib.cfg.Resilience, lib.metrics), nil
}

func (lib *library) openSQLite(name string) (catalog.Backend, error) {
	path, err := expandHome(lib.cfg.SQLite.Path)
	if err != nil {
		return nil, err
	}
	opts := []sqlite.Option{sqlite.WithBusyTimeout(lib.cfg.SQLite.BusyTimeout)}
	if lib.cfg.SQLite.ReadOnly {
		opts = append(opts, sqlite.WithReadOnly())
	}
	db, err := sqlite.Open(path, opts...)
	if err != nil {
		return nil, err
	}
	lib.closers = append(lib.closers, db.Close)
	return sqlstore.New(name, db, predicate.SQLite)
}

func (lib *library) openPostgres(ctx context.Context, name string) (catalog.Backend, error) {
	client, err := postgres.New(ctx, lib.cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	}
	lib.closers = append(lib.closers, client.Close)
	return sqlstore.New(name, client.DB, predicate.Postgres)
}

// redisClient connects on first use. Without Redis the catalog still works,
// only uncached.
func (lib *library) redisClient(ctx context.Context) *pkgredis.Client {
	if !lib.cfg.Redis.Enabled {
		return nil
	}
	if lib.redis != nil {
		return lib.redis
	}
	client, err := pkgredis.NewClient(ctx, lib.cfg.Redis)
	if err != nil {
		lib.logger.Warn("redis unavailable, result caching disabled", "error", err)
		lib.cfg.Redis.Enabled = false
		return nil
	}
	lib.redis = client
	lib.closers = append(lib.closers, client.Close)
	lib.logger.Info("result cache enabled", "addr", lib.cfg.Redis.Addr, "ttl", lib.cfg.Redis.CacheTTL)
	return client
}

// ping reports an unreachable backend early. The catalog still starts; a
// search against it ends with a notice on the welcome screen.
func (lib *library) ping(ctx context.Context, b catalog.Backend) {
	p, ok := b.(interface{ Ping(context.Context) error })
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		lib.logger.Warn("backend not reachable", "backend", b.Name(), "error", err)
	}
}

// backend returns the named backend, or the one behind the first menu
// entry when name is empty.
func (lib *library) backend(name string) (catalog.Backend, error) {
	if name == "" && len(lib.cfg.OPAC.Menu) > 0 {
		name = lib.cfg.OPAC.Menu[0].Backend
	}
	b, ok := lib.backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: no backend named %q", apperrors.ErrInvalidInput, name)
	}
	return b, nil
}

// menu turns the configured menu entries into screen categories.
func (lib *library) menu() []screen.Category {
	out := make([]screen.Category, 0, len(lib.cfg.OPAC.Menu))
	for _, e := range lib.cfg.OPAC.Menu {
		b, ok := lib.backends[e.Backend]
		if !ok {
			continue
		}
		out = append(out, screen.Category{
			Key:        e.Key,
			Label:      e.Label,
			SearchType: catalog.SearchType(e.SearchType),
			Backend:    b,
		})
	}
	return out
}

func (lib *library) machine() *screen.Machine {
	opts := screen.Options{
		Menu:              lib.menu(),
		AutoListThreshold: lib.cfg.OPAC.AutoListThreshold,
		Metrics:           lib.metrics,
	}
	if lib.collector != nil {
		opts.Tracker = lib.collector
	}
	return screen.New(opts)
}

// serveMetrics exposes the library's metrics when enabled in config.
func (lib *library) serveMetrics() {
	if !lib.cfg.Metrics.Enabled {
		return
	}
	shutdown := metrics.StartServer(lib.cfg.Metrics.Port, lib.registry)
	lib.closers = append(lib.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})
}

func (lib *library) Close() error {
	var errs []error
	for i := len(lib.closers) - 1; i >= 0; i-- {
		if err := lib.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	lib.closers = nil
	return errors.Join(errs...)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
