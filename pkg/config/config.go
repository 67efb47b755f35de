// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (OPAC screens, catalog backends, Postgres, SQLite, archive.org,
// Redis, Kafka, logging, metrics and resilience).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend kinds understood by the catalog wiring.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendArchive  = "archive"
)

// Config is the top-level application configuration.
type Config struct {
	OPAC       OPACConfig               `yaml:"opac"`
	Backends   map[string]BackendConfig `yaml:"backends"`
	Postgres   PostgresConfig           `yaml:"postgres"`
	SQLite     SQLiteConfig             `yaml:"sqlite"`
	Archive    ArchiveConfig            `yaml:"archive"`
	Redis      RedisConfig              `yaml:"redis"`
	Kafka      KafkaConfig              `yaml:"kafka"`
	Logging    LoggingConfig            `yaml:"logging"`
	Metrics    MetricsConfig            `yaml:"metrics"`
	Resilience ResilienceConfig         `yaml:"resilience"`
	Stats      StatsConfig              `yaml:"stats"`
}

// OPACConfig holds the terminal catalog settings.
type OPACConfig struct {
	LibraryName       string        `yaml:"libraryName"`
	DisplaySeconds    bool          `yaml:"displaySeconds"`
	HalfDelay         time.Duration `yaml:"halfDelay"`
	AutoListThreshold int           `yaml:"autoListThreshold"`
	Menu              []MenuEntry   `yaml:"menu"`
}

// MenuEntry binds a welcome-screen key to a search category and the backend
// that serves it.
type MenuEntry struct {
	Key        string `yaml:"key"`
	Label      string `yaml:"label"`
	SearchType string `yaml:"searchType"`
	Backend    string `yaml:"backend"`
}

// BackendConfig declares one named catalog backend.
type BackendConfig struct {
	Kind  string `yaml:"kind"`
	Cache bool   `yaml:"cache"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// SQLiteConfig points at a Calibre metadata.db.
type SQLiteConfig struct {
	Path        string        `yaml:"path"`
	ReadOnly    bool          `yaml:"readOnly"`
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

// ArchiveConfig holds the archive.org advanced search client settings.
type ArchiveConfig struct {
	BaseURL     string        `yaml:"baseUrl"`
	Rows        int           `yaml:"rows"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"minInterval"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level, output format and
// destination. An empty File means stdout.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ResilienceConfig bounds every backend call.
type ResilienceConfig struct {
	CallTimeout      time.Duration `yaml:"callTimeout"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
}

// StatsConfig controls the analytics stats service. Snapshots are kept
// only when Snapshots.Store names an engine.
type StatsConfig struct {
	Port            int            `yaml:"port"`
	ShutdownTimeout time.Duration  `yaml:"shutdownTimeout"`
	RateLimit       float64        `yaml:"rateLimit"`
	RateBurst       int            `yaml:"rateBurst"`
	Snapshots       SnapshotConfig `yaml:"snapshots"`
}

// SnapshotConfig selects where periodic stats snapshots go: "sqlite" (a file
// at Path) or "postgres" (the postgres section). Empty disables them.
type SnapshotConfig struct {
	Store    string        `yaml:"store"`
	Path     string        `yaml:"path"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every menu entry references a declared backend of a
// known kind.
func (c *Config) Validate() error {
	for name, b := range c.Backends {
		switch b.Kind {
		case BackendSQLite, BackendPostgres, BackendArchive:
		default:
			return fmt.Errorf("backend %q: unknown kind %q", name, b.Kind)
		}
	}
	seen := make(map[string]struct{}, len(c.OPAC.Menu))
	for _, e := range c.OPAC.Menu {
		if e.Key == "" {
			return fmt.Errorf("menu entry %q: empty key", e.Label)
		}
		if _, dup := seen[e.Key]; dup {
			return fmt.Errorf("menu entry %q: duplicate key %q", e.Label, e.Key)
		}
		seen[e.Key] = struct{}{}
		if _, ok := c.Backends[e.Backend]; !ok {
			return fmt.Errorf("menu entry %q: unknown backend %q", e.Label, e.Backend)
		}
	}
	switch c.Stats.Snapshots.Store {
	case "", BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("stats.snapshots.store: unknown engine %q", c.Stats.Snapshots.Store)
	}
	if c.OPAC.AutoListThreshold < 0 {
		return fmt.Errorf("opac.autoListThreshold must not be negative")
	}
	return nil
}

// defaultConfig returns a Config with defaults for a local Calibre library.
func defaultConfig() *Config {
	return &Config{
		OPAC: OPACConfig{
			LibraryName:       "EIGENBAHN PRIVATE LIBRARY",
			DisplaySeconds:    true,
			HalfDelay:         500 * time.Millisecond,
			AutoListThreshold: 30,
			Menu: []MenuEntry{
				{Key: "1", Label: "AUTHOR Alphabetical Search", SearchType: "author", Backend: "calibre"},
				{Key: "2", Label: "TITLE Keyword Search", SearchType: "title", Backend: "calibre"},
				{Key: "3", Label: "SUBJECT INDEX FILE Search", SearchType: "subject", Backend: "calibre"},
				{Key: "4", Label: "GENERAL Word Search", SearchType: "word", Backend: "calibre"},
				{Key: "5", Label: "SERIES Keyword Search", SearchType: "series", Backend: "calibre"},
				{Key: "6", Label: "PUBLISHER Alphabetical Search", SearchType: "publisher", Backend: "calibre"},
				{Key: "7", Label: "ISBN/ISSN/OCLC No. Search", SearchType: "universal_id", Backend: "calibre"},
				{Key: "8", Label: "Internet Archive TITLE Search", SearchType: "title", Backend: "archive"},
				{Key: "9", Label: "Internet Archive GENERAL Word Search", SearchType: "word", Backend: "archive"},
			},
		},
		Backends: map[string]BackendConfig{
			"calibre": {Kind: BackendSQLite},
			"archive": {Kind: BackendArchive, Cache: true},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "catalog",
			User:            "catalog",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		SQLite: SQLiteConfig{
			Path:        "~/Calibre Library/metadata.db",
			ReadOnly:    true,
			BusyTimeout: 5 * time.Second,
		},
		Archive: ArchiveConfig{
			BaseURL:     "https://archive.org/advancedsearch.php",
			Rows:        50,
			Timeout:     15 * time.Second,
			MinInterval: 250 * time.Millisecond,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 4,
			CacheTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Enabled:       false,
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "opac-stats",
			Topics: KafkaTopics{
				SearchEvents: "opac-search-events",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Resilience: ResilienceConfig{
			CallTimeout:      20 * time.Second,
			MaxAttempts:      2,
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
		},
		Stats: StatsConfig{
			Port:            8090,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       10,
			RateBurst:       20,
			Snapshots: SnapshotConfig{
				Path:     "opac-stats.db",
				Interval: time.Minute,
			},
		},
	}
}

// applyEnvOverrides reads OPAC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPAC_LIBRARY_NAME"); v != "" {
		cfg.OPAC.LibraryName = v
	}
	if v := os.Getenv("OPAC_AUTO_LIST_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OPAC.AutoListThreshold = n
		}
	}
	if v := os.Getenv("OPAC_SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("OPAC_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("OPAC_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("OPAC_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("OPAC_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("OPAC_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("OPAC_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("OPAC_ARCHIVE_URL"); v != "" {
		cfg.Archive.BaseURL = v
	}
	if v := os.Getenv("OPAC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("OPAC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("OPAC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("OPAC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPAC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("OPAC_LOGGING_FILE"); v != "" {
		cfg.Logging.File = v
	}
	if v := os.Getenv("OPAC_STATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Stats.Port = port
		}
	}
	if v := os.Getenv("OPAC_STATS_SNAPSHOT_STORE"); v != "" {
		cfg.Stats.Snapshots.Store = v
	}
}
