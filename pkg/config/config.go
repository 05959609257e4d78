// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// catalog build, the record source, and every service the binary talks to.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds accepted by SourceConfig.Kind.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Source    SourceConfig    `yaml:"source"`
	Search    SearchConfig    `yaml:"search"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Retry     RetryConfig     `yaml:"retry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
	// RateLimit is the sustained requests per second allowed per client
	// address. Zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	QueryTopic    string   `yaml:"queryTopic"`
	// BatchTimeout bounds how long the producer holds a partial batch.
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
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

// CatalogConfig sizes the fixed hash tables and sets the ranking rules.
// Bucket counts never change after build, so they should be chosen for the
// expected cardinality of each index; primes spread integer keys best.
type CatalogConfig struct {
	PlayerBuckets   uint32 `yaml:"playerBuckets"`
	TagBuckets      uint32 `yaml:"tagBuckets"`
	RatingBuckets   uint32 `yaml:"ratingBuckets"`
	PositionBuckets uint32 `yaml:"positionBuckets"`
	MinRatingCount  uint32 `yaml:"minRatingCount"`
	UserTopK        int    `yaml:"userTopK"`
}

// SourceConfig selects where player, tag and rating records come from.
type SourceConfig struct {
	Kind        string     `yaml:"kind"`
	PlayersFile string     `yaml:"playersFile"`
	TagsFile    string     `yaml:"tagsFile"`
	RatingsFile string     `yaml:"ratingsFile"`
	Columns     CSVColumns `yaml:"columns"`
}

// CSVColumns names the header columns read from each CSV file.
type CSVColumns struct {
	PlayerID  string `yaml:"playerId"`
	Name      string `yaml:"name"`
	Positions string `yaml:"positions"`
	Tag       string `yaml:"tag"`
	UserID    string `yaml:"userId"`
	Rating    string `yaml:"rating"`
}

// SearchConfig controls query result limits.
type SearchConfig struct {
	DefaultTopN int `yaml:"defaultTopN"`
	MaxResults  int `yaml:"maxResults"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AnalyticsConfig controls query event publishing.
type AnalyticsConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"bufferSize"`
}

// RetryConfig bounds how long startup waits for Postgres and Redis.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values, and fails if the result does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()
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
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config sized for the FIFA 21 dataset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       50,
			RateBurst:       100,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "fifa21",
			User:            "fifadex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    4,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "fifadex-analytics",
			QueryTopic:    "fifadex-queries",
			BatchTimeout:  10 * time.Millisecond,
			WriteTimeout:  10 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 5 * time.Minute,
		},
		Catalog: CatalogConfig{
			PlayerBuckets:   20011,
			TagBuckets:      1009,
			RatingBuckets:   150001,
			PositionBuckets: 31,
			MinRatingCount:  1000,
			UserTopK:        20,
		},
		Source: SourceConfig{
			Kind:        SourceCSV,
			PlayersFile: "data/players.csv",
			TagsFile:    "data/tags.csv",
			RatingsFile: "data/rating.csv",
			Columns: CSVColumns{
				PlayerID:  "sofifa_id",
				Name:      "name",
				Positions: "player_positions",
				Tag:       "tag",
				UserID:    "user_id",
				Rating:    "rating",
			},
		},
		Search: SearchConfig{
			DefaultTopN: 10,
			MaxResults:  1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
		Analytics: AnalyticsConfig{
			BufferSize: 10000,
		},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	buckets := map[string]uint32{
		"catalog.playerBuckets":   c.Catalog.PlayerBuckets,
		"catalog.tagBuckets":      c.Catalog.TagBuckets,
		"catalog.ratingBuckets":   c.Catalog.RatingBuckets,
		"catalog.positionBuckets": c.Catalog.PositionBuckets,
	}
	for name, n := range buckets {
		if n == 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Catalog.UserTopK < 0 {
		errs = append(errs, errors.New("catalog.userTopK must not be negative"))
	}
	switch c.Source.Kind {
	case SourceCSV, SourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("source.kind %q is not one of %q, %q", c.Source.Kind, SourceCSV, SourcePostgres))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.requestTimeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rateLimit must not be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("server.rateBurst must be at least 1 when rateLimit is set"))
	}
	if c.Search.MaxResults <= 0 {
		errs = append(errs, errors.New("search.maxResults must be positive"))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads FIFADEX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FIFADEX_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FIFADEX_SOURCE_KIND"); v != "" {
		cfg.Source.Kind = v
	}
	if v := os.Getenv("FIFADEX_PLAYERS_FILE"); v != "" {
		cfg.Source.PlayersFile = v
	}
	if v := os.Getenv("FIFADEX_TAGS_FILE"); v != "" {
		cfg.Source.TagsFile = v
	}
	if v := os.Getenv("FIFADEX_RATINGS_FILE"); v != "" {
		cfg.Source.RatingsFile = v
	}
	if v := os.Getenv("FIFADEX_MIN_RATING_COUNT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			cfg.Catalog.MinRatingCount = uint32(n)
		}
	}
	if v := os.Getenv("FIFADEX_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FIFADEX_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("FIFADEX_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("FIFADEX_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("FIFADEX_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FIFADEX_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FIFADEX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("FIFADEX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FIFADEX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FIFADEX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("FIFADEX_ANALYTICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = enabled
		}
	}
}
