package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion/csvsource"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion/pgsource"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/cache"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/metrics"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/postgres"
	pkgredis "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/redis"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/resilience"
)

// openSource returns the configured record source. The Postgres client, when
// one is opened, is returned so the caller can close it and probe it.
func openSource(ctx context.Context, cfg *config.Config) (ingestion.Source, *postgres.Client, error) {
	switch cfg.Source.Kind {
	case config.SourcePostgres:
		db, err := resilience.Do(ctx, "postgres connect", resilience.FromConfig(cfg.Retry), func(ctx context.Context) (*postgres.Client, error) {
			return postgres.New(ctx, cfg.Postgres)
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		slog.Info("reading records from postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		return pgsource.New(db), db, nil
	default:
		slog.Info("reading records from csv",
			"players", cfg.Source.PlayersFile,
			"tags", cfg.Source.TagsFile,
			"ratings", cfg.Source.RatingsFile,
		)
		return csvsource.New(cfg.Source), nil, nil
	}
}

// buildCatalog opens the source and runs every build stage. m may be nil.
func buildCatalog(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*catalog.Catalog, *postgres.Client, error) {
	var opts []catalog.Option
	if m != nil {
		opts = append(opts, catalog.WithMetrics(m))
	}
	cat, err := catalog.New(cfg.Catalog, opts...)
	if err != nil {
		return nil, nil, err
	}
	src, db, err := openSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	log := logger.WithComponent("build")
	start := time.Now()
	if err := cat.Build(ctx, src); err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, fmt.Errorf("building catalog: %w", err)
	}
	if csv, ok := src.(*csvsource.Source); ok && csv.Skipped() > 0 {
		log.Warn("malformed csv rows skipped", "rows", csv.Skipped())
	}
	stats := cat.Stats()
	log.Info("catalog ready",
		"players", stats.Load.Players.Accepted,
		"tags", stats.Load.Tags.Accepted,
		"ratings", stats.Load.Ratings.Accepted,
		"rejected", stats.Load.Players.Rejected()+stats.Load.Tags.Rejected()+stats.Load.Ratings.Rejected(),
		"duration", time.Since(start).Round(time.Millisecond),
		"occupancy", cat.Occupancy(),
	)
	return cat, db, nil
}

// connectCache returns a Redis-backed query cache, or nil when Redis is
// disabled or unreachable. Queries are served uncached in that case.
func connectCache(ctx context.Context, cfg *config.Config) (*cache.QueryCache, *pkgredis.Client) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := resilience.Do(ctx, "redis connect", resilience.FromConfig(cfg.Retry), func(ctx context.Context) (*pkgredis.Client, error) {
		return pkgredis.NewClient(ctx, cfg.Redis)
	})
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
		return nil, nil
	}
	slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	return cache.New(client, cfg.Redis.CacheTTL), client
}
