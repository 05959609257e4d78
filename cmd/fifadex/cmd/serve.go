package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/analytics"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/executor"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/handler"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/health"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/kafka"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/metrics"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/middleware"
)

func DefineServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Build the catalog and serve the query API",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunServe,
	}

	cmd.Flags().IntP("port", "p", 0, "override server.port")

	return cmd
}

func RunServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting fifadex", "port", cfg.Server.Port, "source", cfg.Source.Kind)

	ctx := cmd.Context()
	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	cat, db, err := buildCatalog(ctx, cfg, m)
	if err != nil {
		slog.Error("catalog build failed", "error", err)
		return err
	}
	if db != nil {
		defer db.Close()
	}

	queryCache, redisClient := connectCache(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	g, gctx := errgroup.WithContext(ctx)

	aggregator := analytics.NewAggregator()
	collector, producer, stopAnalytics := startAnalytics(gctx, g, cfg, aggregator)
	defer stopAnalytics()

	checker := health.NewChecker()
	checker.Register("catalog", func(ctx context.Context) health.ComponentHealth {
		if !cat.Ready() {
			return health.ComponentHealth{Status: health.StatusDown, Message: "stage " + cat.Stage().String()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: catalog.StageReady.String()}
	})
	if redisClient != nil {
		checker.Register("redis", health.PingCheck(redisClient, true))
	}
	if db != nil {
		checker.Register("postgres", health.PingCheck(db, true))
	}
	if producer != nil {
		checker.Register("kafka", health.PingCheck(producer, true))
	}

	opts := []executor.Option{executor.WithTracker(collector), executor.WithMetrics(m)}
	if queryCache != nil {
		opts = append(opts, executor.WithCache(queryCache))
	}
	exec := executor.New(cat, cfg.Search, opts...)

	mux := http.NewServeMux()
	handler.New(exec, queryCache).Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Server.CORSOrigins

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(middleware.NewClientLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(cors)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("fifadex listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		return err
	}
	slog.Info("fifadex stopped")
	return nil
}

// startAnalytics wires query events to the aggregator. With analytics
// enabled they travel through Kafka so several instances share one topic;
// otherwise the aggregator receives them directly. The returned func flushes
// the collector before closing the producer, which is nil when analytics
// stay in process.
func startAnalytics(ctx context.Context, g *errgroup.Group, cfg *config.Config, aggregator *analytics.Aggregator) (*analytics.Collector, *kafka.Producer, func()) {
	if !cfg.Analytics.Enabled {
		collector := analytics.NewCollector(aggregator, cfg.Analytics.BufferSize)
		collector.Start(ctx)
		return collector, nil, collector.Close
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.QueryTopic)
	collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize)
	collector.Start(ctx)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.QueryTopic, aggregator.HandleEvent())
	g.Go(func() error {
		return consumer.Start(ctx)
	})
	slog.Info("analytics publishing to kafka", "topic", cfg.Kafka.QueryTopic, "brokers", cfg.Kafka.Brokers)
	return collector, producer, func() {
		collector.Close()
		if err := producer.Close(); err != nil {
			slog.Error("closing kafka producer", "error", err)
		}
	}
}
