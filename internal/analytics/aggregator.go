package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/kafka"
)

const (
	maxLatencySamples = 100_000
	defaultTopQueries = 10
	maxTopQueries     = 100
)

// AggregatedStats is the rolled-up view served at /api/v1/analytics.
type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	ByKind            map[string]int64 `json:"by_kind"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	AvgLatencyUs      float64          `json:"avg_latency_us"`
	P50LatencyUs      int64            `json:"p50_latency_us"`
	P95LatencyUs      int64            `json:"p95_latency_us"`
	P99LatencyUs      int64            `json:"p99_latency_us"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator accumulates QueryEvents. It is fed either by a Kafka consumer
// through HandleEvent or directly as a Collector's Publisher.
type Aggregator struct {
	mu          sync.RWMutex
	total       int64
	byKind      map[string]int64
	cacheHits   int64
	cacheMisses int64
	zeroResults int64
	latencies   []int64
	next        int
	queryCounts map[string]int64
	zeroQueries map[string]int64
	startTime   time.Time
	now         func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byKind:      make(map[string]int64),
		latencies:   make([]int64, 0, 1024),
		queryCounts: make(map[string]int64),
		zeroQueries: make(map[string]int64),
		startTime:   time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes a Kafka message into the aggregator. Undecodable
// messages are logged and acknowledged.
func (a *Aggregator) HandleEvent() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[QueryEvent](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		a.Record(event)
		return nil
	}
}

// Publish records event in process, so a Collector can feed the aggregator
// without a broker.
func (a *Aggregator) Publish(_ context.Context, event kafka.Event) error {
	if e, ok := event.Value.(QueryEvent); ok {
		a.Record(e)
	}
	return nil
}

func (a *Aggregator) Record(event QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.byKind[event.Kind]++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.queryCounts[event.Query]++
	if event.Total == 0 {
		a.zeroResults++
		a.zeroQueries[event.Query]++
	}

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyUs)
	} else {
		a.latencies[a.next] = event.LatencyUs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

// Stats returns the aggregate with the ten most frequent queries.
func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(defaultTopQueries)
}

// StatsTop is Stats with n entries in each query ranking.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalQueries:    a.total,
		ByKind:          make(map[string]int64, len(a.byKind)),
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
	}
	for k, v := range a.byKind {
		stats.ByKind[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyUs = float64(sum) / float64(len(sorted))
		stats.P50LatencyUs = percentile(sorted, 50)
		stats.P95LatencyUs = percentile(sorted, 95)
		stats.P99LatencyUs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, n)
	stats.ZeroResultQueries = topN(a.zeroQueries, n)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
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

// topN returns the n most frequent queries, ties in query order.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	slices.SortFunc(result, func(a, b QueryCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Query, b.Query)
	})
	return result[:min(n, len(result))]
}
