// Package analytics records what users ask the catalog. Executors hand a
// QueryEvent per query to a Collector, which publishes it asynchronously;
// an Aggregator consumes the events and serves rolled-up statistics.
package analytics

import "time"

// QueryEvent describes one executed query.
type QueryEvent struct {
	Kind      string    `json:"kind"`
	Query     string    `json:"query"`
	Total     int       `json:"total"`
	Returned  int       `json:"returned"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
