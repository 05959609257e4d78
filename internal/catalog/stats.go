package catalog

import (
	"time"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/positions"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/ratings"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/tracing"
)

// StreamStats counts the records of one input stream.
type StreamStats struct {
	Accepted  int `json:"accepted"`
	Invalid   int `json:"invalid"`
	Duplicate int `json:"duplicate"`
}

func (s StreamStats) Rejected() int {
	return s.Invalid + s.Duplicate
}

// LoadStats counts the records seen by Load per stream.
type LoadStats struct {
	Players StreamStats `json:"players"`
	Tags    StreamStats `json:"tags"`
	Ratings StreamStats `json:"ratings"`
}

// IndexStats describes the shape of one hash-table index.
type IndexStats struct {
	Name         string  `json:"name"`
	Items        int     `json:"items"`
	Occupancy    float64 `json:"occupancy"`
	LongestChain int     `json:"longest_chain"`
}

// Stats is a diagnostic snapshot of a Catalog.
type Stats struct {
	Stage     string                   `json:"stage"`
	Indexes   []IndexStats             `json:"indexes,omitempty"`
	TrieNodes int                      `json:"trie_nodes"`
	TrieIDs   int                      `json:"trie_ids"`
	Ratings   int                      `json:"ratings"`
	Load      LoadStats                `json:"load"`
	Fold      ratings.FoldStats        `json:"fold"`
	Positions positions.BuildStats     `json:"positions"`
	Durations map[string]time.Duration `json:"durations"`
}

// Stats returns counts and shape figures for every index. While a build step
// is running only the stage and finished-step figures are reported.
func (c *Catalog) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{
		Stage:     c.stage.String(),
		Load:      c.load,
		Fold:      c.fold,
		Positions: c.placement,
		Durations: make(map[string]time.Duration, len(c.durations)),
	}
	for k, v := range c.durations {
		s.Durations[k] = v
	}
	if c.running {
		return s
	}
	s.Indexes = c.indexStats()
	s.TrieNodes = c.names.Nodes()
	s.TrieIDs = c.names.Len()
	s.Ratings = c.ratings.Ratings()
	return s
}

// Occupancy returns the fraction of non-empty buckets per index.
func (c *Catalog) Occupancy() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, 4)
	if c.running {
		return out
	}
	for _, s := range c.indexStats() {
		out[s.Name] = s.Occupancy
	}
	return out
}

// Trace returns the span tree of the last Build, or nil.
func (c *Catalog) Trace() *tracing.Span {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trace
}

func (c *Catalog) indexStats() []IndexStats {
	return []IndexStats{
		{Name: IndexPlayers, Items: c.players.Len(), Occupancy: c.players.Occupancy(), LongestChain: c.players.LongestChain()},
		{Name: IndexTags, Items: c.tags.Len(), Occupancy: c.tags.Occupancy(), LongestChain: c.tags.LongestChain()},
		{Name: IndexRatings, Items: c.ratings.Len(), Occupancy: c.ratings.Occupancy(), LongestChain: c.ratings.LongestChain()},
		{Name: IndexPositions, Items: c.positions.Len(), Occupancy: c.positions.Occupancy(), LongestChain: c.positions.LongestChain()},
	}
}
