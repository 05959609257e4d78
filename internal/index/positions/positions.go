// Package positions ranks players per position label. It reuses the tag
// index: buckets are filled with the IDs of sufficiently rated players and
// then re-sorted by aggregate rating, best first.
package positions

import (
	"cmp"
	"slices"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/players"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/tags"
)

// DefaultMinRatingCount is the materiality threshold: players rated by fewer
// users are left out of position rankings.
const DefaultMinRatingCount = 1000

// BuildStats summarizes a Build run.
type BuildStats struct {
	Eligible  int `json:"eligible"`
	Excluded  int `json:"excluded"`
	Positions int `json:"positions"`
}

type Index struct {
	tags *tags.Index
}

func New(bucketCount uint32) (*Index, error) {
	t, err := tags.New(bucketCount)
	if err != nil {
		return nil, err
	}
	return &Index{tags: t}, nil
}

// Build files every eligible player under each of its positions, then
// orders each bucket by aggregate rating descending. Ties keep ascending ID
// order. Build must run once, after ratings have been folded into players.
func (x *Index) Build(idx *players.Index, minRatingCount uint32) BuildStats {
	var stats BuildStats
	idx.Range(func(p *players.Player) bool {
		if p.RatingCount < minRatingCount {
			stats.Excluded++
			return true
		}
		stats.Eligible++
		for _, pos := range p.Positions {
			x.tags.Insert(p.ID, pos)
		}
		return true
	})

	rating := func(id uint32) float64 {
		if p, ok := idx.Lookup(id); ok {
			return p.Rating
		}
		return 0
	}
	x.tags.Range(func(b *tags.Bucket) bool {
		slices.SortStableFunc(b.PlayerIDs, func(a, c uint32) int {
			return cmp.Compare(rating(c), rating(a))
		})
		return true
	})
	stats.Positions = x.tags.Len()
	return stats
}

// TopN returns up to n player IDs ranked best first for position.
func (x *Index) TopN(n int, position string) []uint32 {
	ids, ok := x.tags.Lookup(position)
	if !ok || n <= 0 {
		return []uint32{}
	}
	return slices.Clone(ids[:min(n, len(ids))])
}

// Len returns the number of distinct positions.
func (x *Index) Len() int {
	return x.tags.Len()
}

func (x *Index) Occupancy() float64 {
	return x.tags.Occupancy()
}

func (x *Index) LongestChain() int {
	return x.tags.LongestChain()
}
