// Package players holds the primary player index: a fixed-bucket hash table
// keyed by sofifa ID that owns every Player record.
package players

import (
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/hashtable"
)

// Player is a row of the players dataset plus its aggregate user rating.
type Player struct {
	ID          uint32   `json:"id"`
	Name        string   `json:"name"`
	Positions   []string `json:"positions"`
	Rating      float64  `json:"rating"`
	RatingCount uint32   `json:"rating_count"`
}

// AddRating folds one score into the running mean. The update order matters
// in the last bits of Rating, so callers must feed scores deterministically.
func (p *Player) AddRating(score float64) {
	p.RatingCount++
	p.Rating += (score - p.Rating) / float64(p.RatingCount)
}

type Index struct {
	table *hashtable.Table[uint32, Player]
}

func New(bucketCount uint32) (*Index, error) {
	table, err := hashtable.New(bucketCount, hashtable.Policy[uint32, Player]{
		Hash:  hashtable.HashUint32,
		Match: func(p *Player, id uint32) bool { return p.ID == id },
	})
	if err != nil {
		return nil, err
	}
	return &Index{table: table}, nil
}

// Insert stores p without checking for an existing record with the same ID.
func (x *Index) Insert(p Player) {
	x.table.Insert(p.ID, p)
}

// Lookup returns the stored record for id. The pointer aliases the index
// and must only be written to during the build phase.
func (x *Index) Lookup(id uint32) (*Player, bool) {
	return x.table.Search(id)
}

// Range visits players in bucket order.
func (x *Index) Range(fn func(p *Player) bool) {
	x.table.Range(fn)
}

func (x *Index) Len() int {
	return x.table.Len()
}

func (x *Index) Occupancy() float64 {
	return x.table.Occupancy()
}

func (x *Index) LongestChain() int {
	return x.table.LongestChain()
}
