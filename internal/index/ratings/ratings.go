// Package ratings indexes user ratings by user ID and folds them into the
// per-player aggregate rating.
package ratings

import (
	"cmp"
	"slices"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/hashtable"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/players"
)

// Rating is one score a user gave a player.
type Rating struct {
	PlayerID uint32  `json:"player_id"`
	Score    float64 `json:"score"`
}

// User holds a user's ratings in load order.
type User struct {
	ID      uint32
	Ratings []Rating
}

// FoldStats summarizes a fold run.
type FoldStats struct {
	Users    int `json:"users"`
	Applied  int `json:"applied"`
	Orphaned int `json:"orphaned"`
}

type Index struct {
	table   *hashtable.Table[uint32, User]
	ratings int
}

func New(bucketCount uint32) (*Index, error) {
	table, err := hashtable.New(bucketCount, hashtable.Policy[uint32, User]{
		Hash:  hashtable.HashUint32,
		Match: func(u *User, id uint32) bool { return u.ID == id },
	})
	if err != nil {
		return nil, err
	}
	return &Index{table: table}, nil
}

// Insert appends r to the user's list, creating the user on first sight.
// Repeated ratings of the same player are all kept.
func (x *Index) Insert(userID uint32, r Rating) {
	x.ratings++
	u, ok := x.table.Search(userID)
	if !ok {
		x.table.Insert(userID, User{ID: userID, Ratings: []Rating{r}})
		return
	}
	u.Ratings = append(u.Ratings, r)
}

// TopK returns the user's k best ratings: score descending, ties broken by
// the larger player ID. The stored list is left in load order.
func (x *Index) TopK(userID uint32, k int) []Rating {
	u, ok := x.table.Search(userID)
	if !ok || k <= 0 {
		return []Rating{}
	}
	sorted := slices.Clone(u.Ratings)
	slices.SortStableFunc(sorted, compareBest)
	return sorted[:min(k, len(sorted))]
}

func compareBest(a, b Rating) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(b.PlayerID, a.PlayerID)
}

// Fold feeds every rating into its player's running mean, users in table
// order and each user's ratings in load order. Ratings for players missing
// from the index are skipped and counted.
func (x *Index) Fold(idx *players.Index) FoldStats {
	var stats FoldStats
	x.table.Range(func(u *User) bool {
		stats.Users++
		for _, r := range u.Ratings {
			p, ok := idx.Lookup(r.PlayerID)
			if !ok {
				stats.Orphaned++
				continue
			}
			p.AddRating(r.Score)
			stats.Applied++
		}
		return true
	})
	return stats
}

// Len returns the number of users.
func (x *Index) Len() int {
	return x.table.Len()
}

// Ratings returns the number of stored ratings across all users.
func (x *Index) Ratings() int {
	return x.ratings
}

func (x *Index) Occupancy() float64 {
	return x.table.Occupancy()
}

func (x *Index) LongestChain() int {
	return x.table.LongestChain()
}
