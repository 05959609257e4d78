// Package tags implements the tag index: a string-keyed hash table of
// buckets, each holding the IDs of the players carrying that tag in strictly
// ascending order. The ordering is what makes Intersect a linear merge.
package tags

import (
	"slices"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/hashtable"
)

// Bucket is the ID list for one tag.
type Bucket struct {
	Name      string
	PlayerIDs []uint32
}

type Index struct {
	table *hashtable.Table[string, Bucket]
}

func New(bucketCount uint32) (*Index, error) {
	table, err := hashtable.New(bucketCount, hashtable.Policy[string, Bucket]{
		Hash:  hashtable.HashString,
		Match: func(b *Bucket, name string) bool { return b.Name == name },
	})
	if err != nil {
		return nil, err
	}
	return &Index{table: table}, nil
}

// Insert adds id under tag, keeping the bucket sorted. Inserting an ID that
// is already present is a no-op.
func (x *Index) Insert(id uint32, tag string) {
	b, ok := x.table.Search(tag)
	if !ok {
		x.table.Insert(tag, Bucket{Name: tag, PlayerIDs: []uint32{id}})
		return
	}
	pos, found := slices.BinarySearch(b.PlayerIDs, id)
	if found {
		return
	}
	b.PlayerIDs = slices.Insert(b.PlayerIDs, pos, id)
}

// Lookup returns the ID list stored for tag. The slice aliases the index.
func (x *Index) Lookup(tag string) ([]uint32, bool) {
	b, ok := x.table.Search(tag)
	if !ok {
		return nil, false
	}
	return b.PlayerIDs, true
}

// Intersect returns the IDs present under every tag, ascending. If any tag
// is unknown, or no tags are given, the result is empty.
func (x *Index) Intersect(tags []string) []uint32 {
	result := make([]uint32, 0)
	if len(tags) == 0 {
		return result
	}
	lists := make([][]uint32, 0, len(tags))
	for _, tag := range tags {
		ids, ok := x.Lookup(tag)
		if !ok || len(ids) == 0 {
			return result
		}
		lists = append(lists, ids)
	}
	return intersectSorted(lists, result)
}

// intersectSorted merges ascending lists by walking the first one and
// advancing a cursor on each of the others. Once any cursor runs off its
// list no later candidate can be common to all lists, so it stops there.
func intersectSorted(lists [][]uint32, out []uint32) []uint32 {
	cursors := make([]int, len(lists))
	for _, candidate := range lists[0] {
		inAll := true
		for i := 1; i < len(lists); i++ {
			list := lists[i]
			for list[cursors[i]] < candidate {
				cursors[i]++
				if cursors[i] >= len(list) {
					return out
				}
			}
			if list[cursors[i]] != candidate {
				inAll = false
			}
		}
		if inAll {
			out = append(out, candidate)
		}
	}
	return out
}

// Range visits every bucket in table order. Callers may reorder a bucket's
// PlayerIDs, after which Insert and Intersect no longer apply to it.
func (x *Index) Range(fn func(b *Bucket) bool) {
	x.table.Range(fn)
}

// Len returns the number of distinct tags.
func (x *Index) Len() int {
	return x.table.Len()
}

func (x *Index) Occupancy() float64 {
	return x.table.Occupancy()
}

func (x *Index) LongestChain() int {
	return x.table.LongestChain()
}
