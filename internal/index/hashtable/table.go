// Package hashtable implements the fixed-bucket hash table shared by every
// index in the catalog. A table is built once with a caller-chosen bucket
// count and never resizes or rehashes. Collisions are resolved by chaining
// into an append-only bucket slice, so a poorly chosen bucket count (or a
// pathological key distribution) degrades lookups to a linear scan. That is
// the scalability limit of the design.
package hashtable

import "errors"

// ErrZeroBuckets is returned by New when asked for a table with no buckets.
var ErrZeroBuckets = errors.New("hashtable: bucket count must be positive")

// Policy is the capability set a table needs for its key type: where a key
// lives and whether a stored item answers to it.
type Policy[K any, V any] struct {
	Hash  func(key K, bucketCount uint32) uint32
	Match func(item *V, key K) bool
}

// Table is a non-resizing hash table storing items of type V keyed by K.
type Table[K any, V any] struct {
	buckets [][]V
	policy  Policy[K, V]
	items   int
}

func New[K any, V any](bucketCount uint32, policy Policy[K, V]) (*Table[K, V], error) {
	if bucketCount == 0 {
		return nil, ErrZeroBuckets
	}
	return &Table[K, V]{
		buckets: make([][]V, bucketCount),
		policy:  policy,
	}, nil
}

// Insert appends item to the bucket for key. It never deduplicates or
// overwrites; callers wanting upsert semantics must Search first.
func (t *Table[K, V]) Insert(key K, item V) {
	b := t.bucketFor(key)
	t.buckets[b] = append(t.buckets[b], item)
	t.items++
}

// Search returns the first item in key's bucket that matches key. The
// returned pointer is valid until the next Insert into the same bucket.
func (t *Table[K, V]) Search(key K) (*V, bool) {
	bucket := t.buckets[t.bucketFor(key)]
	for i := range bucket {
		if t.policy.Match(&bucket[i], key) {
			return &bucket[i], true
		}
	}
	return nil, false
}

// Occupancy returns the fraction of buckets holding at least one item.
func (t *Table[K, V]) Occupancy() float64 {
	occupied := 0
	for _, bucket := range t.buckets {
		if len(bucket) > 0 {
			occupied++
		}
	}
	return float64(occupied) / float64(len(t.buckets))
}

func (t *Table[K, V]) BucketCount() uint32 {
	return uint32(len(t.buckets))
}

// Len returns the number of stored items.
func (t *Table[K, V]) Len() int {
	return t.items
}

// Range calls fn for every item in bucket order, then insertion order
// within a bucket. Iteration stops early when fn returns false.
func (t *Table[K, V]) Range(fn func(item *V) bool) {
	for b := range t.buckets {
		bucket := t.buckets[b]
		for i := range bucket {
			if !fn(&bucket[i]) {
				return
			}
		}
	}
}

// LongestChain reports the length of the fullest bucket.
func (t *Table[K, V]) LongestChain() int {
	longest := 0
	for _, bucket := range t.buckets {
		longest = max(longest, len(bucket))
	}
	return longest
}

func (t *Table[K, V]) bucketFor(key K) uint32 {
	return t.policy.Hash(key, uint32(len(t.buckets))) % uint32(len(t.buckets))
}
