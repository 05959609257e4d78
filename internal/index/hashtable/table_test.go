package hashtable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	id    uint32
	label string
}

func idPolicy() Policy[uint32, entry] {
	return Policy[uint32, entry]{
		Hash:  HashUint32,
		Match: func(e *entry, key uint32) bool { return e.id == key },
	}
}

func namePolicy() Policy[string, entry] {
	return Policy[string, entry]{
		Hash:  HashString,
		Match: func(e *entry, key string) bool { return e.label == key },
	}
}

func TestNewRejectsZeroBuckets(t *testing.T) {
	_, err := New(0, idPolicy())
	assert.ErrorIs(t, err, ErrZeroBuckets)
}

func TestInsertThenSearch(t *testing.T) {
	table, err := New(7, idPolicy())
	require.NoError(t, err)

	for _, id := range []uint32{1, 8, 15, 3, 22} {
		table.Insert(id, entry{id: id, label: fmt.Sprintf("p%d", id)})
	}

	for _, id := range []uint32{1, 8, 15, 3, 22} {
		got, ok := table.Search(id)
		require.True(t, ok, "id %d", id)
		assert.Equal(t, id, got.id)
	}

	got, ok := table.Search(29)
	assert.False(t, ok)
	assert.Nil(t, got)
	assert.Equal(t, 5, table.Len())
}

func TestInsertDoesNotDeduplicate(t *testing.T) {
	table, err := New(3, namePolicy())
	require.NoError(t, err)

	table.Insert("dribbler", entry{id: 1, label: "dribbler"})
	table.Insert("dribbler", entry{id: 2, label: "dribbler"})

	got, ok := table.Search("dribbler")
	require.True(t, ok)
	assert.Equal(t, uint32(1), got.id, "search returns the first match")
	assert.Equal(t, 2, table.Len())
}

func TestSearchReturnsMutableReference(t *testing.T) {
	table, err := New(5, idPolicy())
	require.NoError(t, err)
	table.Insert(4, entry{id: 4, label: "before"})

	got, ok := table.Search(4)
	require.True(t, ok)
	got.label = "after"

	again, _ := table.Search(4)
	assert.Equal(t, "after", again.label)
}

func TestOccupancy(t *testing.T) {
	table, err := New(4, idPolicy())
	require.NoError(t, err)
	assert.Equal(t, 0.0, table.Occupancy())

	table.Insert(0, entry{id: 0})
	assert.InDelta(t, 0.25, table.Occupancy(), 1e-12)

	// Same bucket as 0: occupancy unchanged.
	table.Insert(4, entry{id: 4})
	assert.InDelta(t, 0.25, table.Occupancy(), 1e-12)

	table.Insert(1, entry{id: 1})
	assert.InDelta(t, 0.5, table.Occupancy(), 1e-12)
	assert.Equal(t, 2, table.LongestChain())
}

func TestRangeOrder(t *testing.T) {
	table, err := New(3, idPolicy())
	require.NoError(t, err)
	for _, id := range []uint32{5, 3, 2, 6, 4} {
		table.Insert(id, entry{id: id})
	}

	var seen []uint32
	table.Range(func(e *entry) bool {
		seen = append(seen, e.id)
		return true
	})
	// bucket 0: 3, 6; bucket 1: 4; bucket 2: 5, 2
	assert.Equal(t, []uint32{3, 6, 4, 5, 2}, seen)

	seen = seen[:0]
	table.Range(func(e *entry) bool {
		seen = append(seen, e.id)
		return len(seen) < 2
	})
	assert.Equal(t, []uint32{3, 6}, seen)
}

func TestHashString(t *testing.T) {
	tests := []struct {
		key     string
		buckets uint32
		want    uint32
	}{
		{"", 13, 0},
		{"A", 13, 65 % 13},
		{"AB", 1000, (65*31 + 66) % 1000},
		{"abc", 97, 33},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, HashString(tt.key, tt.buckets))
		})
	}
}

func TestHashStringLargeBucketCountStaysInRange(t *testing.T) {
	const n = ^uint32(0)
	h := HashString("Cristiano Ronaldo dos Santos Aveiro", n)
	assert.Less(t, h, n)
	assert.Equal(t, h, HashString("Cristiano Ronaldo dos Santos Aveiro", n))
}

func BenchmarkSearch(b *testing.B) {
	table, _ := New(20011, idPolicy())
	for i := uint32(0); i < 20000; i++ {
		table.Insert(i*7, entry{id: i * 7})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Search(uint32(i%20000) * 7)
	}
}
