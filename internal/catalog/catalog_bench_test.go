package catalog_test

import (
	"context"
	"testing"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
)

var benchPositions = []string{"ST", "LW, ST", "CAM, CM", "CB", "GK", "RB, RWB"}

func letters(i int) string {
	b := []byte{'A', 'A', 'A'}
	for j := len(b) - 1; j >= 0 && i > 0; j-- {
		b[j] = byte('A' + i%26)
		i /= 26
	}
	return string(b)
}

func syntheticSource(players, usersPerPlayer int) *ingestion.StaticSource {
	src := &ingestion.StaticSource{}
	for i := 1; i <= players; i++ {
		id := uint32(i)
		src.Players = append(src.Players, ingestion.PlayerRecord{
			ID:        id,
			Name:      "Player " + letters(i),
			Positions: benchPositions[i%len(benchPositions)],
		})
		src.Tags = append(src.Tags, ingestion.TagRecord{PlayerID: id, Tag: "Tag" + letters(i%50)})
		for u := 0; u < usersPerPlayer; u++ {
			src.Ratings = append(src.Ratings, ingestion.RatingRecord{
				UserID:   uint32((i*7 + u) % 5000),
				PlayerID: id,
				Score:    float64((i+u)%10)/2 + 0.5,
			})
		}
	}
	return src
}

func benchConfig() config.CatalogConfig {
	return config.CatalogConfig{
		PlayerBuckets:   20011,
		TagBuckets:      101,
		RatingBuckets:   5003,
		PositionBuckets: 31,
		MinRatingCount:  5,
		UserTopK:        20,
	}
}

// BenchmarkBuild measures a full load, fold and position build of 10 000
// players with 20 ratings each.
func BenchmarkBuild(b *testing.B) {
	src := syntheticSource(10000, 20)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c, err := catalog.New(benchConfig())
		if err != nil {
			b.Fatal(err)
		}
		if err := c.Build(context.Background(), src); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkQueriesParallel measures concurrent read throughput over a mix of
// query kinds.
func BenchmarkQueriesParallel(b *testing.B) {
	c, err := catalog.New(benchConfig())
	if err != nil {
		b.Fatal(err)
	}
	if err := c.Build(context.Background(), syntheticSource(10000, 20)); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			switch i % 4 {
			case 0:
				_, _ = c.SearchByPrefix("Player AB")
			case 1:
				_, _ = c.SearchByTags([]string{"TagAAB"})
			case 2:
				_, _ = c.TopRatingsForUser(uint32(i % 5000))
			case 3:
				_, _ = c.TopPlayersForPosition(10, "ST")
			}
			i++
		}
	})
}
