// Package catalogtest provides a small fixed dataset and a ready Catalog
// built from it, for tests of packages that query the catalog.
package catalogtest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
)

// Player IDs in the fixture.
const (
	Messi      uint32 = 1
	Ronaldo    uint32 = 2
	Neymar     uint32 = 3
	DeBruyne   uint32 = 4
	Unsearched uint32 = 5
)

// Source returns the fixture records. It contains one player with an
// unsupported name, one duplicate ID, one empty tag, one non-finite score
// and one rating of an unknown player.
func Source() *ingestion.StaticSource {
	return &ingestion.StaticSource{
		Players: []ingestion.PlayerRecord{
			{ID: Messi, Name: "Lionel Messi", Positions: "RW, ST, CF"},
			{ID: Ronaldo, Name: "Cristiano Ronaldo", Positions: "ST, LW"},
			{ID: Neymar, Name: "Neymar da Silva Santos Jr.", Positions: "LW, CAM"},
			{ID: DeBruyne, Name: "Kevin De Bruyne", Positions: "CAM, CM"},
			{ID: Unsearched, Name: "Bad Name!", Positions: "GK"},
			{ID: Messi, Name: "Lionel Duplicate", Positions: "GK"},
		},
		Tags: []ingestion.TagRecord{
			{PlayerID: Messi, Tag: "Dribbler"},
			{PlayerID: Neymar, Tag: "Dribbler"},
			{PlayerID: Messi, Tag: "Playmaker"},
			{PlayerID: DeBruyne, Tag: "Playmaker"},
			{PlayerID: Neymar, Tag: "Playmaker"},
			{PlayerID: Ronaldo, Tag: "  "},
		},
		Ratings: []ingestion.RatingRecord{
			{UserID: 10, PlayerID: Messi, Score: 5.0},
			{UserID: 10, PlayerID: Ronaldo, Score: 4.0},
			{UserID: 10, PlayerID: Neymar, Score: 3.5},
			{UserID: 11, PlayerID: Messi, Score: 4.0},
			{UserID: 11, PlayerID: Ronaldo, Score: 5.0},
			{UserID: 11, PlayerID: DeBruyne, Score: 4.5},
			{UserID: 12, PlayerID: Neymar, Score: 4.5},
			{UserID: 12, PlayerID: 99, Score: 3.0},
			{UserID: 12, PlayerID: Messi, Score: math.NaN()},
		},
	}
}

// Config returns catalog settings suited to the fixture: small tables and a
// materiality threshold of two ratings.
func Config() config.CatalogConfig {
	return config.CatalogConfig{
		PlayerBuckets:   101,
		TagBuckets:      17,
		RatingBuckets:   53,
		PositionBuckets: 7,
		MinRatingCount:  2,
		UserTopK:        20,
	}
}

// NewReady builds a catalog from the fixture and fails the test on error.
func NewReady(t testing.TB, opts ...catalog.Option) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(Config(), opts...)
	require.NoError(t, err)
	require.NoError(t, c.Build(context.Background(), Source()))
	return c
}
