package csvsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
)

const playersCSV = "\ufeffsofifa_id,name,nationality,player_positions\n" +
	"158023,Lionel Andres Messi Cuccittini,Argentina,\"RW, ST, CF\"\n" +
	"20801,Cristiano Ronaldo dos Santos Aveiro,Portugal,\"ST, LW\"\n" +
	"notanid,Broken Row,Nowhere,GK\n" +
	"200389,Jan Oblak,Slovenia,GK\n"

const tagsCSV = "user_id,sofifa_id,tag\n" +
	"1,158023,Dribbler\n" +
	"2,20801,Clinical Finisher\n" +
	"3,158023\n"

const ratingsCSV = "user_id,sofifa_id,rating\n" +
	"7,158023,5.0\n" +
	"7,20801,4.5\n" +
	"8,158023,high\n" +
	"8,200389,3\n"

func newSource(t *testing.T) *Source {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	cfg := config.Default().Source
	cfg.PlayersFile = write("players.csv", playersCSV)
	cfg.TagsFile = write("tags.csv", tagsCSV)
	cfg.RatingsFile = write("rating.csv", ratingsCSV)
	return New(cfg)
}

func TestEachPlayer(t *testing.T) {
	src := newSource(t)
	var got []ingestion.PlayerRecord
	err := src.EachPlayer(context.Background(), func(r ingestion.PlayerRecord) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []ingestion.PlayerRecord{
		{ID: 158023, Name: "Lionel Andres Messi Cuccittini", Positions: "RW, ST, CF"},
		{ID: 20801, Name: "Cristiano Ronaldo dos Santos Aveiro", Positions: "ST, LW"},
		{ID: 200389, Name: "Jan Oblak", Positions: "GK"},
	}, got)
	assert.Equal(t, int64(1), src.Skipped())
}

func TestEachTagSkipsShortRows(t *testing.T) {
	src := newSource(t)
	var got []ingestion.TagRecord
	require.NoError(t, src.EachTag(context.Background(), func(r ingestion.TagRecord) error {
		got = append(got, r)
		return nil
	}))
	assert.Equal(t, []ingestion.TagRecord{
		{PlayerID: 158023, Tag: "Dribbler"},
		{PlayerID: 20801, Tag: "Clinical Finisher"},
	}, got)
	assert.Equal(t, int64(1), src.Skipped())
}

func TestEachRating(t *testing.T) {
	src := newSource(t)
	var got []ingestion.RatingRecord
	require.NoError(t, src.EachRating(context.Background(), func(r ingestion.RatingRecord) error {
		got = append(got, r)
		return nil
	}))
	assert.Equal(t, []ingestion.RatingRecord{
		{UserID: 7, PlayerID: 158023, Score: 5.0},
		{UserID: 7, PlayerID: 20801, Score: 4.5},
		{UserID: 8, PlayerID: 200389, Score: 3},
	}, got)
}

func TestMissingColumn(t *testing.T) {
	src := newSource(t)
	src.cfg.Columns.Tag = "label"
	err := src.EachTag(context.Background(), func(ingestion.TagRecord) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing column "label"`)
}

func TestMissingFile(t *testing.T) {
	cfg := config.Default().Source
	cfg.PlayersFile = filepath.Join(t.TempDir(), "nope.csv")
	err := New(cfg).EachPlayer(context.Background(), func(ingestion.PlayerRecord) error { return nil })
	assert.ErrorIs(t, err, os.ErrNotExist)
}
