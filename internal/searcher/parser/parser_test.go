package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Query
	}{
		{"player Lionel", Query{Kind: KindPlayer, Prefix: "Lionel"}},
		{"  PLAYER  Kevin De  ", Query{Kind: KindPlayer, Prefix: "Kevin De"}},
		{"player", Query{Kind: KindPlayer}},
		{"id 158023", Query{Kind: KindID, ID: 158023}},
		{"user 4", Query{Kind: KindUser, ID: 4}},
		{"top10 st", Query{Kind: KindTop, N: 10, Position: "ST"}},
		{"top GK", Query{Kind: KindTop, Position: "GK"}},
		{"tags Dribbler", Query{Kind: KindTags, Tags: []string{"Dribbler"}}},
		{`tags 'Clinical Finisher' "Brazil" Speedster`, Query{Kind: KindTags, Tags: []string{"Clinical Finisher", "Brazil", "Speedster"}}},
		{"stats", Query{Kind: KindStats}},
		{"exit", Query{Kind: KindExit}},
		{"Quit", Query{Kind: KindExit}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			got.Raw = ""
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"fly me to the moon",
		"id",
		"id abc",
		"user -1",
		"user 99999999999",
		"top0 ST",
		"topx ST",
		"top10",
		"top10 ST CF",
		"tags",
		"tags 'Unclosed",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestStringIsCanonical(t *testing.T) {
	pairs := [][2]string{
		{"player lionel", "PLAYER   LIONEL"},
		{"top10 st", "TOP10 ST"},
		{`tags 'Dribbler' "Brazil"`, `tags Dribbler Brazil`},
		{"user 7", "USER 7"},
	}
	for _, p := range pairs {
		a, err := Parse(p[0])
		require.NoError(t, err)
		b, err := Parse(p[1])
		require.NoError(t, err)
		assert.Equal(t, a.String(), b.String(), p[0])
	}

	a, _ := Parse("tags 'Clinical Finisher'")
	b, _ := Parse("tags Clinical Finisher")
	assert.NotEqual(t, a.String(), b.String())
}

func TestRawIsTrimmedLine(t *testing.T) {
	q, err := Parse("  id 5 ")
	require.NoError(t, err)
	assert.Equal(t, "id 5", q.Raw)
}
