package validator

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
)

func TestValidatePlayer(t *testing.T) {
	tests := []struct {
		name    string
		record  ingestion.PlayerRecord
		wantMsg string
	}{
		{"ok", ingestion.PlayerRecord{ID: 1, Name: "N'Golo Kante"}, ""},
		{"empty", ingestion.PlayerRecord{ID: 1, Name: "  "}, "name is required"},
		{"accented", ingestion.PlayerRecord{ID: 1, Name: "Kylian Mbappé"}, "outside the searchable alphabet"},
		{"digits", ingestion.PlayerRecord{ID: 1, Name: "R9"}, "outside the searchable alphabet"},
		{"too long", ingestion.PlayerRecord{ID: 1, Name: strings.Repeat("A", 257)}, "at most 256"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePlayer(tt.record)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields["name"], tt.wantMsg)
		})
	}
}

func TestValidateTag(t *testing.T) {
	assert.NoError(t, ValidateTag(ingestion.TagRecord{PlayerID: 1, Tag: "Clinical Finisher"}))
	err := ValidateTag(ingestion.TagRecord{PlayerID: 1, Tag: ""})
	require.Error(t, err)
	assert.Equal(t, "tag:tag is required", err.Error())
}

func TestValidateRating(t *testing.T) {
	assert.NoError(t, ValidateRating(ingestion.RatingRecord{UserID: 1, PlayerID: 2, Score: 4.5}))
	assert.NoError(t, ValidateRating(ingestion.RatingRecord{Score: 0}))
	assert.Error(t, ValidateRating(ingestion.RatingRecord{Score: math.NaN()}))
	assert.Error(t, ValidateRating(ingestion.RatingRecord{Score: math.Inf(1)}))
	assert.Error(t, ValidateRating(ingestion.RatingRecord{Score: -1}))
}
