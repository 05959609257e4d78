// Package ingestion defines the record types the catalog is built from and
// the Source abstraction that yields them.
package ingestion

import (
	"context"
	"strings"
)

// PlayerRecord is one row of the players dataset. Positions is the raw
// delimited string, e.g. "ST, LW".
type PlayerRecord struct {
	ID        uint32
	Name      string
	Positions string
}

// TagRecord attaches a user-supplied tag to a player.
type TagRecord struct {
	PlayerID uint32
	Tag      string
}

// RatingRecord is one score a user gave a player.
type RatingRecord struct {
	UserID   uint32
	PlayerID uint32
	Score    float64
}

// Source yields the three record streams in a stable order. Each Each*
// method calls fn once per record and stops at the first error fn returns.
type Source interface {
	EachPlayer(ctx context.Context, fn func(PlayerRecord) error) error
	EachTag(ctx context.Context, fn func(TagRecord) error) error
	EachRating(ctx context.Context, fn func(RatingRecord) error) error
}

// ParsePositions splits a delimited position list. Surrounding quotes and
// whitespace are dropped; order and repeats are kept.
func ParsePositions(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
