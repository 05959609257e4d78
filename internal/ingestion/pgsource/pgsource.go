// Package pgsource reads player, tag and rating records from PostgreSQL.
// Each stream runs in its own read-only snapshot and is ordered so that a
// rebuild from the same data folds ratings in the same order.
package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
)

const (
	playersQuery = `SELECT sofifa_id, name, player_positions FROM players ORDER BY sofifa_id`
	tagsQuery    = `SELECT sofifa_id, tag FROM tags ORDER BY sofifa_id, tag`
	ratingsQuery = `SELECT user_id, sofifa_id, rating FROM ratings ORDER BY user_id, sofifa_id`
)

// Querier runs fn in a read-only transaction. *postgres.Client satisfies it.
type Querier interface {
	InReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Source struct {
	db     Querier
	logger *slog.Logger
}

func New(db Querier) *Source {
	return &Source{
		db:     db,
		logger: slog.Default().With("component", "postgres-source"),
	}
}

func (s *Source) EachPlayer(ctx context.Context, fn func(ingestion.PlayerRecord) error) error {
	return s.stream(ctx, "players", playersQuery, func(rows *sql.Rows) error {
		var r ingestion.PlayerRecord
		var positions sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &positions); err != nil {
			return err
		}
		r.Positions = positions.String
		return fn(r)
	})
}

func (s *Source) EachTag(ctx context.Context, fn func(ingestion.TagRecord) error) error {
	return s.stream(ctx, "tags", tagsQuery, func(rows *sql.Rows) error {
		var r ingestion.TagRecord
		if err := rows.Scan(&r.PlayerID, &r.Tag); err != nil {
			return err
		}
		return fn(r)
	})
}

func (s *Source) EachRating(ctx context.Context, fn func(ingestion.RatingRecord) error) error {
	return s.stream(ctx, "ratings", ratingsQuery, func(rows *sql.Rows) error {
		var r ingestion.RatingRecord
		if err := rows.Scan(&r.UserID, &r.PlayerID, &r.Score); err != nil {
			return err
		}
		return fn(r)
	})
}

func (s *Source) stream(ctx context.Context, table, query string, fn func(rows *sql.Rows) error) error {
	count := 0
	err := s.db.InReadTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("querying %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			if err := fn(rows); err != nil {
				return fmt.Errorf("reading %s row %d: %w", table, count+1, err)
			}
			count++
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	s.logger.Debug("table streamed", "table", table, "rows", count)
	return nil
}
