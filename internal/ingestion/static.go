package ingestion

import "context"

// StaticSource serves records held in memory.
type StaticSource struct {
	Players []PlayerRecord
	Tags    []TagRecord
	Ratings []RatingRecord
}

func (s *StaticSource) EachPlayer(ctx context.Context, fn func(PlayerRecord) error) error {
	return each(ctx, s.Players, fn)
}

func (s *StaticSource) EachTag(ctx context.Context, fn func(TagRecord) error) error {
	return each(ctx, s.Tags, fn)
}

func (s *StaticSource) EachRating(ctx context.Context, fn func(RatingRecord) error) error {
	return each(ctx, s.Ratings, fn)
}

func each[T any](ctx context.Context, records []T, fn func(T) error) error {
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}
