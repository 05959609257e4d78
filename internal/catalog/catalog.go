// Package catalog owns the player indexes and drives their one-time build.
//
// A Catalog moves through a fixed sequence of stages:
//
//	StageEmpty -> StagePlayersLoaded -> StageRated -> StageReady
//
// Load fills the player index, the name trie, the tag index and the rating
// index from a Source. FoldRatings folds every rating into its player's
// running mean. BuildPositions ranks rated players per position. Each step
// refuses to run out of order, and queries refuse to run before StageReady.
// Once ready, every index is read only and queries need no locking.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/players"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/positions"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/ratings"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/tags"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/trie"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/ingestion/validator"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
	apperrors "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/errors"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/metrics"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/tracing"
)

// Stage is the build progress of a Catalog.
type Stage int32

const (
	StageEmpty Stage = iota
	StagePlayersLoaded
	StageRated
	StageReady
)

func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "empty"
	case StagePlayersLoaded:
		return "players_loaded"
	case StageRated:
		return "rated"
	case StageReady:
		return "ready"
	default:
		return fmt.Sprintf("stage(%d)", int32(s))
	}
}

// Index names used in Occupancy, Stats and metric labels.
const (
	IndexPlayers   = "players"
	IndexTags      = "tags"
	IndexRatings   = "ratings"
	IndexPositions = "positions"
)

// Rejection reasons.
const (
	reasonInvalid   = "invalid"
	reasonDuplicate = "duplicate"
)

// Option configures a Catalog.
type Option func(*Catalog)

// WithMetrics reports stage durations, rejected records and index gauges to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// Catalog is the query façade over the player indexes.
type Catalog struct {
	cfg     config.CatalogConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	stage   Stage
	running bool

	players   *players.Index
	names     *trie.Trie
	tags      *tags.Index
	ratings   *ratings.Index
	positions *positions.Index

	load      LoadStats
	fold      ratings.FoldStats
	placement positions.BuildStats
	durations map[string]time.Duration
	trace     *tracing.Span
}

func New(cfg config.CatalogConfig, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		cfg:       cfg,
		logger:    slog.Default().With("component", "catalog"),
		durations: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// reset replaces every index with an empty one.
func (c *Catalog) reset() error {
	p, err := players.New(c.cfg.PlayerBuckets)
	if err != nil {
		return fmt.Errorf("creating player index: %w", err)
	}
	t, err := tags.New(c.cfg.TagBuckets)
	if err != nil {
		return fmt.Errorf("creating tag index: %w", err)
	}
	r, err := ratings.New(c.cfg.RatingBuckets)
	if err != nil {
		return fmt.Errorf("creating rating index: %w", err)
	}
	pos, err := positions.New(c.cfg.PositionBuckets)
	if err != nil {
		return fmt.Errorf("creating position index: %w", err)
	}
	c.players, c.names, c.tags, c.ratings, c.positions = p, trie.New(), t, r, pos
	return nil
}

// Stage returns the current build stage.
func (c *Catalog) Stage() Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stage
}

// Ready reports whether queries can be served.
func (c *Catalog) Ready() bool {
	return c.Stage() == StageReady
}

// Build runs Load, FoldRatings and BuildPositions in order and logs the
// resulting span tree.
func (c *Catalog) Build(ctx context.Context, src ingestion.Source) error {
	ctx, span := tracing.Start(ctx, "catalog.build")
	defer func() {
		span.End()
		c.mu.Lock()
		c.trace = span
		c.mu.Unlock()
		span.Log(c.logger)
	}()

	if err := c.Load(ctx, src); err != nil {
		return err
	}
	if err := c.FoldRatings(ctx); err != nil {
		return err
	}
	return c.BuildPositions(ctx)
}

// advance runs fn when the catalog is at stage from and no other step is
// running, then moves it to stage to. A failed fn leaves the stage as is.
func (c *Catalog) advance(ctx context.Context, name string, from, to Stage, fn func(ctx context.Context, span *tracing.Span) error) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("%s: another build step is running: %w", name, apperrors.ErrStageOrder)
	}
	if c.stage != from {
		stage := c.stage
		c.mu.Unlock()
		return fmt.Errorf("%s requires stage %s, catalog is at %s: %w", name, from, stage, apperrors.ErrStageOrder)
	}
	c.running = true
	c.mu.Unlock()

	ctx, span := tracing.Start(ctx, name)
	start := time.Now()
	err := fn(ctx, span)
	elapsed := time.Since(start)
	span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	if err != nil {
		span.Set("error", err.Error())
		return err
	}
	c.stage = to
	c.durations[name] = elapsed
	if c.metrics != nil {
		c.metrics.BuildStageDuration.WithLabelValues(name).Set(elapsed.Seconds())
	}
	return nil
}

// Load reads all three record streams concurrently. The player stream fills
// the player index and the trie, the tag stream fills the tag index and the
// rating stream fills the rating index, so the goroutines never share a
// structure. Invalid records are skipped and counted. If any stream fails
// the catalog is emptied again and stays at StageEmpty.
func (c *Catalog) Load(ctx context.Context, src ingestion.Source) error {
	return c.advance(ctx, "load", StageEmpty, StagePlayersLoaded, func(ctx context.Context, span *tracing.Span) error {
		var stats LoadStats
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return c.loadPlayers(gctx, src, &stats.Players)
		})
		g.Go(func() error {
			return c.loadTags(gctx, src, &stats.Tags)
		})
		g.Go(func() error {
			return c.loadRatings(gctx, src, &stats.Ratings)
		})
		if err := g.Wait(); err != nil {
			if resetErr := c.reset(); resetErr != nil {
				return errors.Join(err, resetErr)
			}
			return fmt.Errorf("loading catalog: %w", err)
		}

		c.mu.Lock()
		c.load = stats
		c.mu.Unlock()
		span.Set("players", stats.Players.Accepted)
		span.Set("tags", stats.Tags.Accepted)
		span.Set("ratings", stats.Ratings.Accepted)
		span.Set("rejected", stats.Players.Rejected()+stats.Tags.Rejected()+stats.Ratings.Rejected())
		c.logger.Info("records loaded",
			"players", stats.Players.Accepted,
			"tags", stats.Tags.Accepted,
			"ratings", stats.Ratings.Accepted,
			"players_rejected", stats.Players.Rejected(),
			"tags_rejected", stats.Tags.Rejected(),
			"ratings_rejected", stats.Ratings.Rejected(),
			"trie_nodes", c.names.Nodes(),
		)
		return nil
	})
}

func (c *Catalog) loadPlayers(ctx context.Context, src ingestion.Source, stats *StreamStats) error {
	return src.EachPlayer(ctx, func(r ingestion.PlayerRecord) error {
		if err := validator.ValidatePlayer(r); err != nil {
			c.reject("players", reasonInvalid, stats, "id", r.ID, "error", err)
			return nil
		}
		if _, dup := c.players.Lookup(r.ID); dup {
			c.reject("players", reasonDuplicate, stats, "id", r.ID, "name", r.Name)
			return nil
		}
		if err := c.names.Insert(r.Name, r.ID); err != nil {
			c.reject("players", reasonInvalid, stats, "id", r.ID, "error", err)
			return nil
		}
		c.players.Insert(players.Player{
			ID:        r.ID,
			Name:      r.Name,
			Positions: ingestion.ParsePositions(r.Positions),
		})
		stats.Accepted++
		return nil
	})
}

func (c *Catalog) loadTags(ctx context.Context, src ingestion.Source, stats *StreamStats) error {
	return src.EachTag(ctx, func(r ingestion.TagRecord) error {
		if err := validator.ValidateTag(r); err != nil {
			c.reject("tags", reasonInvalid, stats, "player_id", r.PlayerID, "error", err)
			return nil
		}
		c.tags.Insert(r.PlayerID, r.Tag)
		stats.Accepted++
		return nil
	})
}

func (c *Catalog) loadRatings(ctx context.Context, src ingestion.Source, stats *StreamStats) error {
	return src.EachRating(ctx, func(r ingestion.RatingRecord) error {
		if err := validator.ValidateRating(r); err != nil {
			c.reject("ratings", reasonInvalid, stats, "user_id", r.UserID, "player_id", r.PlayerID, "error", err)
			return nil
		}
		c.ratings.Insert(r.UserID, ratings.Rating{PlayerID: r.PlayerID, Score: r.Score})
		stats.Accepted++
		return nil
	})
}

func (c *Catalog) reject(stream, reason string, stats *StreamStats, attrs ...any) {
	switch reason {
	case reasonDuplicate:
		stats.Duplicate++
	default:
		stats.Invalid++
	}
	if c.metrics != nil {
		c.metrics.RecordsRejectedTotal.WithLabelValues(stream, reason).Inc()
	}
	c.logger.Warn("record rejected", append([]any{"stream", stream, "reason", reason}, attrs...)...)
}

// FoldRatings folds every loaded rating into its player's aggregate.
func (c *Catalog) FoldRatings(ctx context.Context) error {
	return c.advance(ctx, "fold", StagePlayersLoaded, StageRated, func(_ context.Context, span *tracing.Span) error {
		fold := c.ratings.Fold(c.players)
		c.mu.Lock()
		c.fold = fold
		c.mu.Unlock()
		span.Set("users", c.fold.Users)
		span.Set("applied", c.fold.Applied)
		span.Set("orphaned", c.fold.Orphaned)
		if c.fold.Orphaned > 0 {
			c.logger.Warn("ratings reference unknown players", "orphaned", c.fold.Orphaned)
		}
		c.logger.Info("ratings folded", "users", c.fold.Users, "applied", c.fold.Applied)
		return nil
	})
}

// BuildPositions ranks players with at least MinRatingCount ratings under
// each of their positions. The catalog is ready afterwards.
func (c *Catalog) BuildPositions(ctx context.Context) error {
	return c.advance(ctx, "positions", StageRated, StageReady, func(_ context.Context, span *tracing.Span) error {
		placement := c.positions.Build(c.players, c.cfg.MinRatingCount)
		c.mu.Lock()
		c.placement = placement
		c.mu.Unlock()
		span.Set("eligible", c.placement.Eligible)
		span.Set("excluded", c.placement.Excluded)
		span.Set("positions", c.placement.Positions)
		c.logger.Info("positions ranked",
			"eligible", c.placement.Eligible,
			"excluded", c.placement.Excluded,
			"positions", c.placement.Positions,
			"min_rating_count", c.cfg.MinRatingCount,
		)
		c.publishGauges()
		return nil
	})
}

func (c *Catalog) publishGauges() {
	if c.metrics == nil {
		return
	}
	for _, s := range c.indexStats() {
		c.metrics.IndexOccupancy.WithLabelValues(s.Name).Set(s.Occupancy)
		c.metrics.IndexItems.WithLabelValues(s.Name).Set(float64(s.Items))
	}
}

func (c *Catalog) ready() error {
	if stage := c.Stage(); stage != StageReady {
		return fmt.Errorf("catalog is at stage %s: %w", stage, apperrors.ErrNotReady)
	}
	return nil
}

// LookupPlayer returns a copy of the player with id.
func (c *Catalog) LookupPlayer(id uint32) (players.Player, bool, error) {
	if err := c.ready(); err != nil {
		return players.Player{}, false, err
	}
	p, ok := c.players.Lookup(id)
	if !ok {
		return players.Player{}, false, nil
	}
	out := *p
	out.Positions = slices.Clone(p.Positions)
	return out, true, nil
}

// Players resolves ids in order, skipping any that are not indexed.
func (c *Catalog) Players(ids []uint32) ([]players.Player, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	out := make([]players.Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.players.Lookup(id); ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// SearchByPrefix returns the IDs of every player whose name starts with
// text, case-insensitively, in trie order.
func (c *Catalog) SearchByPrefix(text string) ([]uint32, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	ids, err := c.names.Search(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, err)
	}
	return ids, nil
}

// SearchByTags returns the ascending IDs of players carrying every tag.
func (c *Catalog) SearchByTags(tagNames []string) ([]uint32, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.tags.Intersect(tagNames), nil
}

// TopRatingsForUser returns the user's best ratings, up to the configured K.
func (c *Catalog) TopRatingsForUser(userID uint32) ([]ratings.Rating, error) {
	return c.TopRatingsForUserK(userID, c.cfg.UserTopK)
}

func (c *Catalog) TopRatingsForUserK(userID uint32, k int) ([]ratings.Rating, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.ratings.TopK(userID, k), nil
}

// TopPlayersForPosition returns up to n player IDs ranked best first.
func (c *Catalog) TopPlayersForPosition(n int, position string) ([]uint32, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.positions.TopN(n, position), nil
}
