// Package executor runs parsed queries against the catalog and resolves the
// resulting player IDs into display rows.
package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/analytics"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/players"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/index/ratings"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/parser"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
	apperrors "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/errors"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/metrics"
)

// PlayerView is one player row of a result.
type PlayerView struct {
	ID          uint32   `json:"id"`
	Name        string   `json:"name"`
	Positions   []string `json:"positions"`
	Rating      float64  `json:"rating"`
	RatingCount uint32   `json:"count"`
}

// RatingView is a player row together with the score one user gave it.
type RatingView struct {
	PlayerView
	UserRating float64 `json:"user_rating"`
}

// Result is the answer to one query. Total counts every match, while
// Players may be cut to the configured maximum.
type Result struct {
	Query   string         `json:"query"`
	Kind    parser.Kind    `json:"kind"`
	Total   int            `json:"total"`
	Players []PlayerView   `json:"players,omitempty"`
	Ratings []RatingView   `json:"ratings,omitempty"`
	Stats   *catalog.Stats `json:"stats,omitempty"`
}

// Rows returns the number of rows in r.
func (r *Result) Rows() int {
	return len(r.Players) + len(r.Ratings)
}

// Catalog is the read side of *catalog.Catalog.
type Catalog interface {
	LookupPlayer(id uint32) (players.Player, bool, error)
	Players(ids []uint32) ([]players.Player, error)
	SearchByPrefix(text string) ([]uint32, error)
	SearchByTags(tags []string) ([]uint32, error)
	TopRatingsForUser(userID uint32) ([]ratings.Rating, error)
	TopPlayersForPosition(n int, position string) ([]uint32, error)
	Stats() catalog.Stats
}

// ResultCache memoizes results by canonical query string.
type ResultCache interface {
	GetOrCompute(ctx context.Context, key string, compute func() (*Result, error)) (*Result, bool, error)
}

// Tracker receives one analytics event per executed query.
type Tracker interface {
	Track(event analytics.QueryEvent)
}

type Option func(*Executor)

func WithCache(c ResultCache) Option {
	return func(e *Executor) { e.cache = c }
}

func WithTracker(t Tracker) Option {
	return func(e *Executor) { e.tracker = t }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

type Executor struct {
	catalog Catalog
	cfg     config.SearchConfig
	cache   ResultCache
	tracker Tracker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(cat Catalog, cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		catalog: cat,
		cfg:     cfg,
		logger:  slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs q. Stats queries bypass the cache; exit is rejected since it
// only means something to an interactive session.
func (e *Executor) Execute(ctx context.Context, q *parser.Query) (*Result, error) {
	if q.Kind == parser.KindExit {
		return nil, apperrors.Invalid("exit is only valid in the console")
	}
	start := time.Now()
	compute := func() (*Result, error) { return e.run(q) }

	var (
		result      *Result
		err         error
		cacheHit    bool
		cacheStatus = "none"
	)
	if e.cache != nil && q.Kind != parser.KindStats {
		result, cacheHit, err = e.cache.GetOrCompute(ctx, q.String(), compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		result, err = compute()
	}
	elapsed := time.Since(start)
	log := logger.FromContext(ctx)

	if err != nil {
		e.observe(q.Kind, "error", cacheStatus, elapsed, 0)
		log.Warn("query failed", "query", q.Raw, "error", err)
		return nil, err
	}

	outcome := "hit"
	if result.Total == 0 {
		outcome = "zero_result"
	}
	e.observe(q.Kind, outcome, cacheStatus, elapsed, result.Rows())
	log.Debug("query executed",
		"query", q.String(),
		"total", result.Total,
		"returned", result.Rows(),
		"cache", cacheStatus,
		"latency_us", elapsed.Microseconds(),
	)
	if e.tracker != nil && q.Kind != parser.KindStats {
		e.tracker.Track(analytics.QueryEvent{
			Kind:      string(q.Kind),
			Query:     q.String(),
			Total:     result.Total,
			Returned:  result.Rows(),
			LatencyUs: elapsed.Microseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		})
	}
	return result, nil
}

func (e *Executor) observe(kind parser.Kind, outcome, cacheStatus string, elapsed time.Duration, rows int) {
	if e.metrics == nil {
		return
	}
	e.metrics.QueriesTotal.WithLabelValues(string(kind), outcome).Inc()
	e.metrics.QueryLatency.WithLabelValues(string(kind), cacheStatus).Observe(elapsed.Seconds())
	e.metrics.QueryResultsCount.WithLabelValues(string(kind)).Observe(float64(rows))
	switch cacheStatus {
	case "hit":
		e.metrics.CacheHitsTotal.Inc()
	case "miss":
		e.metrics.CacheMissesTotal.Inc()
	}
}

func (e *Executor) run(q *parser.Query) (*Result, error) {
	result := &Result{Query: q.String(), Kind: q.Kind}
	var (
		ids []uint32
		err error
	)
	switch q.Kind {
	case parser.KindPlayer:
		ids, err = e.catalog.SearchByPrefix(q.Prefix)
	case parser.KindTags:
		ids, err = e.catalog.SearchByTags(q.Tags)
	case parser.KindTop:
		n := q.N
		if n == 0 {
			n = e.cfg.DefaultTopN
		}
		ids, err = e.catalog.TopPlayersForPosition(min(n, e.cfg.MaxResults), q.Position)
	case parser.KindID:
		p, ok, lookupErr := e.catalog.LookupPlayer(q.ID)
		if lookupErr != nil {
			return nil, lookupErr
		}
		result.Players = []PlayerView{}
		if ok {
			result.Players = append(result.Players, view(p))
			result.Total = 1
		}
		return result, nil
	case parser.KindUser:
		return e.userRatings(q.ID, result)
	case parser.KindStats:
		stats := e.catalog.Stats()
		result.Stats = &stats
		result.Total = len(stats.Indexes)
		return result, nil
	default:
		return nil, apperrors.Invalid("unsupported query kind %q", q.Kind)
	}
	if err != nil {
		return nil, err
	}

	result.Total = len(ids)
	ids = ids[:min(len(ids), e.cfg.MaxResults)]
	found, err := e.catalog.Players(ids)
	if err != nil {
		return nil, err
	}
	result.Players = make([]PlayerView, len(found))
	for i, p := range found {
		result.Players[i] = view(p)
	}
	return result, nil
}

func (e *Executor) userRatings(userID uint32, result *Result) (*Result, error) {
	top, err := e.catalog.TopRatingsForUser(userID)
	if err != nil {
		return nil, err
	}
	result.Total = len(top)
	result.Ratings = make([]RatingView, 0, len(top))
	for _, r := range top {
		row := RatingView{PlayerView: PlayerView{ID: r.PlayerID, Positions: []string{}}, UserRating: r.Score}
		if p, ok, err := e.catalog.LookupPlayer(r.PlayerID); err != nil {
			return nil, err
		} else if ok {
			row.PlayerView = view(p)
		}
		result.Ratings = append(result.Ratings, row)
	}
	return result, nil
}

func view(p players.Player) PlayerView {
	positions := p.Positions
	if positions == nil {
		positions = []string{}
	}
	return PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		Positions:   positions,
		Rating:      p.Rating,
		RatingCount: p.RatingCount,
	}
}
