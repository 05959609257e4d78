package executor_test

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/analytics"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/catalog/catalogtest"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/executor"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/parser"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/config"
	apperrors "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/errors"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/logger"
	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/metrics"
)

var searchCfg = config.SearchConfig{DefaultTopN: 1, MaxResults: 3}

type recordingTracker struct {
	mu     sync.Mutex
	events []analytics.QueryEvent
}

func (r *recordingTracker) Track(e analytics.QueryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// mapCache is a ResultCache without expiry or singleflight.
type mapCache struct {
	entries map[string]*executor.Result
}

func (m *mapCache) GetOrCompute(_ context.Context, key string, compute func() (*executor.Result, error)) (*executor.Result, bool, error) {
	if r, ok := m.entries[key]; ok {
		return r, true, nil
	}
	r, err := compute()
	if err != nil {
		return nil, false, err
	}
	m.entries[key] = r
	return r, false, nil
}

func run(t *testing.T, e *executor.Executor, line string) *executor.Result {
	t.Helper()
	q, err := parser.Parse(line)
	require.NoError(t, err)
	res, err := e.Execute(context.Background(), q)
	require.NoError(t, err)
	return res
}

func TestExecutePlayerPrefix(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)

	res := run(t, e, "player lionel")
	assert.Equal(t, parser.KindPlayer, res.Kind)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Players, 1)
	assert.Equal(t, executor.PlayerView{
		ID:          catalogtest.Messi,
		Name:        "Lionel Messi",
		Positions:   []string{"RW", "ST", "CF"},
		Rating:      4.5,
		RatingCount: 2,
	}, res.Players[0])
}

func TestExecuteTruncatesToMaxResults(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)
	res := run(t, e, "player")
	assert.Equal(t, 4, res.Total)
	assert.Len(t, res.Players, 3)
}

func TestExecuteID(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)

	res := run(t, e, "id 4")
	require.Len(t, res.Players, 1)
	assert.Equal(t, "Kevin De Bruyne", res.Players[0].Name)

	res = run(t, e, "id 404")
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Players)
}

func TestExecuteUser(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)

	res := run(t, e, "user 12")
	require.Len(t, res.Ratings, 2)
	assert.Equal(t, catalogtest.Neymar, res.Ratings[0].ID)
	assert.Equal(t, "Neymar da Silva Santos Jr.", res.Ratings[0].Name)
	assert.Equal(t, 4.5, res.Ratings[0].UserRating)
	assert.Equal(t, uint32(99), res.Ratings[1].ID)
	assert.Empty(t, res.Ratings[1].Name)
}

func TestExecuteTop(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)

	res := run(t, e, "top10 st")
	require.Len(t, res.Players, 2)
	assert.Equal(t, catalogtest.Messi, res.Players[0].ID)
	assert.Equal(t, catalogtest.Ronaldo, res.Players[1].ID)

	res = run(t, e, "top LW")
	require.Len(t, res.Players, 1)
	assert.Equal(t, catalogtest.Ronaldo, res.Players[0].ID)
}

func TestExecuteTags(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)

	res := run(t, e, "tags 'Dribbler' 'Playmaker'")
	require.Len(t, res.Players, 2)
	assert.Equal(t, catalogtest.Messi, res.Players[0].ID)
	assert.Equal(t, catalogtest.Neymar, res.Players[1].ID)

	res = run(t, e, "tags Dribbler Unknown")
	assert.Zero(t, res.Total)
}

func TestExecuteStats(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)
	res := run(t, e, "stats")
	require.NotNil(t, res.Stats)
	assert.Equal(t, "ready", res.Stats.Stage)
}

func TestExecuteErrors(t *testing.T) {
	e := executor.New(catalogtest.NewReady(t), searchCfg)

	_, err := e.Execute(context.Background(), &parser.Query{Kind: parser.KindExit})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = e.Execute(context.Background(), &parser.Query{Kind: parser.KindPlayer, Prefix: "#"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	notReady, err := catalog.New(catalogtest.Config())
	require.NoError(t, err)
	_, err = executor.New(notReady, searchCfg).Execute(context.Background(), &parser.Query{Kind: parser.KindID, ID: 1})
	assert.ErrorIs(t, err, apperrors.ErrNotReady)
}

func TestExecuteTracksAndCaches(t *testing.T) {
	tracker := &recordingTracker{}
	cache := &mapCache{entries: map[string]*executor.Result{}}
	reg := prometheus.NewRegistry()
	e := executor.New(catalogtest.NewReady(t), searchCfg,
		executor.WithTracker(tracker),
		executor.WithCache(cache),
		executor.WithMetrics(metrics.NewWithRegistry(reg)),
	)

	ctx := logger.WithRequestID(context.Background(), "req-1")
	q, err := parser.Parse("player LIONEL")
	require.NoError(t, err)
	_, err = e.Execute(ctx, q)
	require.NoError(t, err)
	q2, err := parser.Parse("PLAYER lionel")
	require.NoError(t, err)
	_, err = e.Execute(ctx, q2)
	require.NoError(t, err)
	_ = run(t, e, "stats")

	require.Len(t, tracker.events, 2)
	assert.False(t, tracker.events[0].CacheHit)
	assert.True(t, tracker.events[1].CacheHit)
	assert.Equal(t, "player LIONEL", tracker.events[0].Query)
	assert.Equal(t, "req-1", tracker.events[0].RequestID)
	assert.Equal(t, 1, tracker.events[0].Total)
	assert.Len(t, cache.entries, 1)

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				counts[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, counts["fifadex_queries_total"])
	assert.Equal(t, 1.0, counts["cache_hits_total"])
	assert.Equal(t, 1.0, counts["cache_misses_total"])
}
