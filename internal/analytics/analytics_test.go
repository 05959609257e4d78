package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/kafka"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestCollectorPublishesTrackedEvents(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 8)
	c.Start(context.Background())

	c.Track(QueryEvent{Kind: "player", Query: "player LIO", Total: 3})
	c.Track(QueryEvent{Kind: "tags", Query: `tags "Dribbler"`})
	c.Close()

	require.Equal(t, 2, pub.count())
	assert.Equal(t, "query", pub.events[0].Key)
	assert.Equal(t, "player LIO", pub.events[0].Value.(QueryEvent).Query)
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(pub, 4)
	for i := 0; i < 3; i++ {
		c.Track(QueryEvent{Query: "q"})
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Start(ctx)
	c.Close()
	assert.Equal(t, 3, pub.count())
}

func TestCollectorDropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 1)
	c.Track(QueryEvent{Query: "kept"})
	c.Track(QueryEvent{Query: "dropped"})
	c.Start(context.Background())
	c.Close()
	require.Equal(t, 1, pub.count())
	assert.Equal(t, "kept", pub.events[0].Value.(QueryEvent).Query)
}

func TestAggregatorStats(t *testing.T) {
	a := NewAggregator()
	events := []QueryEvent{
		{Kind: "player", Query: "player LIO", Total: 2, LatencyUs: 10},
		{Kind: "player", Query: "player LIO", Total: 2, LatencyUs: 20, CacheHit: true},
		{Kind: "tags", Query: `tags "Nope"`, Total: 0, LatencyUs: 30},
		{Kind: "top", Query: "top10 ST", Total: 10, LatencyUs: 40},
	}
	for _, e := range events {
		a.Record(e)
	}

	s := a.Stats()
	assert.Equal(t, int64(4), s.TotalQueries)
	assert.Equal(t, map[string]int64{"player": 2, "tags": 1, "top": 1}, s.ByKind)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(3), s.CacheMisses)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.InDelta(t, 25.0, s.AvgLatencyUs, 1e-9)
	assert.Equal(t, int64(30), s.P50LatencyUs)
	assert.Equal(t, int64(40), s.P99LatencyUs)
	require.NotEmpty(t, s.TopQueries)
	assert.Equal(t, QueryCount{Query: "player LIO", Count: 2}, s.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: `tags "Nope"`, Count: 1}}, s.ZeroResultQueries)
}

func TestAggregatorEmpty(t *testing.T) {
	s := NewAggregator().Stats()
	assert.Zero(t, s.TotalQueries)
	assert.Empty(t, s.TopQueries)
	assert.Zero(t, s.P50LatencyUs)
}

func TestAggregatorQueriesPerMinute(t *testing.T) {
	a := NewAggregator()
	a.now = func() time.Time { return a.startTime.Add(2 * time.Minute) }
	for i := 0; i < 10; i++ {
		a.Record(QueryEvent{Query: "id 1", Total: 1})
	}
	assert.InDelta(t, 5.0, a.Stats().QueriesPerMinute, 1e-9)
}

func TestHandleEventDecodesJSON(t *testing.T) {
	a := NewAggregator()
	handle := a.HandleEvent()

	body, err := json.Marshal(QueryEvent{Kind: "user", Query: "user 7", Total: 4})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), []byte("query"), body))
	require.NoError(t, handle(context.Background(), []byte("query"), []byte("{not json")))

	s := a.Stats()
	assert.Equal(t, int64(1), s.TotalQueries)
	assert.Equal(t, int64(1), s.ByKind["user"])
}

func TestAggregatorAsPublisher(t *testing.T) {
	a := NewAggregator()
	c := NewCollector(a, 4)
	c.Start(context.Background())
	c.Track(QueryEvent{Kind: "id", Query: "id 1", Total: 1})
	c.Close()
	assert.Equal(t, int64(1), a.Stats().TotalQueries)
}

func TestHandlerServesStats(t *testing.T) {
	a := NewAggregator()
	a.Record(QueryEvent{Kind: "id", Query: "id 1", Total: 1})

	rec := httptest.NewRecorder()
	NewHandler(a).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.TotalQueries)
}

func TestHandlerTopParam(t *testing.T) {
	a := NewAggregator()
	for _, q := range []string{"id 1", "id 2", "id 3"} {
		a.Record(QueryEvent{Kind: "id", Query: q, Total: 1})
	}
	h := NewHandler(a)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []QueryCount{{Query: "id 1", Count: 1}, {Query: "id 2", Count: 1}}, got.TopQueries)

	rec = httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
