package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartBuildsTree(t *testing.T) {
	ctx, root := Start(context.Background(), "build")
	_, load := Start(ctx, "load")
	load.End()
	_, fold := Start(ctx, "fold")
	fold.Set("applied", 10)
	fold.End()
	root.End()

	require.Len(t, root.Children, 2)
	assert.Equal(t, root.TraceID, load.TraceID)
	assert.Equal(t, root.TraceID, fold.TraceID)
	assert.Len(t, root.TraceID, 16)

	var names []string
	var depths []int
	root.Walk(func(depth int, s *Span) {
		names = append(names, s.Name)
		depths = append(depths, depth)
	})
	assert.Equal(t, []string{"build", "load", "fold"}, names)
	assert.Equal(t, []int{0, 1, 1}, depths)
}

func TestRootsGetDistinctTraceIDs(t *testing.T) {
	_, a := Start(context.Background(), "a")
	_, b := Start(context.Background(), "b")
	assert.NotEqual(t, a.TraceID, b.TraceID)
}

func TestAttrReturnsLatest(t *testing.T) {
	_, s := Start(context.Background(), "s")
	s.Set("n", 1)
	s.Set("n", 2)
	v, ok := s.Attr("n")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = s.Attr("missing")
	assert.False(t, ok)
}

func TestLogWritesEverySpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx, root := Start(context.Background(), "build")
	_, child := Start(ctx, "positions")
	child.Set("eligible", 3)
	child.End()
	root.End()

	root.Log(logger)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "span=positions")
	assert.Contains(t, out, "eligible=3")
}

func TestFromContextEmpty(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
