// Package tracing records timed span trees carried through a context. A
// catalog build opens one root span and a child per stage; the finished tree
// is logged through slog and walked by the stats command.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is a timed operation. Children are appended by Start when a span is
// already present in the context.
type Span struct {
	Name      string
	TraceID   string
	StartTime time.Time
	Duration  time.Duration
	Children  []*Span

	mu    sync.Mutex
	attrs []any
}

// Start opens a span named name. When ctx already carries a span the new one
// becomes its child and shares its trace id; otherwise a root span with a
// fresh trace id is created.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{Name: name, StartTime: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = newTraceID()
	}
	return context.WithValue(ctx, spanKey, span), span
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

func (s *Span) End() {
	s.Duration = time.Since(s.StartTime)
}

// Set attaches a key-value attribute. Later values for the same key win when
// the span is logged.
func (s *Span) Set(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// Attr returns the last value set for key.
func (s *Span) Attr(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.attrs) - 2; i >= 0; i -= 2 {
		if s.attrs[i] == key {
			return s.attrs[i+1], true
		}
	}
	return nil, false
}

// Walk visits the tree depth first, parents before children.
func (s *Span) Walk(fn func(depth int, span *Span)) {
	s.walk(0, fn)
}

func (s *Span) walk(depth int, fn func(int, *Span)) {
	fn(depth, s)
	s.mu.Lock()
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	for _, c := range children {
		c.walk(depth+1, fn)
	}
}

// Log writes one record per span in the tree.
func (s *Span) Log(logger *slog.Logger) {
	s.Walk(func(depth int, span *Span) {
		span.mu.Lock()
		attrs := append([]any{
			"trace_id", span.TraceID,
			"span", span.Name,
			"duration_ms", span.Duration.Milliseconds(),
			"depth", depth,
		}, span.attrs...)
		span.mu.Unlock()
		logger.Info("span", attrs...)
	})
}

func newTraceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(b[:])
}
