package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInternal, http.StatusTeapot, "brewing"), http.StatusTeapot},
		{"invalid helper", Invalid("bad id %q", "x"), http.StatusBadRequest},
		{"wrapped not ready", fmt.Errorf("query: %w", ErrNotReady), http.StatusServiceUnavailable},
		{"stage order", fmt.Errorf("fold: %w", ErrStageOrder), http.StatusConflict},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("outer: %w", Newf(ErrInvalidInput, http.StatusBadRequest, "n=%d", -1))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "outer: invalid input: n=-1", err.Error())
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "bad id \"x\"", PublicMessage(fmt.Errorf("parse: %w", Invalid("bad id %q", "x"))))
	assert.Equal(t, "catalog is at stage empty: catalog not ready",
		PublicMessage(fmt.Errorf("catalog is at stage empty: %w", ErrNotReady)))
	assert.Equal(t, "internal error", PublicMessage(fmt.Errorf("dial tcp: refused")))
}
