package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the first sample value of every family in reg.
func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]float64, len(families))
	for _, f := range families {
		m := f.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			out[f.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			out[f.GetName()] = m.GetGauge().GetValue()
		}
	}
	return out
}

func TestNewWithRegistryRegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.QueriesTotal.WithLabelValues("prefix", "hit").Inc()
	m.QueriesTotal.WithLabelValues("prefix", "hit").Inc()
	m.IndexOccupancy.WithLabelValues("players").Set(0.5)
	m.CacheHitsTotal.Inc()

	values := gathered(t, reg)
	assert.Equal(t, 2.0, values["fifadex_queries_total"])
	assert.Equal(t, 0.5, values["fifadex_index_occupancy_ratio"])
	assert.Equal(t, 1.0, values["cache_hits_total"])
	assert.Equal(t, 0.0, values["cache_misses_total"])
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegistry(prometheus.NewRegistry())
		NewWithRegistry(prometheus.NewRegistry())
	})
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)
	m.RecordsRejectedTotal.WithLabelValues("players", "duplicate").Inc()

	srv := httptest.NewServer(newMux(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `fifadex_records_rejected_total{reason="duplicate",stream="players"} 1`)

	resp, err = http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
