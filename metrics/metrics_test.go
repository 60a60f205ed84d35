package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.CacheHit("margin")
	p.CacheHit("margin")
	p.CacheMiss("margin")
	p.AllocationPass(0)
	p.AllocationPass(2)
	p.Relation("BELOW")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.cacheHits.WithLabelValues("margin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.cacheMisses.WithLabelValues("margin")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.passes))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.adjusted))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.relations.WithLabelValues("BELOW")))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestPrometheusDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)

	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestNopSatisfiesRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.CacheHit("x")
	r.AllocationPass(1)
}
