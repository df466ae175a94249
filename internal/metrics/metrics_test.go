package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawnerRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSpawner(reg)

	m.BatchesSpawned.WithLabelValues("player").Inc()
	m.BatchesAborted.WithLabelValues("player", "exhausted").Inc()
	m.DrainTicks.WithLabelValues("player").Observe(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesSpawned.WithLabelValues("player")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BatchesAborted))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DrainTicks))

	assert.Panics(t, func() { NewSpawner(reg) }, "duplicate registration")
}

func TestPoolConstLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPool(reg, "collectible")
	p.Acquired.WithLabelValues("created").Inc()
	p.Released.Inc()
	p.Free.Set(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
	for _, f := range families {
		for _, m := range f.GetMetric() {
			found := false
			for _, l := range m.GetLabel() {
				if l.GetName() == "pool" && l.GetValue() == "collectible" {
					found = true
				}
			}
			assert.True(t, found, "%s missing pool label", f.GetName())
		}
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(p.Free))
}
