package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Spawner holds the metrics shared by every spawn controller, labelled by
// spawner name.
type Spawner struct {
	BatchesSpawned  *prometheus.CounterVec
	BatchesRetired  *prometheus.CounterVec
	BatchesAborted  *prometheus.CounterVec
	BatchesTornDown *prometheus.CounterVec
	EntitiesSpawned *prometheus.CounterVec
	HandlePolls     *prometheus.CounterVec
	LiveHandles     *prometheus.GaugeVec
	ArenaBytes      *prometheus.GaugeVec
	DrainTicks      *prometheus.HistogramVec
}

func NewSpawner(r prometheus.Registerer) *Spawner {
	return &Spawner{
		BatchesSpawned: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "fallspawn_batches_spawned_total",
			Help: "Total number of batches spawned.",
		}, []string{"spawner"}),
		BatchesRetired: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "fallspawn_batches_retired_total",
			Help: "Total number of batches fully drained and released.",
		}, []string{"spawner"}),
		BatchesAborted: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "fallspawn_batches_aborted_total",
			Help: "Total number of batches aborted while spawning.",
		}, []string{"spawner", "reason"}),
		BatchesTornDown: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "fallspawn_batches_torn_down_total",
			Help: "Total number of live batches destroyed by a forced teardown.",
		}, []string{"spawner"}),
		EntitiesSpawned: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "fallspawn_entities_spawned_total",
			Help: "Total number of entities instantiated by spawners.",
		}, []string{"spawner"}),
		HandlePolls: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "fallspawn_handle_polls_total",
			Help: "Total number of tagged-entity queries issued while draining.",
		}, []string{"spawner"}),
		LiveHandles: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "fallspawn_live_handles",
			Help: "Handles in the current batch after the last refresh.",
		}, []string{"spawner"}),
		ArenaBytes: promauto.With(r).NewGaugeVec(prometheus.GaugeOpts{
			Name: "fallspawn_arena_bytes",
			Help: "Capacity of the live batch arena, 0 when idle.",
		}, []string{"spawner"}),
		DrainTicks: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fallspawn_drain_ticks",
			Help:    "Ticks a batch spent draining before its arena was released.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"spawner"}),
	}
}

// Pool holds free-list pool metrics.
type Pool struct {
	Acquired *prometheus.CounterVec
	Released prometheus.Counter
	Free     prometheus.Gauge
}

func NewPool(r prometheus.Registerer, name string) *Pool {
	labels := prometheus.Labels{"pool": name}
	return &Pool{
		Acquired: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name:        "fallspawn_pool_acquired_total",
			Help:        "Handles handed out by the pool, by origin.",
			ConstLabels: labels,
		}, []string{"origin"}),
		Released: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name:        "fallspawn_pool_released_total",
			Help:        "Handles returned to the pool.",
			ConstLabels: labels,
		}),
		Free: promauto.With(r).NewGauge(prometheus.GaugeOpts{
			Name:        "fallspawn_pool_free",
			Help:        "Handles waiting on the free list.",
			ConstLabels: labels,
		}),
	}
}
