package spawn

import (
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/fallspawn/internal/core/arena"
	"github.com/l1jgo/fallspawn/internal/core/ecs"
	"github.com/l1jgo/fallspawn/internal/core/event"
	"github.com/l1jgo/fallspawn/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type placement struct {
	h    ecs.EntityID
	x, y float32
}

// fakeScene is an in-memory Scene. Destroy takes effect immediately.
type fakeScene struct {
	next         ecs.EntityID
	live         map[ecs.EntityID]string
	order        []ecs.EntityID
	instantiated int
	placements   []placement
	destroyed    []ecs.EntityID
	queries      int
	failAfter    int // fail Instantiate once this many succeeded; <0 never
}

func newFakeScene() *fakeScene {
	return &fakeScene{live: map[ecs.EntityID]string{}, failAfter: -1}
}

var errSceneFull = errors.New("scene full")

func (s *fakeScene) Instantiate(kind string) (ecs.EntityID, error) {
	if s.failAfter >= 0 && s.instantiated >= s.failAfter {
		return 0, errSceneFull
	}
	s.instantiated++
	s.next++
	s.live[s.next] = kind
	s.order = append(s.order, s.next)
	return s.next, nil
}

func (s *fakeScene) Place(h ecs.EntityID, x, y float32) {
	s.placements = append(s.placements, placement{h: h, x: x, y: y})
}

func (s *fakeScene) Destroy(h ecs.EntityID) {
	s.destroyed = append(s.destroyed, h)
	delete(s.live, h)
}

func (s *fakeScene) QueryTagged(kind string) []ecs.EntityID {
	s.queries++
	var out []ecs.EntityID
	for _, h := range s.order {
		if k, ok := s.live[h]; ok && k == kind {
			out = append(out, h)
		}
	}
	return out
}

// kill removes an entity behind the controller's back.
func (s *fakeScene) kill(h ecs.EntityID) { delete(s.live, h) }

func newTestController(t *testing.T, cfg Config, scene *fakeScene) *Controller {
	t.Helper()
	c, err := NewController(cfg, Deps{Scene: scene, Log: zap.NewNop()})
	require.NoError(t, err)
	return c
}

func spawnNow(t *testing.T, c *Controller) {
	t.Helper()
	c.Update(c.Config().Interval)
	require.Equal(t, StateActive, c.State())
}

func TestTimerThreshold(t *testing.T) {
	scene := newFakeScene()
	c := newTestController(t, DefaultConfig(), scene)

	c.Update(400 * time.Millisecond)
	c.Update(500 * time.Millisecond)
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 900*time.Millisecond, c.Timer())
	assert.Zero(t, scene.instantiated)

	c.Update(100 * time.Millisecond)
	assert.Equal(t, StateActive, c.State())
	assert.True(t, c.Spawned())
	assert.Zero(t, c.Timer(), "timer resets once the batch is out")
}

func TestBatchConservation(t *testing.T) {
	scene := newFakeScene()
	cfg := DefaultConfig()
	c := newTestController(t, cfg, scene)
	spawnNow(t, c)

	assert.Equal(t, 6, scene.instantiated)
	require.Len(t, scene.placements, 6)
	want := [][2]float32{{-5, 5}, {-3, 5}, {-1, 5}, {1, 5}, {3, 5}, {5, 5}}
	for i, p := range scene.placements {
		assert.Equal(t, scene.order[i], p.h, "placement %d goes to the i-th entity", i)
		assert.Equal(t, want[i][0], p.x)
		assert.Equal(t, want[i][1], p.y)
	}
	assert.Equal(t, 6, c.Handles().Len())
	assert.Equal(t, 48, c.ArenaSize())
	assert.Equal(t, uint64(1), c.Seq())
}

func TestEveryElementHasItsOwnRecord(t *testing.T) {
	scene := newFakeScene()
	c := newTestController(t, DefaultConfig(), scene)
	spawnNow(t, c)

	records := c.Records()
	require.Len(t, records, 6)
	for i, r := range records {
		assert.Equal(t, float32(-5+2*i), r.StartX)
		assert.Equal(t, float32(5), r.StartY)
	}
}

func TestDrainKeepsArenaWhileHandlesRemain(t *testing.T) {
	scene := newFakeScene()
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	c := newTestController(t, cfg, scene)
	spawnNow(t, c)

	scene.kill(scene.order[0])
	scene.kill(scene.order[1])
	c.Update(16 * time.Millisecond)

	assert.Equal(t, StateDraining, c.State())
	assert.Equal(t, 1, c.Handles().Len())
	assert.True(t, c.Spawned())
	assert.NotZero(t, c.ArenaSize(), "arena stays while any handle is live")

	c.Update(16 * time.Millisecond)
	assert.Equal(t, StateDraining, c.State())
}

func TestDrainReleasesOnEmpty(t *testing.T) {
	scene := newFakeScene()
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	c := newTestController(t, cfg, scene)
	spawnNow(t, c)
	records := c.Records()

	for _, h := range scene.order {
		scene.kill(h)
	}
	c.Update(16 * time.Millisecond)

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Spawned())
	assert.Zero(t, c.ArenaSize())
	assert.Nil(t, c.Records())
	for i := range records {
		assert.True(t, records[i].Disposed(), "record %d must read as zero after retirement", i)
	}
	assert.Empty(t, scene.destroyed, "normal retirement never destroys entities")
}

func TestDrainPollsEveryTick(t *testing.T) {
	scene := newFakeScene()
	c := newTestController(t, DefaultConfig(), scene)
	spawnNow(t, c)
	before := scene.queries

	for i := 0; i < 5; i++ {
		c.Update(16 * time.Millisecond)
	}
	assert.Equal(t, before+5, scene.queries)
	assert.Equal(t, 6, c.Handles().Polls())
}

func TestNextBatchOnlyAfterRetirement(t *testing.T) {
	scene := newFakeScene()
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	c := newTestController(t, cfg, scene)
	spawnNow(t, c)

	for i := 0; i < 10; i++ {
		c.Update(time.Second)
	}
	assert.Equal(t, 2, scene.instantiated, "no second batch while the first is live")

	for _, h := range scene.order {
		scene.kill(h)
	}
	c.Update(time.Second)
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, c.Timer(), "time spent draining does not count toward the next batch")

	c.Update(time.Second)
	assert.Equal(t, StateActive, c.State())
	assert.Equal(t, 4, scene.instantiated)
	assert.Equal(t, uint64(2), c.Seq())
}

func TestTeardownWhileActive(t *testing.T) {
	scene := newFakeScene()
	cfg := DefaultConfig()
	cfg.BatchSize = 4
	c := newTestController(t, cfg, scene)
	spawnNow(t, c)
	records := c.Records()

	c.Teardown()

	assert.ElementsMatch(t, scene.order, scene.destroyed)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Spawned())
	assert.Zero(t, c.ArenaSize())
	assert.True(t, c.Handles().Empty())
	for i := range records {
		assert.True(t, records[i].Disposed())
	}

	c.Teardown()
	assert.Len(t, scene.destroyed, 4, "second teardown is a no-op")
}

func TestTeardownWhileIdle(t *testing.T) {
	scene := newFakeScene()
	c := newTestController(t, DefaultConfig(), scene)
	c.Update(300 * time.Millisecond)

	c.Teardown()
	assert.Empty(t, scene.destroyed)
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, c.Timer())
}

func TestInstantiateFailureAbortsBatch(t *testing.T) {
	scene := newFakeScene()
	scene.failAfter = 3
	core, logs := observer.New(zapcore.ErrorLevel)
	bus := event.NewBus()
	var aborted []event.BatchAborted
	event.Subscribe(bus, func(ev event.BatchAborted) { aborted = append(aborted, ev) })

	c, err := NewController(DefaultConfig(), Deps{Scene: scene, Bus: bus, Log: zap.New(core)})
	require.NoError(t, err)
	c.Update(time.Second)

	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Spawned())
	assert.Zero(t, c.ArenaSize())
	assert.Empty(t, scene.placements)
	assert.Len(t, scene.destroyed, 3, "partially created entities are destroyed")
	assert.Equal(t, 1, logs.FilterMessage("batch aborted").Len())

	bus.Drain()
	require.Len(t, aborted, 1)
	assert.Contains(t, aborted[0].Reason, errSceneFull.Error())
}

func TestArenaFailureAbortsBatch(t *testing.T) {
	scene := newFakeScene()
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.Alignment = arena.MaxCapacity * 2
	c := newTestController(t, cfg, scene)

	c.Update(time.Second)
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Spawned())
	assert.Zero(t, c.ArenaSize())
	assert.Len(t, scene.destroyed, 2)
	assert.Empty(t, scene.placements)
}

func TestAbortReason(t *testing.T) {
	assert.Equal(t, "exhausted", abortReason(arena.ErrExhausted))
	assert.Equal(t, "allocation", abortReason(arena.ErrAllocation))
	assert.Equal(t, "released", abortReason(arena.ErrReleased))
	assert.Equal(t, "instantiate", abortReason(errSceneFull))
}

func TestEventsAndMetrics(t *testing.T) {
	scene := newFakeScene()
	bus := event.NewBus()
	reg := prometheus.NewRegistry()
	m := metrics.NewSpawner(reg)
	var spawned []event.BatchSpawned
	var retired []event.BatchRetired
	event.Subscribe(bus, func(ev event.BatchSpawned) { spawned = append(spawned, ev) })
	event.Subscribe(bus, func(ev event.BatchRetired) { retired = append(retired, ev) })

	cfg := DefaultConfig()
	cfg.BatchSize = 2
	c, err := NewController(cfg, Deps{Scene: scene, Bus: bus, Metrics: m})
	require.NoError(t, err)
	c.ResumeFrom(41)

	c.Update(time.Second)
	c.Update(time.Millisecond)
	for _, h := range scene.order {
		scene.kill(h)
	}
	c.Update(time.Millisecond)
	bus.Drain()

	require.Len(t, spawned, 1)
	assert.Equal(t, uint64(42), spawned[0].Seq)
	assert.Equal(t, 2, spawned[0].Size)
	assert.Equal(t, 16, spawned[0].ArenaBytes)
	require.Len(t, retired, 1)
	assert.Equal(t, 2, retired[0].DrainTicks)
	assert.Equal(t, 2, retired[0].Polls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesSpawned.WithLabelValues("falling")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EntitiesSpawned.WithLabelValues("falling")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesRetired.WithLabelValues("falling")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ArenaBytes.WithLabelValues("falling")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HandlePolls.WithLabelValues("falling")))
}

type fixedPlacer struct{}

func (fixedPlacer) Position(i int) (float32, float32) { return float32(i * 10), -1 }

func TestCustomPlacer(t *testing.T) {
	scene := newFakeScene()
	cfg := DefaultConfig()
	cfg.BatchSize = 3
	c, err := NewController(cfg, Deps{Scene: scene, Placer: fixedPlacer{}})
	require.NoError(t, err)
	spawnNow(t, c)

	require.Len(t, scene.placements, 3)
	assert.Equal(t, placement{h: scene.order[2], x: 20, y: -1}, scene.placements[2])
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"empty kind", func(c *Config) { c.Kind = "" }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"bad alignment", func(c *Config) { c.Alignment = 24 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := NewController(cfg, Deps{Scene: newFakeScene()})
			assert.Error(t, err)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())

	_, err := NewController(DefaultConfig(), Deps{})
	assert.Error(t, err, "scene is required")
}

func TestIndependentArenasPerController(t *testing.T) {
	scene := newFakeScene()
	a := DefaultConfig()
	b := DefaultConfig()
	b.Name, b.Kind, b.BatchSize = "rain", "rain", 4
	ca := newTestController(t, a, scene)
	cb := newTestController(t, b, scene)
	spawnNow(t, ca)
	spawnNow(t, cb)

	assert.Equal(t, 6, ca.Handles().Len())
	assert.Equal(t, 4, cb.Handles().Len())

	ca.Teardown()
	assert.Equal(t, StateActive, cb.State())
	assert.Equal(t, 32, cb.ArenaSize())
	cb.Update(time.Millisecond)
	assert.Equal(t, 4, cb.Handles().Len())
}
