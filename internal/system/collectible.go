package system

import (
	"time"

	"github.com/l1jgo/fallspawn/internal/core/ecs"
	coresys "github.com/l1jgo/fallspawn/internal/core/system"
	"github.com/l1jgo/fallspawn/internal/metrics"
	"github.com/l1jgo/fallspawn/internal/pool"
	"github.com/l1jgo/fallspawn/internal/world"
	"go.uber.org/zap"
)

// CollectibleConfig configures the pooled collectible drops.
type CollectibleConfig struct {
	Kind     string
	Interval time.Duration
	SpawnY   float32
	XMin     float32
	XMax     float32
}

// CollectibleSystem drops one collectible every Interval and recycles it
// through a free list once it reaches the floor, instead of destroying it.
// Phase 2 (Spawn).
type CollectibleSystem struct {
	cfg     CollectibleConfig
	scene   *world.Scene
	pool    *pool.FreeList[ecs.EntityID]
	metrics *metrics.Pool
	log     *zap.Logger

	timer  time.Duration
	active []ecs.EntityID
	owned  []ecs.EntityID
}

func NewCollectibleSystem(cfg CollectibleConfig, scene *world.Scene, m *metrics.Pool, log *zap.Logger) *CollectibleSystem {
	s := &CollectibleSystem{
		cfg:     cfg,
		scene:   scene,
		metrics: m,
		log:     log.With(zap.String("pool", cfg.Kind)),
	}
	s.pool = pool.NewFreeList(s.create, scene.SetActive)
	return s
}

func (s *CollectibleSystem) create() (ecs.EntityID, error) {
	h, err := s.scene.Instantiate(s.cfg.Kind)
	if err != nil {
		return 0, err
	}
	s.scene.SetDespawn(h, false)
	s.owned = append(s.owned, h)
	return h, nil
}

func (s *CollectibleSystem) Phase() coresys.Phase { return coresys.PhaseSpawn }

func (s *CollectibleSystem) Update(dt time.Duration) {
	s.recycle()

	s.timer += dt
	if s.timer < s.cfg.Interval {
		return
	}
	s.timer = 0

	h, reused, err := s.pool.Acquire()
	if err != nil {
		s.log.Warn("collectible acquire failed", zap.Error(err))
		return
	}
	x := s.scene.RandomX(s.cfg.XMin, s.cfg.XMax)
	if reused {
		s.scene.Reposition(h, x, s.cfg.SpawnY)
	} else {
		s.scene.Place(h, x, s.cfg.SpawnY)
	}
	s.active = append(s.active, h)

	if s.metrics != nil {
		origin := "created"
		if reused {
			origin = "recycled"
		}
		s.metrics.Acquired.WithLabelValues(origin).Inc()
		s.metrics.Free.Set(float64(s.pool.Free()))
	}
}

// recycle returns every active collectible on or below the floor to the pool.
func (s *CollectibleSystem) recycle() {
	floor := s.scene.Floor()
	kept := s.active[:0]
	for _, h := range s.active {
		_, y, ok := s.scene.Position(h)
		if !ok {
			continue // destroyed by someone else
		}
		if y > floor {
			kept = append(kept, h)
			continue
		}
		s.pool.Release(h)
		if s.metrics != nil {
			s.metrics.Released.Inc()
		}
	}
	s.active = kept
	if s.metrics != nil {
		s.metrics.Free.Set(float64(s.pool.Free()))
	}
}

// Teardown destroys every collectible the pool ever created and empties the
// free list.
func (s *CollectibleSystem) Teardown() {
	for _, h := range s.owned {
		s.scene.Destroy(h)
	}
	s.pool.Clear()
	s.owned = s.owned[:0]
	s.active = s.active[:0]
	s.timer = 0
	if s.metrics != nil {
		s.metrics.Free.Set(0)
	}
}

func (s *CollectibleSystem) Active() int { return len(s.active) }
func (s *CollectibleSystem) Free() int   { return s.pool.Free() }
func (s *CollectibleSystem) Owned() int  { return len(s.owned) }
