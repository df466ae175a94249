package world

import (
	"errors"
	"math/rand"
	"time"

	"github.com/l1jgo/fallspawn/internal/component"
	"github.com/l1jgo/fallspawn/internal/core/ecs"
	"go.uber.org/zap"
)

var ErrSceneFull = errors.New("scene: entity limit reached")

// SceneConfig tunes the simulated entities.
type SceneConfig struct {
	FallSpeedMin float32
	FallSpeedMax float32
	FloorY       float32 // entities at or below this height have left the screen
	MaxEntities  int     // 0: unlimited
	Seed         int64   // 0: seeded from the clock
}

// Scene owns the simulated entities spawners create, place, poll and
// destroy. Accessed only from the game loop goroutine.
type Scene struct {
	cfg        SceneConfig
	world      *ecs.World
	transforms *ecs.Store[component.Transform]
	fallers    *ecs.Store[component.Faller]
	tags       *ecs.Store[component.Tag]
	inactive   *ecs.Store[component.Inactive]
	rng        *rand.Rand
	log        *zap.Logger
}

func NewScene(cfg SceneConfig, log *zap.Logger) *Scene {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.FallSpeedMax < cfg.FallSpeedMin {
		cfg.FallSpeedMax = cfg.FallSpeedMin
	}
	s := &Scene{
		cfg:        cfg,
		world:      ecs.NewWorld(),
		transforms: ecs.NewStore[component.Transform](),
		fallers:    ecs.NewStore[component.Faller](),
		tags:       ecs.NewStore[component.Tag](),
		inactive:   ecs.NewStore[component.Inactive](),
		rng:        rand.New(rand.NewSource(seed)),
		log:        log,
	}
	s.world.Register(s.transforms)
	s.world.Register(s.fallers)
	s.world.Register(s.tags)
	s.world.Register(s.inactive)
	return s
}

// Instantiate creates an unplaced entity tagged kind with a random fall speed.
func (s *Scene) Instantiate(kind string) (ecs.EntityID, error) {
	if s.cfg.MaxEntities > 0 && s.world.Live() >= s.cfg.MaxEntities {
		return 0, ErrSceneFull
	}
	id := s.world.CreateEntity()
	s.tags.Set(id, &component.Tag{Kind: kind})
	s.transforms.Set(id, &component.Transform{})
	s.fallers.Set(id, &component.Faller{Speed: s.rollSpeed(), Despawn: true})
	return id, nil
}

func (s *Scene) rollSpeed() float32 {
	span := s.cfg.FallSpeedMax - s.cfg.FallSpeedMin
	return s.cfg.FallSpeedMin + s.rng.Float32()*span
}

// Place sets the starting position. Only the first call per entity counts.
func (s *Scene) Place(h ecs.EntityID, x, y float32) {
	tr, ok := s.transforms.Get(h)
	if !ok || !s.world.Alive(h) {
		s.log.Debug("place on dead entity", zap.Uint64("entity", uint64(h)))
		return
	}
	if tr.Placed {
		s.log.Warn("entity placed twice", zap.Uint64("entity", uint64(h)))
		return
	}
	tr.X, tr.Y, tr.Placed = x, y, true
}

// Destroy queues h for removal at the end of the tick.
func (s *Scene) Destroy(h ecs.EntityID) {
	s.world.MarkForDestruction(h)
}

// QueryTagged returns the live, active entities tagged kind in creation
// order. Entities already queued for destruction are not live.
func (s *Scene) QueryTagged(kind string) []ecs.EntityID {
	return s.tags.Select(func(id ecs.EntityID, tag *component.Tag) bool {
		return tag.Kind == kind && !s.world.Doomed(id) && !s.inactive.Has(id)
	})
}

// SetActive parks or wakes a pooled entity. Waking also re-rolls its speed.
func (s *Scene) SetActive(h ecs.EntityID, active bool) {
	if !s.world.Alive(h) {
		return
	}
	if active {
		s.inactive.Remove(h)
		if f, ok := s.fallers.Get(h); ok {
			f.Speed = s.rollSpeed()
		}
		if tr, ok := s.transforms.Get(h); ok {
			tr.Placed = false
		}
		return
	}
	s.inactive.Set(h, &component.Inactive{})
}

// Reposition moves a woken pooled entity without the once-only rule of Place.
func (s *Scene) Reposition(h ecs.EntityID, x, y float32) {
	if tr, ok := s.transforms.Get(h); ok {
		tr.X, tr.Y, tr.Placed = x, y, true
	}
}

// SetDespawn controls whether h is destroyed on reaching the floor.
func (s *Scene) SetDespawn(h ecs.EntityID, despawn bool) {
	if f, ok := s.fallers.Get(h); ok {
		f.Despawn = despawn
	}
}

func (s *Scene) Position(h ecs.EntityID) (x, y float32, ok bool) {
	tr, ok := s.transforms.Get(h)
	if !ok {
		return 0, 0, false
	}
	return tr.X, tr.Y, true
}

func (s *Scene) Active(h ecs.EntityID) bool {
	return s.world.Alive(h) && !s.inactive.Has(h)
}

// Visible visits every placed, active entity.
func (s *Scene) Visible(fn func(id ecs.EntityID, kind string, x, y float32)) {
	ecs.Each2(s.transforms, s.tags, func(id ecs.EntityID, tr *component.Transform, tag *component.Tag) {
		if !tr.Placed || s.inactive.Has(id) || s.world.Doomed(id) {
			return
		}
		fn(id, tag.Kind, tr.X, tr.Y)
	})
}

// RandomX returns a uniform x in [lo, hi).
func (s *Scene) RandomX(lo, hi float32) float32 {
	return lo + s.rng.Float32()*(hi-lo)
}

func (s *Scene) Floor() float32                              { return s.cfg.FloorY }
func (s *Scene) World() *ecs.World                           { return s.world }
func (s *Scene) Transforms() *ecs.Store[component.Transform] { return s.transforms }
func (s *Scene) Fallers() *ecs.Store[component.Faller]       { return s.fallers }
func (s *Scene) Inactive() *ecs.Store[component.Inactive]    { return s.inactive }
