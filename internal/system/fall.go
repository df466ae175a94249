package system

import (
	"time"

	"github.com/l1jgo/fallspawn/internal/component"
	"github.com/l1jgo/fallspawn/internal/core/ecs"
	coresys "github.com/l1jgo/fallspawn/internal/core/system"
	"github.com/l1jgo/fallspawn/internal/world"
)

// FallSystem moves every placed, active faller down by Speed*dt and destroys
// despawning fallers once they reach the floor. Phase 1 (Update).
type FallSystem struct {
	scene *world.Scene
}

func NewFallSystem(scene *world.Scene) *FallSystem {
	return &FallSystem{scene: scene}
}

func (s *FallSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *FallSystem) Update(dt time.Duration) {
	step := float32(dt.Seconds())
	floor := s.scene.Floor()
	inactive := s.scene.Inactive()
	ecs.Each2(s.scene.Transforms(), s.scene.Fallers(), func(id ecs.EntityID, tr *component.Transform, f *component.Faller) {
		if !tr.Placed || inactive.Has(id) {
			return
		}
		tr.Y -= f.Speed * step
		if f.Despawn && tr.Y <= floor {
			s.scene.Destroy(id)
		}
	})
}
