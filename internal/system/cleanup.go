package system

import (
	"time"

	"github.com/l1jgo/fallspawn/internal/core/ecs"
	coresys "github.com/l1jgo/fallspawn/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at tick end.
// Phase 4 (Cleanup).
type CleanupSystem struct {
	world     *ecs.World
	destroyed int
}

func NewCleanupSystem(world *ecs.World) *CleanupSystem {
	return &CleanupSystem{world: world}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.destroyed += s.world.FlushDestroyQueue()
}

// Destroyed returns the number of entities flushed so far.
func (s *CleanupSystem) Destroyed() int { return s.destroyed }
