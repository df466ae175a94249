package system

import (
	"testing"
	"time"

	"github.com/l1jgo/fallspawn/internal/world"
	"go.uber.org/zap"
)

// fixedSpeedScene returns a scene whose fallers all move at speed units per
// second, with the floor at -5.
func fixedSpeedScene(t *testing.T, speed float32) *world.Scene {
	t.Helper()
	return world.NewScene(world.SceneConfig{
		FallSpeedMin: speed,
		FallSpeedMax: speed,
		FloorY:       -5,
		Seed:         1,
	}, zap.NewNop())
}

const halfSecond = 500 * time.Millisecond

// fullScene returns a scene that refuses every further Instantiate.
func fullScene(t *testing.T) *world.Scene {
	t.Helper()
	scene := world.NewScene(world.SceneConfig{
		FallSpeedMin: 1,
		FallSpeedMax: 1,
		FloorY:       -5,
		MaxEntities:  1,
		Seed:         1,
	}, zap.NewNop())
	if _, err := scene.Instantiate("filler"); err != nil {
		t.Fatal(err)
	}
	return scene
}
