package spawn

import "github.com/l1jgo/fallspawn/internal/core/ecs"

// Querier enumerates live entities carrying a tag.
type Querier interface {
	QueryTagged(kind string) []ecs.EntityID
}

// Scene is the entity side a Controller drives. The scene owns the entities;
// the controller only holds their handles.
type Scene interface {
	Querier
	// Instantiate creates one entity tagged with kind.
	Instantiate(kind string) (ecs.EntityID, error)
	// Place sets the initial position of a fresh entity. Called at most once
	// per handle.
	Place(h ecs.EntityID, x, y float32)
	// Destroy requests destruction. It does not wait for it to happen.
	Destroy(h ecs.EntityID)
}

// Placer computes the spawn position of the i-th element of a batch.
type Placer interface {
	Position(index int) (x, y float32)
}

// LinearPlacer lays a batch out on a horizontal line: x = XOrigin + i*XSpacing.
type LinearPlacer struct {
	XOrigin  float32
	XSpacing float32
	SpawnY   float32
}

func (p LinearPlacer) Position(index int) (float32, float32) {
	return p.XOrigin + float32(index)*p.XSpacing, p.SpawnY
}
