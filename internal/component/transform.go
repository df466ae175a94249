package component

// Transform stores an entity's world position.
// Pure data, zero methods. Systems do the mutating.
type Transform struct {
	X      float32
	Y      float32
	Placed bool // initial position has been set
}
