package component

// Faller moves an entity straight down at Speed world units per second.
type Faller struct {
	Speed   float32
	Despawn bool // destroy on reaching the floor; otherwise the owner decides
}
