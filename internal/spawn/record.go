package spawn

import "unsafe"

// Record holds one entity's spawn-time world coordinates. It lives in arena
// memory from the moment its batch is spawned until the batch is retired.
type Record struct {
	StartX float32
	StartY float32
}

// RecordSize is the arena footprint of one Record.
const RecordSize = int(unsafe.Sizeof(Record{}))

// Dispose zeroes the record. Nil and already disposed records are no-ops.
func (r *Record) Dispose() {
	if r == nil {
		return
	}
	r.StartX = 0
	r.StartY = 0
}

// Disposed reports whether both coordinates read as zero.
func (r *Record) Disposed() bool {
	return r == nil || (r.StartX == 0 && r.StartY == 0)
}
