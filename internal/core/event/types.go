package event

import "time"

// BatchSpawned is emitted once a batch has been instantiated and placed.
type BatchSpawned struct {
	Spawner    string
	Kind       string
	Seq        uint64
	Size       int
	ArenaBytes int
	At         time.Time
}

// BatchRetired is emitted when every entity of a batch is gone and its arena
// has been released.
type BatchRetired struct {
	Spawner    string
	Seq        uint64
	DrainTicks int
	Polls      int
	At         time.Time
}

// BatchAborted is emitted when a batch fails during spawning.
type BatchAborted struct {
	Spawner string
	Seq     uint64
	Reason  string
	At      time.Time
}

// BatchTornDown is emitted when a live batch is destroyed by a forced teardown.
type BatchTornDown struct {
	Spawner   string
	Seq       uint64
	Destroyed int
	At        time.Time
}
