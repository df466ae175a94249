package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseEvents  Phase = iota // 0: deliver last tick's events
	PhaseUpdate               // 1: movement and simulation
	PhaseSpawn                // 2: spawn controllers, pools
	PhasePersist              // 3: ledger flush
	PhaseCleanup              // 4: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseEvents:
		return "events"
	case PhaseUpdate:
		return "update"
	case PhaseSpawn:
		return "spawn"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
