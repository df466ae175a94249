package pool

import "fmt"

// FreeList recycles handles of externally owned entities. Released handles
// are deactivated and queued; Acquire hands out the oldest one before asking
// for a new entity. The list never shrinks and never checks for duplicates.
type FreeList[H comparable] struct {
	create    func() (H, error)
	setActive func(h H, active bool)
	free      []H
	created   int
}

func NewFreeList[H comparable](create func() (H, error), setActive func(h H, active bool)) *FreeList[H] {
	return &FreeList[H]{
		create:    create,
		setActive: setActive,
		free:      make([]H, 0, 16),
	}
}

// Acquire returns a recycled handle, reactivated, or a freshly created one.
// reused reports which.
func (p *FreeList[H]) Acquire() (h H, reused bool, err error) {
	if len(p.free) > 0 {
		h = p.free[0]
		var zero H
		p.free[0] = zero
		p.free = p.free[1:]
		p.setActive(h, true)
		return h, true, nil
	}
	h, err = p.create()
	if err != nil {
		return h, false, fmt.Errorf("pool create: %w", err)
	}
	p.created++
	return h, false, nil
}

// Release deactivates h and queues it for reuse.
func (p *FreeList[H]) Release(h H) {
	p.setActive(h, false)
	p.free = append(p.free, h)
}

// Clear drops every queued handle. The entities themselves are left alone;
// destroying them is the caller's job.
func (p *FreeList[H]) Clear() {
	p.free = p.free[:0]
}

// Free returns the number of queued handles.
func (p *FreeList[H]) Free() int { return len(p.free) }

// Created returns how many handles the pool has asked create for.
func (p *FreeList[H]) Created() int { return p.created }
