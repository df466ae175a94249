package spawn

import "github.com/l1jgo/fallspawn/internal/core/ecs"

// HandleSet is the set of live handles of the current batch. It is never
// updated incrementally: Refresh replaces it with whatever the Querier
// reports, so entities destroyed by anyone (leaving the screen, a teardown)
// drop out without a notification channel. Each refresh costs one query,
// O(entities carrying the tag).
type HandleSet struct {
	kind    string
	query   Querier
	handles []ecs.EntityID
	polls   int
}

func NewHandleSet(kind string, q Querier) *HandleSet {
	return &HandleSet{kind: kind, query: q}
}

// Refresh re-queries the tag and replaces the set wholesale. Returns the new
// size.
func (s *HandleSet) Refresh() int {
	s.polls++
	s.handles = append(s.handles[:0], s.query.QueryTagged(s.kind)...)
	return len(s.handles)
}

// Invalidate nulls the slot holding h. The slot stays until the next refresh.
func (s *HandleSet) Invalidate(h ecs.EntityID) {
	for i, cur := range s.handles {
		if cur == h {
			s.handles[i] = 0
		}
	}
}

// Each visits the non-null handles in order.
func (s *HandleSet) Each(fn func(ecs.EntityID)) {
	for _, h := range s.handles {
		if !h.IsZero() {
			fn(h)
		}
	}
}

// Len returns the number of non-null handles.
func (s *HandleSet) Len() int {
	n := 0
	for _, h := range s.handles {
		if !h.IsZero() {
			n++
		}
	}
	return n
}

// Empty is the drain signal.
func (s *HandleSet) Empty() bool { return s.Len() == 0 }

// Slots returns the slot count including null slots.
func (s *HandleSet) Slots() int { return len(s.handles) }

// Polls returns how many queries Refresh has issued.
func (s *HandleSet) Polls() int { return s.polls }

func (s *HandleSet) Clear() {
	s.handles = s.handles[:0]
}
