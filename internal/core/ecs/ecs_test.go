package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPoolNeverHandsOutZero(t *testing.T) {
	p := NewEntityPool()
	id := p.Create()
	assert.False(t, id.IsZero())
	assert.Equal(t, uint32(1), id.Index())
	assert.False(t, p.Alive(0))
}

func TestEntityPoolReusesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	p.Destroy(a)
	assert.False(t, p.Alive(a))

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index())
	assert.Equal(t, a.Generation()+1, b.Generation())
	assert.True(t, p.Alive(b))
	assert.False(t, p.Alive(a), "stale id must stay dead")
	assert.Equal(t, 1, p.Live())
}

func TestEntityPoolDestroyStaleIsNoop(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	p.Destroy(a)
	p.Destroy(a)
	assert.Equal(t, 0, p.Live())

	b := p.Create()
	c := p.Create()
	assert.NotEqual(t, b.Index(), c.Index(), "double destroy must not double-free the index")
}

func TestWorldDeferredDestroy(t *testing.T) {
	w := NewWorld()
	positions := NewStore[int]()
	w.Register(positions)

	id := w.CreateEntity()
	v := 7
	positions.Set(id, &v)

	w.MarkForDestruction(id)
	w.MarkForDestruction(id)
	assert.True(t, w.Alive(id), "destruction is deferred until flush")
	assert.True(t, w.Doomed(id))

	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, w.Alive(id))
	assert.False(t, positions.Has(id))
	assert.False(t, w.Doomed(id))
	assert.Equal(t, 0, w.FlushDestroyQueue())
}

func TestStoreSelectOrdered(t *testing.T) {
	w := NewWorld()
	tags := NewStore[string]()
	ids := make([]EntityID, 0, 5)
	for i := 0; i < 5; i++ {
		id := w.CreateEntity()
		tag := "a"
		if i%2 == 1 {
			tag = "b"
		}
		tags.Set(id, &tag)
		ids = append(ids, id)
	}

	got := tags.Select(func(_ EntityID, tag *string) bool { return *tag == "a" })
	require.Len(t, got, 3)
	assert.Equal(t, []EntityID{ids[0], ids[2], ids[4]}, got)
}

func TestEach2(t *testing.T) {
	xs := NewStore[int]()
	ys := NewStore[string]()
	one, two := 1, 2
	s := "two"
	xs.Set(1, &one)
	xs.Set(2, &two)
	ys.Set(2, &s)

	visited := map[EntityID]string{}
	Each2(xs, ys, func(id EntityID, x *int, y *string) {
		visited[id] = *y
	})
	assert.Equal(t, map[EntityID]string{2: "two"}, visited)
}
