package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEntities struct {
	next    int
	active  map[int]bool
	failing bool
}

func (f *fakeEntities) create() (int, error) {
	if f.failing {
		return 0, errors.New("no room")
	}
	f.next++
	f.active[f.next] = true
	return f.next, nil
}

func (f *fakeEntities) setActive(h int, active bool) { f.active[h] = active }

func newPool() (*FreeList[int], *fakeEntities) {
	f := &fakeEntities{active: map[int]bool{}}
	return NewFreeList(f.create, f.setActive), f
}

func TestAcquireCreatesWhenEmpty(t *testing.T) {
	p, f := newPool()
	h, reused, err := p.Acquire()
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, 1, h)
	assert.True(t, f.active[h])
	assert.Equal(t, 1, p.Created())
}

func TestReleaseThenAcquireRecycles(t *testing.T) {
	p, f := newPool()
	a, _, _ := p.Acquire()
	b, _, _ := p.Acquire()

	p.Release(a)
	p.Release(b)
	assert.False(t, f.active[a])
	assert.Equal(t, 2, p.Free())

	got, reused, err := p.Acquire()
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, a, got, "oldest released handle comes back first")
	assert.True(t, f.active[a])
	assert.Equal(t, 2, p.Created())
	assert.Equal(t, 1, p.Free())
}

func TestReleaseDoesNotDeduplicate(t *testing.T) {
	p, _ := newPool()
	a, _, _ := p.Acquire()
	p.Release(a)
	p.Release(a)
	assert.Equal(t, 2, p.Free())
}

func TestClearKeepsEntities(t *testing.T) {
	p, f := newPool()
	a, _, _ := p.Acquire()
	p.Release(a)

	p.Clear()
	assert.Equal(t, 0, p.Free())
	_, exists := f.active[a]
	assert.True(t, exists, "clear must not destroy")

	b, reused, err := p.Acquire()
	require.NoError(t, err)
	assert.False(t, reused)
	assert.NotEqual(t, a, b)
}

func TestAcquireCreateError(t *testing.T) {
	p, f := newPool()
	f.failing = true
	_, _, err := p.Acquire()
	assert.Error(t, err)
	assert.Equal(t, 0, p.Created())
}
