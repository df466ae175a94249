package spawn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordDispose(t *testing.T) {
	r := Record{StartX: -5, StartY: 5}
	assert.False(t, r.Disposed())

	r.Dispose()
	assert.Equal(t, Record{}, r)
	assert.True(t, r.Disposed())

	r.Dispose()
	assert.Equal(t, Record{}, r)

	var nilRec *Record
	assert.NotPanics(t, nilRec.Dispose)
	assert.True(t, nilRec.Disposed())
}

func TestRecordSize(t *testing.T) {
	assert.Equal(t, 8, RecordSize)
}

func TestLinearPlacer(t *testing.T) {
	p := LinearPlacer{XOrigin: -5, XSpacing: 2, SpawnY: 5}
	want := [][2]float32{{-5, 5}, {-3, 5}, {-1, 5}, {1, 5}, {3, 5}, {5, 5}}
	for i, w := range want {
		x, y := p.Position(i)
		assert.Equal(t, w[0], x)
		assert.Equal(t, w[1], y)
	}
}
