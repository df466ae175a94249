package audio

import (
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/stretchr/testify/assert"
)

func TestToneLengthAndRange(t *testing.T) {
	rate := beep.SampleRate(1000)
	s := NewTone(100, 50*time.Millisecond, 0.5, rate)

	buf := make([][2]float64, 32)
	total := 0
	for {
		n, ok := s.Stream(buf)
		for i := 0; i < n; i++ {
			assert.LessOrEqual(t, buf[i][0], 0.5)
			assert.GreaterOrEqual(t, buf[i][0], -0.5)
			assert.Equal(t, buf[i][0], buf[i][1])
		}
		total += n
		if !ok {
			break
		}
	}
	assert.Equal(t, 50, total)
	assert.NoError(t, s.Err())
}

func TestToneFadesOut(t *testing.T) {
	rate := beep.SampleRate(8000)
	s := NewTone(250, 100*time.Millisecond, 1, rate)
	buf := make([][2]float64, 800)
	n, _ := s.Stream(buf)
	assert.Equal(t, 800, n)

	peak := func(from, to int) float64 {
		m := 0.0
		for _, v := range buf[from:to] {
			if v[0] > m {
				m = v[0]
			}
		}
		return m
	}
	assert.Greater(t, peak(0, 100), peak(700, 800))
}

func TestBatchFrequency(t *testing.T) {
	assert.Equal(t, 880.0, BatchFrequency(1))
	assert.Equal(t, 440.0, BatchFrequency(4))
	assert.Equal(t, 220.0, BatchFrequency(100))
	assert.Equal(t, 880.0, BatchFrequency(0))
}

func TestCueSilentWithoutSpeaker(t *testing.T) {
	c := NewCue()
	assert.NotPanics(t, func() {
		c.Batch(6)
		c.Teardown()
		c.Close()
	})
}
