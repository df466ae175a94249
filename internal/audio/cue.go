package audio

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// tone is a sine wave with a linear fade-out over its whole duration.
type tone struct {
	freq     float64
	volume   float64
	phase    float64
	duration int
	position int
	rate     beep.SampleRate
}

// NewTone returns a streamer that plays freq Hz for d and then ends.
func NewTone(freq float64, d time.Duration, volume float64, rate beep.SampleRate) beep.Streamer {
	return &tone{freq: freq, volume: volume, duration: rate.N(d), rate: rate}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.position >= t.duration {
			return i, i > 0
		}
		fade := 1 - float64(t.position)/float64(t.duration)
		val := t.volume * fade * math.Sin(2*math.Pi*t.phase)
		samples[i][0] = val
		samples[i][1] = val

		t.phase += t.freq / float64(t.rate)
		t.phase -= math.Floor(t.phase)
		t.position++
	}
	return len(samples), true
}

func (t *tone) Err() error { return nil }

// Cue plays short tones through the speaker. Every method is a no-op until
// Initialize succeeds, so a machine without audio runs silently.
type Cue struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
}

func NewCue() *Cue {
	return &Cue{mixer: &beep.Mixer{}}
}

// Initialize opens the speaker.
func (c *Cue) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(c.mixer)
	c.initialized = true
	return nil
}

// Batch plays the spawn cue; larger batches sound lower.
func (c *Cue) Batch(size int) {
	c.play(BatchFrequency(size), 120*time.Millisecond)
}

// Teardown plays a short low buzz.
func (c *Cue) Teardown() {
	c.play(110, 250*time.Millisecond)
}

func (c *Cue) play(freq float64, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}
	speaker.Lock()
	c.mixer.Add(NewTone(freq, d, 0.2, sampleRate))
	speaker.Unlock()
}

// Close clears pending sounds and closes the speaker.
func (c *Cue) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return
	}
	speaker.Lock()
	c.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	c.initialized = false
}

// BatchFrequency maps a batch size to a pitch between 220 and 880 Hz.
func BatchFrequency(size int) float64 {
	if size < 1 {
		size = 1
	}
	f := 880 / math.Sqrt(float64(size))
	return math.Max(220, f)
}
