// Package audio plays haptic pulses as audible clicks.
package audio

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"

	"tallydial/haptic"
)

const sampleRate = beep.SampleRate(44100)

// tierPitch gives each tier an audibly distinct click.
var tierPitch = map[haptic.Tier]float64{
	haptic.TierLight:  1760,
	haptic.TierMedium: 1320,
	haptic.TierStrong: 990,
	haptic.TierMajor:  660,
}

// Port renders pulses as short clicks on the default sound output.
// Strength maps to volume, duration to click length.
type Port struct {
	mu     sync.Mutex
	mixer  *beep.Mixer
	closed bool
}

// Open initializes the speaker and starts an empty mixer on it.
// The speaker is process-global; only one Port should be open at a time.
func Open() (*Port, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/20)); err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}
	a := &Port{mixer: &beep.Mixer{}}
	speaker.Play(a.mixer)
	return a, nil
}

func (a *Port) Capabilities() haptic.Capabilities {
	return haptic.Capabilities{Present: true, Amplitude: true}
}

func (a *Port) Pulse(p haptic.Pulse) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	s, err := clickStreamer(p, sampleRate)
	if err != nil {
		return
	}
	speaker.Lock()
	a.mixer.Add(s)
	speaker.Unlock()
}

// Cancel drops every click still in the mixer.
func (a *Port) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	speaker.Lock()
	a.mixer.Clear()
	speaker.Unlock()
}

// Close silences the mixer and releases the speaker.
func (a *Port) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	speaker.Clear()
	speaker.Close()
	return nil
}

// clickStreamer builds a decaying sine burst for p that ends after p.Duration.
func clickStreamer(p haptic.Pulse, sr beep.SampleRate) (beep.Streamer, error) {
	freq, ok := tierPitch[p.Tier]
	if !ok {
		freq = tierPitch[haptic.TierMedium]
	}
	tone, err := generators.SineTone(sr, freq)
	if err != nil {
		return nil, err
	}

	n := sr.N(p.DeviceDuration())
	shaped := &decay{streamer: beep.Take(n, tone), total: n}

	vol := p.Level()
	if vol <= 0 {
		return &effects.Volume{Streamer: shaped, Base: 2, Silent: true}, nil
	}
	return &effects.Volume{Streamer: shaped, Base: 2, Volume: math.Log2(vol)}, nil
}

// decay applies a linear fade-out over total samples.
type decay struct {
	streamer beep.Streamer
	pos      int
	total    int
}

func (d *decay) Stream(samples [][2]float64) (int, bool) {
	n, ok := d.streamer.Stream(samples)
	for i := 0; i < n; i++ {
		g := 1 - float64(d.pos)/float64(d.total)
		if g < 0 {
			g = 0
		}
		samples[i][0] *= g
		samples[i][1] *= g
		d.pos++
	}
	return n, ok
}

func (d *decay) Err() error { return d.streamer.Err() }
