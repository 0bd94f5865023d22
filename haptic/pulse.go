// Package haptic selects adaptive feedback pulses for checkpoint crossings and delivers
// them to an output device.
//
// Selection is rate-aware: under sustained rapid input pulses are attenuated so that
// discrete ticks do not blur into a continuous buzz, while major checkpoints always get
// the strongest pulse. Delivery goes through a Port chosen once at construction; a missing
// device degrades to a no-op and never fails the caller.
package haptic

import (
	"fmt"
	"time"
)

// Tier names a pulse pattern.
type Tier int

const (
	TierLight Tier = iota
	TierMedium
	TierStrong
	TierMajor
)

func (t Tier) String() string {
	switch t {
	case TierLight:
		return "light"
	case TierMedium:
		return "medium"
	case TierStrong:
		return "strong"
	case TierMajor:
		return "major"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MaxStrength is full amplitude.
const MaxStrength = 255

// Pulse is a single vibration request.
type Pulse struct {
	Tier     Tier
	Duration time.Duration
	// Strength is the amplitude in [1, MaxStrength].
	Strength int
}

func (p Pulse) String() string {
	return fmt.Sprintf("Pulse(%s, %s, strength=%d)", p.Tier, p.Duration, p.Strength)
}

// Level is the strength as a fraction in [0, 1].
func (p Pulse) Level() float64 {
	switch {
	case p.Strength <= 0:
		return 0
	case p.Strength >= MaxStrength:
		return 1
	default:
		return float64(p.Strength) / MaxStrength
	}
}

// DeviceDuration is the duration clamped to what output drivers accept (1ms..32767ms).
func (p Pulse) DeviceDuration() time.Duration {
	const max = 32767 * time.Millisecond
	switch {
	case p.Duration < time.Millisecond:
		return time.Millisecond
	case p.Duration > max:
		return max
	default:
		return p.Duration
	}
}

// Pattern is the duration/strength pair configured for a tier.
type Pattern struct {
	Duration time.Duration
	Strength int
}

// Config holds the fixed tuning of the controller.
type Config struct {
	// Window is the trailing interval over which crossings are counted to estimate rate.
	Window time.Duration
	// HighRate is the crossings-per-window above which minor pulses drop to the light tier.
	HighRate int

	Light  Pattern
	Medium Pattern
	Strong Pattern
	Major  Pattern

	// Fallback is the fixed pulse length used by devices without amplitude control.
	Fallback time.Duration
	// FallbackMajor is the fixed pulse length for major checkpoints on such devices.
	FallbackMajor time.Duration
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		Window:   1000 * time.Millisecond,
		HighRate: 15,

		Light:  Pattern{Duration: 15 * time.Millisecond, Strength: 180},
		Medium: Pattern{Duration: 18 * time.Millisecond, Strength: 220},
		Strong: Pattern{Duration: 25 * time.Millisecond, Strength: 255},
		Major:  Pattern{Duration: 35 * time.Millisecond, Strength: 255},

		Fallback:      20 * time.Millisecond,
		FallbackMajor: 35 * time.Millisecond,
	}
}

// Validate checks tuning invariants.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be > 0, got %s", c.Window)
	}
	if c.HighRate < 1 {
		return fmt.Errorf("high rate must be >= 1, got %d", c.HighRate)
	}
	for _, p := range []struct {
		name string
		pat  Pattern
	}{
		{"light", c.Light},
		{"medium", c.Medium},
		{"strong", c.Strong},
		{"major", c.Major},
	} {
		if p.pat.Duration <= 0 {
			return fmt.Errorf("%s pulse duration must be > 0", p.name)
		}
		if p.pat.Strength < 1 || p.pat.Strength > MaxStrength {
			return fmt.Errorf("%s pulse strength must be within [1, %d], got %d", p.name, MaxStrength, p.pat.Strength)
		}
	}
	if c.Fallback <= 0 || c.FallbackMajor <= 0 {
		return fmt.Errorf("fallback pulse durations must be > 0")
	}
	return nil
}

// pulse builds the Pulse for a tier from the configured patterns.
func (c Config) pulse(t Tier) Pulse {
	var pat Pattern
	switch t {
	case TierLight:
		pat = c.Light
	case TierMedium:
		pat = c.Medium
	case TierStrong:
		pat = c.Strong
	default:
		pat = c.Major
	}
	return Pulse{Tier: t, Duration: pat.Duration, Strength: pat.Strength}
}

// fallbackPulse is the fixed-duration, full-strength substitute for a tier.
func (c Config) fallbackPulse(t Tier) Pulse {
	d := c.Fallback
	if t == TierMajor {
		d = c.FallbackMajor
	}
	return Pulse{Tier: t, Duration: d, Strength: MaxStrength}
}
