package haptic

import "errors"

// ErrUnsupported is returned by Open* constructors on platforms without the backing device API.
var ErrUnsupported = errors.New("haptic: output not supported on this platform")

// Capabilities describes what an output device can do.
type Capabilities struct {
	// Present is false when there is no device at all.
	Present bool
	// Amplitude is true when the device honors Pulse.Strength.
	Amplitude bool
}

// Port is a fire-and-forget output device.
// Implementations must not block the caller for the duration of a pulse and never report
// errors; delivery failures are logged by the implementation, if at all.
type Port interface {
	Pulse(p Pulse)
	// Cancel stops any pulse still playing.
	Cancel()
	Capabilities() Capabilities
}

// Nop discards every pulse.
type Nop struct{}

func (Nop) Pulse(Pulse)                {}
func (Nop) Cancel()                    {}
func (Nop) Capabilities() Capabilities { return Capabilities{} }

// Degrade picks the effective port once:
//   - nil or absent device: Nop
//   - device without amplitude control: fixed-duration, full-strength pulses
//   - otherwise: port unchanged
func Degrade(port Port, cfg Config) Port {
	if port == nil {
		return Nop{}
	}
	caps := port.Capabilities()
	switch {
	case !caps.Present:
		return Nop{}
	case !caps.Amplitude:
		return fixedDuration{port: port, cfg: cfg}
	default:
		return port
	}
}

// fixedDuration adapts pulses for on/off devices.
type fixedDuration struct {
	port Port
	cfg  Config
}

func (f fixedDuration) Pulse(p Pulse) {
	f.port.Pulse(f.cfg.fallbackPulse(p.Tier))
}

func (f fixedDuration) Cancel() { f.port.Cancel() }

func (f fixedDuration) Capabilities() Capabilities {
	return f.port.Capabilities()
}

// Multi fans pulses out to several ports. Nil entries are skipped.
func Multi(ports ...Port) Port {
	out := make(multi, 0, len(ports))
	for _, p := range ports {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multi []Port

func (m multi) Pulse(p Pulse) {
	for _, port := range m {
		port.Pulse(p)
	}
}

func (m multi) Cancel() {
	for _, port := range m {
		port.Cancel()
	}
}

// Capabilities reports the union: present if any member is, amplitude if any member has it.
// Members without amplitude control should be wrapped with Degrade before being combined.
func (m multi) Capabilities() Capabilities {
	var caps Capabilities
	for _, port := range m {
		c := port.Capabilities()
		caps.Present = caps.Present || c.Present
		caps.Amplitude = caps.Amplitude || c.Amplitude
	}
	return caps
}

// Func adapts a callback into an amplitude-capable port. Cancel is a no-op.
type Func func(Pulse)

func (f Func) Pulse(p Pulse) {
	if f != nil {
		f(p)
	}
}

func (Func) Cancel() {}

func (f Func) Capabilities() Capabilities {
	return Capabilities{Present: f != nil, Amplitude: true}
}
