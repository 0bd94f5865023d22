//go:build !linux

package haptic

import "log/slog"

// Evdev is only available on Linux.
type Evdev struct{}

// OpenEvdev always fails with ErrUnsupported off Linux.
func OpenEvdev(path string, logger *slog.Logger) (*Evdev, error) {
	return nil, ErrUnsupported
}

func (*Evdev) Pulse(Pulse)                {}
func (*Evdev) Cancel()                    {}
func (*Evdev) Capabilities() Capabilities { return Capabilities{} }
func (*Evdev) Close() error               { return nil }
