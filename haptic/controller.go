package haptic

import "time"

// State is the controller's mutable selection state.
// The zero value is a freshly reset controller.
type State struct {
	History History
	// Ticks counts every crossing since the last reset. It only drives alternation.
	Ticks uint64
}

// Select records a crossing at now and returns the pulse it should produce.
//
// Policy, first match wins:
//   - major checkpoint: Major tier, regardless of rate
//   - rate above cfg.HighRate: Light tier
//   - otherwise: Medium on even ticks, Strong on odd ticks
//
// Rate is the number of crossings within cfg.Window, including this one.
func (s *State) Select(major bool, now time.Time, cfg Config) Pulse {
	s.History.Evict(now, cfg.Window)
	s.History.Push(now)
	rate := s.History.Len()

	s.Ticks++

	switch {
	case major:
		return cfg.pulse(TierMajor)
	case rate > cfg.HighRate:
		return cfg.pulse(TierLight)
	case s.Ticks%2 == 0:
		return cfg.pulse(TierMedium)
	default:
		return cfg.pulse(TierStrong)
	}
}

// Rate is the crossing count currently in the window, after evicting relative to now.
func (s *State) Rate(now time.Time, cfg Config) int {
	s.History.Evict(now, cfg.Window)
	return s.History.Len()
}

// Reset clears the window and the tick counter.
func (s *State) Reset() {
	s.History.Clear()
	s.Ticks = 0
}

// Controller pairs selection state with an output port.
// It is not safe for concurrent use; all calls are expected from the input event loop.
type Controller struct {
	cfg   Config
	port  Port
	state State
}

// NewController builds a controller delivering to port.
// The port is passed through Degrade once here, so a nil or capability-less port is handled
// up front and never re-checked per crossing.
func NewController(cfg Config, port Port) *Controller {
	return &Controller{
		cfg:  cfg,
		port: Degrade(port, cfg),
	}
}

// OnCrossing selects and issues the pulse for one crossing.
func (c *Controller) OnCrossing(major bool, now time.Time) Pulse {
	p := c.state.Select(major, now, c.cfg)
	c.port.Pulse(p)
	return p
}

// Reset clears the tick history and tick counter.
func (c *Controller) Reset() {
	c.state.Reset()
}

// Close cancels any pulse still playing on the device.
func (c *Controller) Close() {
	c.port.Cancel()
}
