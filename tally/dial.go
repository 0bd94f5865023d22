// Package tally is the counting dial: it feeds drag samples through a checkpoint tracker,
// keeps the running count, and issues a haptic pulse per checkpoint crossed.
//
// A Dial is owned by a single input loop and is not safe for concurrent use.
package tally

import (
	"fmt"
	"time"

	"tallydial/dial"
	"tallydial/haptic"
)

// Options configures a Dial.
type Options struct {
	Geometry dial.Geometry
	// Center is the rotation center in input coordinates.
	Center dial.Point
	// Haptic receives one OnCrossing per counted crossing. Nil disables feedback.
	Haptic *haptic.Controller
	// OnCountChange is called after every count change, including resets.
	OnCountChange func(count int)
	// Now supplies crossing timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Dial counts forward checkpoint crossings of a circular drag gesture.
type Dial struct {
	geom   dial.Geometry
	center dial.Point
	fb     *haptic.Controller
	notify func(int)
	now    func() time.Time

	state dial.State
	count int
}

// New builds a Dial. Zero Geometry fields take the default 30/5 layout; the result must
// pass Geometry.Validate.
func New(opts Options) (*Dial, error) {
	def := dial.DefaultGeometry()
	if opts.Geometry.Checkpoints == 0 {
		opts.Geometry.Checkpoints = def.Checkpoints
	}
	if opts.Geometry.MajorStride == 0 {
		opts.Geometry.MajorStride = def.MajorStride
	}
	if err := opts.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("dial geometry: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dial{
		geom:   opts.Geometry,
		center: opts.Center,
		fb:     opts.Haptic,
		notify: opts.OnCountChange,
		now:    opts.Now,
	}, nil
}

// OnDragStart begins a gesture at p. No crossing is counted for the first sample.
func (d *Dial) OnDragStart(p dial.Point) {
	d.state = d.geom.Begin(p, d.center)
}

// OnDragSample advances the gesture to p and returns the crossings counted.
// Samples arriving outside a gesture start one implicitly.
func (d *Dial) OnDragSample(p dial.Point) []dial.Crossing {
	var crossed []dial.Crossing
	d.state, crossed = d.geom.Update(d.state, p, d.center)
	if len(crossed) == 0 {
		return nil
	}

	now := d.now()
	for _, c := range crossed {
		d.count++
		if d.notify != nil {
			d.notify(d.count)
		}
		if d.fb != nil {
			d.fb.OnCrossing(c.Major, now)
		}
	}
	return crossed
}

// OnDragEnd finishes the gesture. The count is kept.
func (d *Dial) OnDragEnd() {
	d.state = dial.End(d.state)
}

// OnDragCancel abandons the gesture. Crossings already counted stay counted.
func (d *Dial) OnDragCancel() {
	d.state = dial.End(d.state)
}

// OnReset zeroes the count and clears the haptic rate history.
// A gesture in progress keeps its position.
func (d *Dial) OnReset() {
	d.count = 0
	if d.notify != nil {
		d.notify(0)
	}
	if d.fb != nil {
		d.fb.Reset()
	}
}

// Count is the number of crossings since the last reset.
func (d *Dial) Count() int { return d.count }

// Dragging reports whether a gesture is in progress.
func (d *Dial) Dragging() bool { return d.state.Set }

// Checkpoint is the checkpoint of the latest sample, or -1 outside a gesture.
func (d *Dial) Checkpoint() int {
	if !d.state.Set {
		return -1
	}
	return d.state.Last
}

// Geometry is the dial layout.
func (d *Dial) Geometry() dial.Geometry { return d.geom }

// Close cancels any pulse still playing.
func (d *Dial) Close() {
	if d.fb != nil {
		d.fb.Close()
	}
}
