package main

import (
	"github.com/google/uuid"

	"tallydial/dial"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// Surface is the input plane. Device coordinates are mapped onto [0, Width] x [0, Height]
// and the dial center sits at the midpoint.
type Surface struct {
	Width  float64
	Height float64
}

// Center is the midpoint of the plane.
func (s Surface) Center() dial.Point {
	return dial.Point{X: s.Width / 2, Y: s.Height / 2}
}

// IsZero reports whether no size is known.
func (s Surface) IsZero() bool {
	return s.Width <= 0 || s.Height <= 0
}

// axisRange is a device's absolute axis extent (EVIOCGABS min/max).
type axisRange struct {
	Min, Max int32
}

// pointerTranslator turns one device's raw input events into drag events.
//
// Events within one SYN_REPORT frame are accumulated and emitted together when the frame
// closes, so a press with coordinates in the same frame starts the gesture at the reported
// position rather than at the previous one.
//
// Not safe for concurrent use; one translator per device.
type pointerTranslator struct {
	surface Surface
	// absX/absY are the device's absolute ranges; nil for relative-only devices.
	absX, absY *axisRange

	x, y  float64
	down  bool
	dirty bool

	pressPending   bool
	releasePending bool

	newGestureID func() string
}

func newPointerTranslator(surface Surface, absX, absY *axisRange) *pointerTranslator {
	t := &pointerTranslator{
		surface:      surface,
		absX:         absX,
		absY:         absY,
		newGestureID: uuid.NewString,
	}
	// Relative pointers start at the center of the plane.
	c := surface.Center()
	t.x, t.y = c.X, c.Y
	return t
}

// translate consumes one input event and returns the drag events it completes, if any.
func (t *pointerTranslator) translate(ev inputEvent) []Event {
	switch ev.Type {
	case EV_KEY:
		if ev.Code != BTN_TOUCH && ev.Code != BTN_LEFT {
			return nil
		}
		switch ev.Value {
		case evValuePress:
			t.pressPending = true
			t.releasePending = false
		case evValueRelease:
			t.releasePending = true
		}

	case EV_ABS:
		switch ev.Code {
		case ABS_X:
			t.x = scaleAxis(ev.Value, t.absX, t.surface.Width)
			t.dirty = true
		case ABS_Y:
			t.y = scaleAxis(ev.Value, t.absY, t.surface.Height)
			t.dirty = true
		}

	case EV_REL:
		switch ev.Code {
		case REL_X:
			t.x = clamp(t.x+float64(ev.Value), 0, t.surface.Width)
			t.dirty = true
		case REL_Y:
			t.y = clamp(t.y+float64(ev.Value), 0, t.surface.Height)
			t.dirty = true
		}

	case EV_SYN:
		switch ev.Code {
		case SYN_REPORT:
			return t.flush()
		case SYN_DROPPED:
			// The kernel discarded events; whatever gesture we were tracking is unreliable.
			return t.cancel()
		}
	}
	return nil
}

// flush closes one SYN_REPORT frame.
func (t *pointerTranslator) flush() []Event {
	var out []Event

	switch {
	case t.pressPending && !t.down:
		t.down = true
		out = append(out, DragStart{X: t.x, Y: t.y, GestureID: t.newGestureID()})
	case t.down && t.dirty:
		out = append(out, DragMove{X: t.x, Y: t.y})
	}

	if t.releasePending && t.down {
		t.down = false
		out = append(out, DragEnd{})
	}

	t.pressPending = false
	t.releasePending = false
	t.dirty = false
	return out
}

// cancel abandons any gesture in progress (device lost, events dropped).
func (t *pointerTranslator) cancel() []Event {
	t.pressPending = false
	t.releasePending = false
	t.dirty = false
	if !t.down {
		return nil
	}
	t.down = false
	return []Event{DragCancel{}}
}

// scaleAxis maps a raw absolute value onto [0, size].
// Without a known range the raw value is used as-is.
func scaleAxis(v int32, r *axisRange, size float64) float64 {
	if r == nil || r.Max <= r.Min {
		return float64(v)
	}
	f := float64(v-r.Min) / float64(r.Max-r.Min)
	return clamp(f, 0, 1) * size
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
