package main

import (
	"time"

	"tallydial/dial"
	"tallydial/haptic"
)

// This file implements the reducer-style architecture building blocks:
//
//   - Events: drag input, reset, snapshot requests (events.go)
//   - Commands: haptic output and snapshot replies (commands.go)
//   - Broadcasts: state changes for live clients (below)
//   - Reduce(): computes next state + commands + broadcasts, without performing I/O
//
// The daemon loop is responsible for executing Commands and forwarding Broadcasts.

// ReducerConfig is the fixed configuration the reducer works with.
type ReducerConfig struct {
	Geometry dial.Geometry
	// Center is the dial center on the input plane.
	Center dial.Point
	Haptic haptic.Config
}

// ==============================
// Broadcasts (state changes for WS clients)
// ==============================

// StateBroadcast is an externally visible state change emitted by the reducer.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastCountChanged is emitted once per counted crossing.
type BroadcastCountChanged struct {
	Count      int
	Checkpoint int
	Major      bool
	GestureID  string
	At         time.Time
}

func (BroadcastCountChanged) broadcastMarker() {}

// BroadcastCountReset is emitted when the counter is zeroed.
type BroadcastCountReset struct {
	At time.Time
}

func (BroadcastCountReset) broadcastMarker() {}

// BroadcastGesture is emitted when a gesture starts or ends.
type BroadcastGesture struct {
	GestureID string
	Active    bool
	// Canceled is set when an inactive gesture ended by cancellation rather than release.
	Canceled bool
	At       time.Time
}

func (BroadcastGesture) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReduceResult is the output of Reduce(): next state, Commands to execute and
// Broadcasts to publish.
//
// Ordering: for every counted crossing the reducer emits exactly one CmdPulse and one
// BroadcastCountChanged, both in crossing order.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
//
// Events not wrapped in TimedEvent are reduced with a zero timestamp; the daemon loop
// always wraps.
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}

	var at time.Time
	if te, ok := e.(TimedEvent); ok {
		at = te.At
		e = te.Event
	}

	rr := ReduceResult{State: s}

	switch ev := e.(type) {
	case DragStart:
		// A start while dragging implies the previous gesture was lost.
		if s.Gesture.Set {
			rr.Broadcasts = append(rr.Broadcasts, endGesture(s, true, at))
		}
		s.Gesture = cfg.Geometry.Begin(dial.Point{X: ev.X, Y: ev.Y}, cfg.Center)
		s.GestureID = ev.GestureID
		rr.Broadcasts = append(rr.Broadcasts, BroadcastGesture{GestureID: s.GestureID, Active: true, At: at})

	case DragMove:
		wasSet := s.Gesture.Set

		var crossed []dial.Crossing
		s.Gesture, crossed = cfg.Geometry.Update(s.Gesture, dial.Point{X: ev.X, Y: ev.Y}, cfg.Center)

		if !wasSet {
			// Implicit start: a move without a preceding start begins a gesture.
			s.GestureID = ""
			rr.Broadcasts = append(rr.Broadcasts, BroadcastGesture{Active: true, At: at})
		}

		// Same per-crossing order as tally.Dial: count first, then the pulse.
		for _, c := range crossed {
			s.Count++
			s.LastCrossingAt = at

			p := s.Haptic.Select(c.Major, at, cfg.Haptic)
			rr.Commands = append(rr.Commands, CmdPulse{Pulse: p})
			rr.Broadcasts = append(rr.Broadcasts, BroadcastCountChanged{
				Count:      s.Count,
				Checkpoint: c.Index,
				Major:      c.Major,
				GestureID:  s.GestureID,
				At:         at,
			})
		}

	case DragEnd:
		if s.Gesture.Set {
			rr.Broadcasts = append(rr.Broadcasts, endGesture(s, false, at))
		}

	case DragCancel:
		if s.Gesture.Set {
			rr.Broadcasts = append(rr.Broadcasts, endGesture(s, true, at))
		}

	case ResetCount:
		s.Count = 0
		s.Haptic.Reset()
		s.ResetAt = at
		rr.Broadcasts = append(rr.Broadcasts, BroadcastCountReset{At: at})

	case RequestStateSnapshot:
		if ev.Reply != nil {
			rr.Commands = append(rr.Commands, CmdPublishStateSnapshot{
				Reply:    ev.Reply,
				Snapshot: s.Snapshot(at, cfg.Haptic),
			})
		}

	default:
		// Unknown event type: no-op.
	}

	return rr
}

// endGesture clears gesture state and returns the matching broadcast.
func endGesture(s *DaemonState, canceled bool, at time.Time) StateBroadcast {
	b := BroadcastGesture{GestureID: s.GestureID, Active: false, Canceled: canceled, At: at}
	s.Gesture = dial.End(s.Gesture)
	s.GestureID = ""
	return b
}
