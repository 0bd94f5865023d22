package main

import (
	"time"

	"tallydial/dial"
	"tallydial/haptic"
)

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon loop goroutine reads or writes it. Other goroutines (HTTP, WS, IPC)
// get copies through RequestStateSnapshot.
type DaemonState struct {
	// Count is the number of checkpoint crossings since the last reset.
	Count int

	// Gesture is the tracker state of the gesture in progress, if any.
	Gesture   dial.State
	GestureID string

	// Haptic is the pulse selection state (rate window and alternation counter).
	Haptic haptic.State

	// LastCrossingAt is when Count last increased. Zero if never.
	LastCrossingAt time.Time
	ResetAt        time.Time
}

// StateSnapshot is a copy of the externally interesting parts of DaemonState.
type StateSnapshot struct {
	Count      int
	Dragging   bool
	GestureID  string
	Checkpoint int // -1 when not dragging

	// Rate is crossings within the haptic window at the time of the snapshot.
	Rate  int
	Ticks uint64

	LastCrossingAt time.Time
	ResetAt        time.Time
	At             time.Time
}

// Snapshot captures the state at now.
// Computing the rate evicts stale window entries, which Select would do anyway.
func (s *DaemonState) Snapshot(now time.Time, cfg haptic.Config) StateSnapshot {
	checkpoint := -1
	if s.Gesture.Set {
		checkpoint = s.Gesture.Last
	}
	return StateSnapshot{
		Count:          s.Count,
		Dragging:       s.Gesture.Set,
		GestureID:      s.GestureID,
		Checkpoint:     checkpoint,
		Rate:           s.Haptic.Rate(now, cfg),
		Ticks:          s.Haptic.Ticks,
		LastCrossingAt: s.LastCrossingAt,
		ResetAt:        s.ResetAt,
		At:             now,
	}
}
