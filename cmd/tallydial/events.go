package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events - inputs to the reducer
// ============================================================================
// Drag events come from pointer devices (via the input translator) and from IPC
// clients. All of them describe one gesture on the dial plane; coordinates are in
// plane units with the dial center at the plane midpoint.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps a payload event with the time the daemon received it.
// Payload types stay free of timestamps so they can travel over IPC unchanged.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// DragStart begins a gesture at (X, Y).
type DragStart struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	GestureID string  `json:"gesture_id,omitempty"`
}

func (DragStart) eventMarker() {}

// DragMove is one pointer sample inside a gesture.
type DragMove struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (DragMove) eventMarker() {}

// DragEnd finishes a gesture by release.
type DragEnd struct{}

func (DragEnd) eventMarker() {}

// DragCancel abandons a gesture (pointer capture lost, device gone, events dropped).
type DragCancel struct{}

func (DragCancel) eventMarker() {}

// ResetCount zeroes the counter and the haptic rate history.
type ResetCount struct{}

func (ResetCount) eventMarker() {}

// RequestStateSnapshot asks the daemon loop for a coherent snapshot.
// Reply must be buffered; the daemon never blocks on it.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "drag_start":
		var e DragStart
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal DragStart: %w", err)
		}
		return e, nil

	case "drag_move":
		var e DragMove
		if err := json.Unmarshal(env.Data, &e); err != nil {
			return nil, fmt.Errorf("unmarshal DragMove: %w", err)
		}
		return e, nil

	case "drag_end":
		return DragEnd{}, nil
	case "drag_cancel":
		return DragCancel{}, nil
	case "reset_count":
		return ResetCount{}, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}
