package main

import (
	"math"
	"testing"
	"time"

	"tallydial/dial"
	"tallydial/haptic"
	"tallydial/tally"
)

var testCenter = dial.Point{X: 500, Y: 500}

func testReducerConfig() ReducerConfig {
	return ReducerConfig{
		Geometry: dial.DefaultGeometry(),
		Center:   testCenter,
		Haptic:   haptic.DefaultConfig(),
	}
}

// pointAt is a point on a radius-200 circle around testCenter at deg.
func pointAt(deg float64) (x, y float64) {
	rad := deg * math.Pi / 180
	return testCenter.X + 200*math.Cos(rad), testCenter.Y + 200*math.Sin(rad)
}

// midDeg is the middle of checkpoint i on the default 30-checkpoint dial.
func midDeg(i int) float64 { return float64(i)*12 + 6 }

func startAt(i int, id string) DragStart {
	x, y := pointAt(midDeg(i))
	return DragStart{X: x, Y: y, GestureID: id}
}

func moveTo(i int) DragMove {
	x, y := pointAt(midDeg(i))
	return DragMove{X: x, Y: y}
}

var t0 = time.Unix(1_700_000_000, 0)

func timed(e Event, at time.Time) TimedEvent { return TimedEvent{Event: e, At: at} }

func pulsesOf(cmds []Command) []haptic.Pulse {
	var out []haptic.Pulse
	for _, c := range cmds {
		if p, ok := c.(CmdPulse); ok {
			out = append(out, p.Pulse)
		}
	}
	return out
}

func countChanges(bs []StateBroadcast) []BroadcastCountChanged {
	var out []BroadcastCountChanged
	for _, b := range bs {
		if c, ok := b.(BroadcastCountChanged); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestReduce_JumpEmitsOnePulsePerCrossingInOrder(t *testing.T) {
	cfg := testReducerConfig()
	s := &DaemonState{}

	rr := Reduce(s, timed(startAt(1, "g1"), t0), cfg)
	if len(rr.Commands) != 0 {
		t.Fatalf("start emitted %d commands, want 0", len(rr.Commands))
	}

	// 1 -> 7 passes checkpoints 2..7; 5 is major.
	rr = Reduce(rr.State, timed(moveTo(7), t0.Add(100*time.Millisecond)), cfg)

	pulses := pulsesOf(rr.Commands)
	changes := countChanges(rr.Broadcasts)
	if len(pulses) != 6 || len(changes) != 6 {
		t.Fatalf("got %d pulses and %d count changes, want 6 each", len(pulses), len(changes))
	}

	for i, c := range changes {
		wantIdx := 2 + i
		if c.Checkpoint != wantIdx {
			t.Errorf("change %d checkpoint = %d, want %d", i, c.Checkpoint, wantIdx)
		}
		if c.Count != i+1 {
			t.Errorf("change %d count = %d, want %d", i, c.Count, i+1)
		}
		if c.GestureID != "g1" {
			t.Errorf("change %d gesture id = %q, want g1", i, c.GestureID)
		}
		if c.Major != (wantIdx == 5) {
			t.Errorf("change %d major = %v", i, c.Major)
		}
		if (pulses[i].Tier == haptic.TierMajor) != c.Major {
			t.Errorf("pulse %d tier %s does not match major=%v", i, pulses[i].Tier, c.Major)
		}
	}

	// Ticks 1..6: odd -> strong, even -> medium, except the major one (tick 4).
	want := []haptic.Tier{haptic.TierStrong, haptic.TierMedium, haptic.TierStrong, haptic.TierMajor, haptic.TierStrong, haptic.TierMedium}
	for i, p := range pulses {
		if p.Tier != want[i] {
			t.Errorf("pulse %d tier = %s, want %s", i, p.Tier, want[i])
		}
	}

	if rr.State.Count != 6 {
		t.Fatalf("count = %d, want 6", rr.State.Count)
	}
	if !rr.State.LastCrossingAt.Equal(t0.Add(100 * time.Millisecond)) {
		t.Fatalf("last crossing at = %v", rr.State.LastCrossingAt)
	}
}

func TestReduce_BackwardAndLongJumpsDoNotCount(t *testing.T) {
	cfg := testReducerConfig()
	rr := Reduce(&DaemonState{}, timed(startAt(10, ""), t0), cfg)

	// Backward by one.
	rr = Reduce(rr.State, timed(moveTo(9), t0), cfg)
	if len(rr.Commands) != 0 || rr.State.Count != 0 {
		t.Fatalf("backward move counted: commands=%d count=%d", len(rr.Commands), rr.State.Count)
	}
	// Forward by 16 (> N/2) is indistinguishable from backward.
	rr = Reduce(rr.State, timed(moveTo(25), t0), cfg)
	if rr.State.Count != 0 {
		t.Fatalf("long jump counted: count=%d", rr.State.Count)
	}
	// Last followed the pointer, so a single step forward counts once.
	rr = Reduce(rr.State, timed(moveTo(26), t0), cfg)
	if rr.State.Count != 1 {
		t.Fatalf("count = %d, want 1", rr.State.Count)
	}
}

func TestReduce_ResetClearsCountAndRateHistory(t *testing.T) {
	cfg := testReducerConfig()
	s := &DaemonState{}
	rr := Reduce(s, timed(startAt(0, ""), t0), cfg)

	at := t0
	for i := 1; i <= 3; i++ {
		at = at.Add(10 * time.Millisecond)
		rr = Reduce(rr.State, timed(moveTo(i), at), cfg)
	}
	if rr.State.Count != 3 || rr.State.Haptic.Ticks != 3 {
		t.Fatalf("count=%d ticks=%d, want 3/3", rr.State.Count, rr.State.Haptic.Ticks)
	}

	rr = Reduce(rr.State, timed(ResetCount{}, at), cfg)
	if rr.State.Count != 0 || rr.State.Haptic.Ticks != 0 || rr.State.Haptic.History.Len() != 0 {
		t.Fatalf("reset left count=%d ticks=%d history=%d", rr.State.Count, rr.State.Haptic.Ticks, rr.State.Haptic.History.Len())
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("reset broadcasts = %d, want 1", len(rr.Broadcasts))
	}
	if _, ok := rr.Broadcasts[0].(BroadcastCountReset); !ok {
		t.Fatalf("reset broadcast = %T", rr.Broadcasts[0])
	}
	if !rr.State.Gesture.Set {
		t.Fatalf("reset must not end the gesture")
	}

	// First crossing after reset: tick 1 -> strong.
	rr = Reduce(rr.State, timed(moveTo(4), at.Add(time.Millisecond)), cfg)
	pulses := pulsesOf(rr.Commands)
	if len(pulses) != 1 || pulses[0].Tier != haptic.TierStrong {
		t.Fatalf("pulses after reset = %v, want one strong", pulses)
	}
	if rr.State.Count != 1 {
		t.Fatalf("count after reset = %d, want 1", rr.State.Count)
	}
}

func TestReduce_CancelEndsGestureWithoutCounting(t *testing.T) {
	cfg := testReducerConfig()
	rr := Reduce(&DaemonState{}, timed(startAt(0, "g"), t0), cfg)
	rr = Reduce(rr.State, timed(moveTo(2), t0), cfg)

	rr = Reduce(rr.State, timed(DragCancel{}, t0), cfg)
	if rr.State.Gesture.Set {
		t.Fatalf("gesture still active after cancel")
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(rr.Broadcasts))
	}
	g, ok := rr.Broadcasts[0].(BroadcastGesture)
	if !ok || g.Active || !g.Canceled || g.GestureID != "g" {
		t.Fatalf("cancel broadcast = %+v", rr.Broadcasts[0])
	}
	if rr.State.Count != 2 {
		t.Fatalf("cancel changed count to %d", rr.State.Count)
	}

	// A second cancel is a no-op.
	rr = Reduce(rr.State, timed(DragCancel{}, t0), cfg)
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("cancel while idle broadcast %d events", len(rr.Broadcasts))
	}
}

func TestReduce_StartWhileDraggingCancelsPrevious(t *testing.T) {
	cfg := testReducerConfig()
	rr := Reduce(&DaemonState{}, timed(startAt(0, "a"), t0), cfg)
	rr = Reduce(rr.State, timed(startAt(20, "b"), t0), cfg)

	if len(rr.Broadcasts) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(rr.Broadcasts))
	}
	end := rr.Broadcasts[0].(BroadcastGesture)
	start := rr.Broadcasts[1].(BroadcastGesture)
	if end.GestureID != "a" || end.Active || !end.Canceled {
		t.Fatalf("first broadcast = %+v", end)
	}
	if start.GestureID != "b" || !start.Active {
		t.Fatalf("second broadcast = %+v", start)
	}
	if rr.State.Gesture.Last != 20 {
		t.Fatalf("last = %d, want 20", rr.State.Gesture.Last)
	}
}

func TestReduce_MoveWithoutStartBeginsGesture(t *testing.T) {
	cfg := testReducerConfig()
	rr := Reduce(&DaemonState{}, timed(moveTo(3), t0), cfg)
	if !rr.State.Gesture.Set || rr.State.Gesture.Last != 3 {
		t.Fatalf("gesture = %+v, want set at 3", rr.State.Gesture)
	}
	if len(rr.Commands) != 0 {
		t.Fatalf("implicit start emitted %d commands", len(rr.Commands))
	}
	if g, ok := rr.Broadcasts[0].(BroadcastGesture); !ok || !g.Active {
		t.Fatalf("implicit start broadcast = %+v", rr.Broadcasts[0])
	}
}

func TestReduce_SnapshotReportsRateAndCheckpoint(t *testing.T) {
	cfg := testReducerConfig()
	rr := Reduce(&DaemonState{}, timed(startAt(0, "g"), t0), cfg)
	rr = Reduce(rr.State, timed(moveTo(4), t0.Add(100*time.Millisecond)), cfg)

	reply := make(chan StateSnapshot, 1)
	rr = Reduce(rr.State, timed(RequestStateSnapshot{Reply: reply}, t0.Add(500*time.Millisecond)), cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(rr.Commands))
	}
	cmd, ok := rr.Commands[0].(CmdPublishStateSnapshot)
	if !ok {
		t.Fatalf("command = %T", rr.Commands[0])
	}
	snap := cmd.Snapshot
	if snap.Count != 4 || !snap.Dragging || snap.Checkpoint != 4 || snap.GestureID != "g" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Rate != 4 || snap.Ticks != 4 {
		t.Fatalf("rate=%d ticks=%d, want 4/4", snap.Rate, snap.Ticks)
	}

	// Past the window the rate drops to zero; ticks do not.
	rr = Reduce(rr.State, timed(RequestStateSnapshot{Reply: reply}, t0.Add(2*time.Second)), cfg)
	snap = rr.Commands[0].(CmdPublishStateSnapshot).Snapshot
	if snap.Rate != 0 || snap.Ticks != 4 {
		t.Fatalf("late rate=%d ticks=%d, want 0/4", snap.Rate, snap.Ticks)
	}

	rr = Reduce(rr.State, timed(DragEnd{}, t0), cfg)
	rr = Reduce(rr.State, timed(RequestStateSnapshot{Reply: reply}, t0), cfg)
	snap = rr.Commands[0].(CmdPublishStateSnapshot).Snapshot
	if snap.Dragging || snap.Checkpoint != -1 {
		t.Fatalf("idle snapshot = %+v", snap)
	}
}

func TestReduce_NilStateAndUnknownEvent(t *testing.T) {
	rr := Reduce(nil, TimedEvent{Event: nil, At: t0}, testReducerConfig())
	if rr.State == nil {
		t.Fatalf("nil state not replaced")
	}
	if len(rr.Commands) != 0 || len(rr.Broadcasts) != 0 {
		t.Fatalf("unknown event produced output: %+v", rr)
	}
}

// The daemon reducer and the widget must agree on counts and pulses for the same path.
func TestReduce_MatchesDialWidget(t *testing.T) {
	cfg := testReducerConfig()

	var widgetPulses []haptic.Pulse
	clock := t0
	w, err := tally.New(tally.Options{
		Geometry: cfg.Geometry,
		Center:   cfg.Center,
		Haptic: haptic.NewController(cfg.Haptic, haptic.Func(func(p haptic.Pulse) {
			widgetPulses = append(widgetPulses, p)
		})),
		Now: func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("tally.New: %v", err)
	}

	// Forward jumps, a backward jitter, a too-long jump, a reset and a second gesture.
	path := []Event{
		startAt(0, "a"), moveTo(3), moveTo(2), moveTo(9), moveTo(26), moveTo(28),
		ResetCount{}, moveTo(4), DragEnd{},
		startAt(10, "b"), moveTo(11), moveTo(12), moveTo(20), DragCancel{},
	}

	s := &DaemonState{}
	var reducerPulses []haptic.Pulse
	for i, ev := range path {
		clock = t0.Add(time.Duration(i) * 40 * time.Millisecond)

		rr := Reduce(s, timed(ev, clock), cfg)
		s = rr.State
		reducerPulses = append(reducerPulses, pulsesOf(rr.Commands)...)

		switch ev := ev.(type) {
		case DragStart:
			w.OnDragStart(dial.Point{X: ev.X, Y: ev.Y})
		case DragMove:
			w.OnDragSample(dial.Point{X: ev.X, Y: ev.Y})
		case DragEnd:
			w.OnDragEnd()
		case DragCancel:
			w.OnDragCancel()
		case ResetCount:
			w.OnReset()
		}
	}

	if s.Count != w.Count() {
		t.Fatalf("reducer count = %d, widget count = %d", s.Count, w.Count())
	}
	if len(reducerPulses) != len(widgetPulses) {
		t.Fatalf("reducer pulses = %d, widget pulses = %d", len(reducerPulses), len(widgetPulses))
	}
	for i := range reducerPulses {
		if reducerPulses[i] != widgetPulses[i] {
			t.Errorf("pulse %d: reducer %v, widget %v", i, reducerPulses[i], widgetPulses[i])
		}
	}
}
