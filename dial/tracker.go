package dial

// State is the per-gesture tracker state.
// The zero value is unset: no gesture in progress.
type State struct {
	// Last is the checkpoint of the most recent sample. Meaningful only when Set is true.
	Last int
	Set  bool
}

// Crossing is one checkpoint boundary passed in the forward direction.
type Crossing struct {
	// Index is the checkpoint that was entered.
	Index int
	Major bool
}

// Begin starts a gesture at p. It establishes position without emitting crossings.
func (g Geometry) Begin(p, center Point) State {
	return State{Last: g.Checkpoint(p, center), Set: true}
}

// Update advances the gesture to p and returns the crossings passed since the previous sample.
//
// Only forward motion within a half circle (0 < diff <= N/2) is counted. Larger forward
// distances are indistinguishable from backward motion and are dropped. Last always moves to
// the new checkpoint, so backward jitter never desynchronizes later forward detection.
//
// Crossings are returned in increasing checkpoint order starting at Last+1 (mod N).
// Calling Update on an unset State behaves like Begin.
func (g Geometry) Update(s State, p, center Point) (State, []Crossing) {
	cur := g.Checkpoint(p, center)
	if !s.Set {
		return State{Last: cur, Set: true}, nil
	}
	if cur == s.Last {
		return s, nil
	}

	n := g.Checkpoints
	diff := (cur - s.Last + n) % n

	var crossed []Crossing
	if diff > 0 && diff <= n/2 {
		crossed = make([]Crossing, 0, diff)
		for k := 1; k <= diff; k++ {
			idx := (s.Last + k) % n
			crossed = append(crossed, Crossing{Index: idx, Major: g.IsMajor(idx)})
		}
	}

	return State{Last: cur, Set: true}, crossed
}

// End finishes a gesture, by release or by cancellation.
func End(State) State {
	return State{}
}
