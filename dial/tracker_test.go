package dial

import (
	"math"
	"testing"
)

var testCenter = Point{X: 160, Y: 160}

// pointAt places a sample at deg degrees on a circle around testCenter.
func pointAt(deg float64) Point {
	rad := deg * math.Pi / 180
	return Point{
		X: testCenter.X + 120*math.Cos(rad),
		Y: testCenter.Y + 120*math.Sin(rad),
	}
}

// sectorMid returns the angle in the middle of checkpoint i for the default geometry.
func sectorMid(i int) float64 {
	return float64(i)*12 + 6
}

func TestAngle_Quadrants(t *testing.T) {
	cases := []struct {
		name string
		p    Point
		want float64
	}{
		{"right", Point{X: 10, Y: 0}, 0},
		{"down", Point{X: 0, Y: 10}, 90},
		{"left", Point{X: -10, Y: 0}, 180},
		{"up", Point{X: 0, Y: -10}, 270},
		{"left negative zero", Point{X: -10, Y: math.Copysign(0, -1)}, 180},
	}
	for _, tc := range cases {
		got := Angle(tc.p, Point{})
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: expected angle %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestAngle_ZeroOffsetIsStable(t *testing.T) {
	if got := Angle(testCenter, testCenter); got != 0 {
		t.Fatalf("expected 0 for zero offset, got %v", got)
	}

	g := DefaultGeometry()
	s := g.Begin(testCenter, testCenter)
	if !s.Set || s.Last != 0 {
		t.Fatalf("expected begin at center to set checkpoint 0, got %+v", s)
	}
}

func TestAngle_NeverReaches360(t *testing.T) {
	// Just below the positive x axis: atan2 yields -tiny.
	got := Angle(Point{X: 1e9, Y: -1e-12}, Point{})
	if got < 0 || got >= 360 {
		t.Fatalf("expected angle within [0, 360), got %v", got)
	}
}

func TestIndex_AlwaysInRange(t *testing.T) {
	for _, n := range []int{2, 5, 12, 30, 60} {
		g := Geometry{Checkpoints: n, MajorStride: 5}
		for a := 0.0; a < 360; a += 0.25 {
			i := g.Index(a)
			if i < 0 || i >= n {
				t.Fatalf("n=%d angle=%v: index %d out of range", n, a, i)
			}
		}
	}
}

func TestIndex_PartitionHasNoGaps(t *testing.T) {
	g := DefaultGeometry()
	seen := make(map[int]bool)
	for a := 0.0; a < 360; a += 0.5 {
		seen[g.Index(a)] = true
	}
	if len(seen) != g.Checkpoints {
		t.Fatalf("expected %d distinct checkpoints, got %d", g.Checkpoints, len(seen))
	}
}

func TestIsMajor_EveryFifth(t *testing.T) {
	for _, n := range []int{5, 10, 30, 60} {
		g := Geometry{Checkpoints: n, MajorStride: 5}
		majors := 0
		for i := 0; i < n; i++ {
			if g.IsMajor(i) != (i%5 == 0) {
				t.Fatalf("n=%d: checkpoint %d major=%v", n, i, g.IsMajor(i))
			}
			if g.IsMajor(i) {
				majors++
			}
		}
		if majors != n/5 {
			t.Errorf("n=%d: expected %d majors, got %d", n, n/5, majors)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultGeometry().Validate(); err != nil {
		t.Fatalf("default geometry should be valid: %v", err)
	}
	if err := (Geometry{Checkpoints: 1, MajorStride: 5}).Validate(); err == nil {
		t.Error("expected error for 1 checkpoint")
	}
	if err := (Geometry{Checkpoints: 30, MajorStride: 0}).Validate(); err == nil {
		t.Error("expected error for zero stride")
	}
}

func TestBegin_EmitsNothingAndSetsPosition(t *testing.T) {
	g := DefaultGeometry()
	s := g.Begin(pointAt(sectorMid(7)), testCenter)
	if !s.Set {
		t.Fatal("expected state to be set after begin")
	}
	if s.Last != 7 {
		t.Fatalf("expected checkpoint 7, got %d", s.Last)
	}
}

func TestUpdate_SameCheckpointNoEvent(t *testing.T) {
	g := DefaultGeometry()
	s := g.Begin(pointAt(3), testCenter)
	s2, crossed := g.Update(s, pointAt(9), testCenter)
	if len(crossed) != 0 {
		t.Fatalf("expected no crossings inside one sector, got %d", len(crossed))
	}
	if s2 != s {
		t.Fatalf("expected unchanged state, got %+v", s2)
	}
}

func TestUpdate_FullRevolutionEmitsN(t *testing.T) {
	g := DefaultGeometry()
	s := g.Begin(pointAt(sectorMid(0)), testCenter)

	var all []Crossing
	for k := 1; k <= g.Checkpoints; k++ {
		var crossed []Crossing
		s, crossed = g.Update(s, pointAt(sectorMid(k%g.Checkpoints)), testCenter)
		all = append(all, crossed...)
	}

	if len(all) != 30 {
		t.Fatalf("expected 30 crossings for a full revolution, got %d", len(all))
	}

	var majors []int
	for _, c := range all {
		if c.Major {
			majors = append(majors, c.Index)
		}
	}
	want := []int{5, 10, 15, 20, 25, 0}
	if len(majors) != len(want) {
		t.Fatalf("expected majors %v, got %v", want, majors)
	}
	for i := range want {
		if majors[i] != want[i] {
			t.Fatalf("expected majors %v, got %v", want, majors)
		}
	}
	if s.Last != 0 {
		t.Errorf("expected to finish at checkpoint 0, got %d", s.Last)
	}
}

func TestUpdate_MultiSectorJumpIsExpanded(t *testing.T) {
	g := DefaultGeometry()
	s := g.Begin(pointAt(sectorMid(28)), testCenter)

	// 28 -> 4 wraps past zero: 29, 0, 1, 2, 3, 4.
	s, crossed := g.Update(s, pointAt(sectorMid(4)), testCenter)
	want := []Crossing{
		{Index: 29},
		{Index: 0, Major: true},
		{Index: 1},
		{Index: 2},
		{Index: 3},
		{Index: 4},
	}
	if len(crossed) != len(want) {
		t.Fatalf("expected %d crossings, got %d (%v)", len(want), len(crossed), crossed)
	}
	for i := range want {
		if crossed[i] != want[i] {
			t.Errorf("crossing %d: expected %+v, got %+v", i, want[i], crossed[i])
		}
	}
	if s.Last != 4 {
		t.Errorf("expected last=4, got %d", s.Last)
	}
}

func TestUpdate_BackwardStepAbsorbed(t *testing.T) {
	g := DefaultGeometry()
	s := g.Begin(pointAt(sectorMid(0)), testCenter)

	total := 0
	for k := 1; k <= 5; k++ {
		var crossed []Crossing
		s, crossed = g.Update(s, pointAt(sectorMid(k)), testCenter)
		total += len(crossed)
	}
	if total != 5 {
		t.Fatalf("expected 5 forward crossings, got %d", total)
	}

	s, crossed := g.Update(s, pointAt(sectorMid(4)), testCenter)
	if len(crossed) != 0 {
		t.Fatalf("expected backward step to emit nothing, got %d", len(crossed))
	}
	if s.Last != 4 {
		t.Fatalf("expected last to follow the backward step to 4, got %d", s.Last)
	}

	// Forward again from the backward position counts normally.
	_, crossed = g.Update(s, pointAt(sectorMid(5)), testCenter)
	if len(crossed) != 1 || crossed[0].Index != 5 || !crossed[0].Major {
		t.Fatalf("expected single major crossing into 5, got %v", crossed)
	}
}

func TestUpdate_HalfCircleBoundary(t *testing.T) {
	g := DefaultGeometry()

	s := g.Begin(pointAt(sectorMid(0)), testCenter)
	_, crossed := g.Update(s, pointAt(sectorMid(15)), testCenter)
	if len(crossed) != 15 {
		t.Fatalf("expected diff == N/2 to count 15 crossings, got %d", len(crossed))
	}

	s = g.Begin(pointAt(sectorMid(0)), testCenter)
	s, crossed = g.Update(s, pointAt(sectorMid(16)), testCenter)
	if len(crossed) != 0 {
		t.Fatalf("expected diff > N/2 to be rejected, got %d", len(crossed))
	}
	if s.Last != 16 {
		t.Fatalf("expected last to move to 16 even when rejected, got %d", s.Last)
	}
}

func TestUpdate_MatchesGeometryRegardlessOfSampling(t *testing.T) {
	g := DefaultGeometry()
	for _, step := range []float64{1.5, 7.5, 37.5, 112.5, 172.5} {
		start := 0.25
		limit := start + 1080
		end := start
		s := g.Begin(pointAt(start), testCenter)

		total := 0
		for a := start + step; a <= limit; a += step {
			var crossed []Crossing
			s, crossed = g.Update(s, pointAt(a), testCenter)
			total += len(crossed)
			end = a
		}

		want := int(math.Floor(end/12)) - int(math.Floor(start/12))
		if total != want {
			t.Errorf("step=%v: expected %d crossings, got %d", step, want, total)
		}
	}
}

func TestUpdate_UnsetBehavesLikeBegin(t *testing.T) {
	g := DefaultGeometry()
	s, crossed := g.Update(State{}, pointAt(sectorMid(12)), testCenter)
	if len(crossed) != 0 {
		t.Fatalf("expected no crossings from an unset state, got %d", len(crossed))
	}
	if !s.Set || s.Last != 12 {
		t.Fatalf("expected state set at 12, got %+v", s)
	}
}

func TestEnd_ClearsState(t *testing.T) {
	g := DefaultGeometry()
	s := g.Begin(pointAt(sectorMid(9)), testCenter)
	s = End(s)
	if s.Set {
		t.Fatal("expected unset state after end")
	}

	// A new gesture starts clean: its first sample never counts.
	s, crossed := g.Update(s, pointAt(sectorMid(12)), testCenter)
	if len(crossed) != 0 {
		t.Fatalf("expected no crossings on the first sample of a new gesture, got %d", len(crossed))
	}
	if s.Last != 12 {
		t.Fatalf("expected last=12, got %d", s.Last)
	}
}
