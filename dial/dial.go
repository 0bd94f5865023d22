// Package dial converts pointer samples on a circular track into checkpoint crossings.
//
// The circle is partitioned into N equal sectors ("checkpoints"). A drag gesture is tracked
// sector by sector; moving forward into a later sector emits one Crossing per boundary passed.
// All functions are pure: callers own State and feed it back on every sample.
package dial

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultCheckpoints = 30
	DefaultMajorStride = 5
)

// Point is a pointer position in the widget's local coordinate space.
type Point struct {
	X float64
	Y float64
}

// Geometry describes how the circle is partitioned.
type Geometry struct {
	// Checkpoints is the number of equal sectors (N).
	Checkpoints int
	// MajorStride flags every n-th checkpoint as major.
	MajorStride int
}

// DefaultGeometry returns the reference 30-checkpoint track with a major marker every 5th.
func DefaultGeometry() Geometry {
	return Geometry{
		Checkpoints: DefaultCheckpoints,
		MajorStride: DefaultMajorStride,
	}
}

// Validate reports whether g can partition a circle.
func (g Geometry) Validate() error {
	if g.Checkpoints < 2 {
		return fmt.Errorf("checkpoints must be >= 2, got %d", g.Checkpoints)
	}
	if g.MajorStride < 1 {
		return errors.New("major stride must be >= 1")
	}
	return nil
}

// SectorDegrees is the angular width of one checkpoint.
func (g Geometry) SectorDegrees() float64 {
	return 360.0 / float64(g.Checkpoints)
}

// Angle returns the direction of p as seen from center, in degrees within [0, 360).
// Screen coordinates are used as-is (y grows downward), so increasing angle is clockwise on screen.
// A zero offset maps to 0.
func Angle(p, center Point) float64 {
	dx := p.X - center.X
	dy := p.Y - center.Y
	if dx == 0 && dy == 0 {
		return 0
	}

	deg := math.Atan2(dy, dx) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	// -tiny + 360 rounds to 360 in float64.
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Index quantizes an angle into a checkpoint index in [0, Checkpoints).
func (g Geometry) Index(angle float64) int {
	n := g.Checkpoints
	i := int(math.Floor(angle/g.SectorDegrees())) % n
	if i < 0 {
		i += n
	}
	return i
}

// IsMajor reports whether checkpoint i is a major checkpoint.
func (g Geometry) IsMajor(i int) bool {
	return i%g.MajorStride == 0
}

// Checkpoint maps a pointer sample straight to its checkpoint index.
func (g Geometry) Checkpoint(p, center Point) int {
	return g.Index(Angle(p, center))
}
