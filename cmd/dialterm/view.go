package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"tallydial/dial"
	"tallydial/haptic"
)

// layout places the dial on the terminal grid.
//
// Cells are about twice as tall as they are wide, so the ring is drawn with a horizontal
// radius of 2*radius columns and pointer columns are halved before reaching the tracker.
type layout struct {
	cx, cy int
	// radius is in rows.
	radius float64
}

const minRadius = 3

func newLayout(w, h int) layout {
	r := math.Min(float64(h)/2-3, float64(w)/4-2)
	if r < minRadius {
		r = minRadius
	}
	return layout{cx: w / 2, cy: h / 2, radius: r}
}

// toPlane maps a cell to tracker coordinates centered on the dial.
func (l layout) toPlane(col, row int) dial.Point {
	return dial.Point{X: float64(col-l.cx) / 2, Y: float64(row - l.cy)}
}

// cellAt is the cell at deg on a circle of r rows around the center.
func (l layout) cellAt(deg, r float64) (col, row int) {
	rad := deg * math.Pi / 180
	return l.cx + int(math.Round(2*r*math.Cos(rad))), l.cy + int(math.Round(r*math.Sin(rad)))
}

var (
	styleTrack  = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleMinor  = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleMajor  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleActive = tcell.StyleDefault.Foreground(tcell.ColorAqua).Reverse(true)
	styleFinger = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleCount  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleHelp   = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

var tierStyle = map[haptic.Tier]tcell.Style{
	haptic.TierLight:  tcell.StyleDefault.Foreground(tcell.ColorGray),
	haptic.TierMedium: tcell.StyleDefault.Foreground(tcell.ColorYellow),
	haptic.TierStrong: tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true),
	haptic.TierMajor:  tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true).Reverse(true),
}

const (
	glyphTrack  = '·'
	glyphMinor  = '○'
	glyphMajor  = '◆'
	glyphFinger = '●'
)

// viewState is everything draw needs.
type viewState struct {
	geom       dial.Geometry
	count      int
	checkpoint int // -1 when idle
	finger     *dial.Point
	flash      *haptic.Pulse
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}

func drawCentered(s tcell.Screen, y int, style tcell.Style, text string) {
	w, _ := s.Size()
	drawText(s, (w-len([]rune(text)))/2, y, style, text)
}

func draw(s tcell.Screen, l layout, v viewState) {
	s.Clear()

	// Track between checkpoint markers.
	steps := int(2 * math.Pi * l.radius * 2)
	for i := 0; i < steps; i++ {
		col, row := l.cellAt(360*float64(i)/float64(steps), l.radius)
		s.SetContent(col, row, glyphTrack, nil, styleTrack)
	}

	// Checkpoint markers, one per sector, at the sector's start boundary.
	sector := v.geom.SectorDegrees()
	for i := 0; i < v.geom.Checkpoints; i++ {
		col, row := l.cellAt(float64(i)*sector, l.radius)
		glyph, style := glyphMinor, styleMinor
		if v.geom.IsMajor(i) {
			glyph, style = glyphMajor, styleMajor
		}
		if i == v.checkpoint {
			style = styleActive
		}
		s.SetContent(col, row, glyph, nil, style)
	}

	if v.finger != nil {
		deg := dial.Angle(*v.finger, dial.Point{})
		col, row := l.cellAt(deg, l.radius+1)
		s.SetContent(col, row, glyphFinger, nil, styleFinger)
	}

	drawCentered(s, l.cy, styleCount, fmt.Sprintf("%d", v.count))
	if v.flash != nil {
		drawCentered(s, l.cy+1, tierStyle[v.flash.Tier], v.flash.Tier.String())
	}

	_, h := s.Size()
	drawCentered(s, h-1, styleHelp, "drag around the ring  ·  r reset  ·  q quit")

	s.Show()
}
