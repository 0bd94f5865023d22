// Command dialterm is a terminal rendition of the counting dial: drag the mouse around
// the ring and every checkpoint passed is counted and answered with a pulse.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"tallydial/dial"
	"tallydial/haptic"
	"tallydial/haptic/audio"
	"tallydial/tally"
)

// flashHold is how long a pulse stays visible.
const flashHold = 150 * time.Millisecond

type app struct {
	screen tcell.Screen
	layout layout
	geom   dial.Geometry
	dial   *tally.Dial
	now    func() time.Time

	finger     *dial.Point
	flash      *haptic.Pulse
	flashUntil time.Time
}

func newApp(screen tcell.Screen, geom dial.Geometry, hcfg haptic.Config, sound haptic.Port, now func() time.Time) (*app, error) {
	a := &app{screen: screen, geom: geom, now: now}
	a.layout = newLayout(screen.Size())

	flash := haptic.Func(func(p haptic.Pulse) {
		a.flash = &p
		a.flashUntil = a.now().Add(flashHold)
	})
	var port haptic.Port = flash
	if sound != nil {
		port = haptic.Multi(sound, flash)
	}

	d, err := tally.New(tally.Options{
		Geometry: geom,
		Center:   dial.Point{},
		Haptic:   haptic.NewController(hcfg, port),
		Now:      now,
	})
	if err != nil {
		return nil, err
	}
	a.dial = d
	a.geom = d.Geometry()
	return a, nil
}

func (a *app) view() viewState {
	return viewState{
		geom:       a.geom,
		count:      a.dial.Count(),
		checkpoint: a.dial.Checkpoint(),
		finger:     a.finger,
		flash:      a.flash,
	}
}

func (a *app) redraw() { draw(a.screen, a.layout, a.view()) }

// handle applies one terminal event. It returns false when the app should quit.
func (a *app) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'r':
			a.dial.OnReset()
		}

	case *tcell.EventMouse:
		col, row := ev.Position()
		p := a.layout.toPlane(col, row)
		pressed := ev.Buttons()&tcell.Button1 != 0

		switch {
		case pressed && !a.dial.Dragging():
			a.dial.OnDragStart(p)
			a.finger = &p
		case pressed:
			a.dial.OnDragSample(p)
			a.finger = &p
		case a.dial.Dragging():
			a.dial.OnDragEnd()
			a.finger = nil
		}

	case *tcell.EventFocus:
		if !ev.Focused && a.dial.Dragging() {
			a.dial.OnDragCancel()
			a.finger = nil
		}

	case *tcell.EventResize:
		// The ring moved under the pointer; the gesture's positions no longer line up.
		if a.dial.Dragging() {
			a.dial.OnDragCancel()
			a.finger = nil
		}
		a.layout = newLayout(a.screen.Size())
		a.screen.Sync()
	}
	return true
}

// expire clears a pulse flash that has been shown long enough.
func (a *app) expire() bool {
	if a.flash != nil && !a.now().Before(a.flashUntil) {
		a.flash = nil
		return true
	}
	return false
}

func (a *app) run() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	a.redraw()
	for {
		select {
		case ev := <-events:
			if !a.handle(ev) {
				return
			}
			a.redraw()
		case <-ticker.C:
			if a.expire() {
				a.redraw()
			}
		}
	}
}

func main() {
	var (
		checkpoints = flag.Int("checkpoints", dial.DefaultCheckpoints, "Number of checkpoints on the ring")
		majorStride = flag.Int("major-stride", dial.DefaultMajorStride, "Every n-th checkpoint is major")
		sound       = flag.Bool("sound", false, "Play each pulse as an audible click")
	)
	flag.Parse()

	geom := dial.Geometry{Checkpoints: *checkpoints, MajorStride: *majorStride}
	if err := geom.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	var soundPort haptic.Port
	if *sound {
		ap, err := audio.Open()
		if err != nil {
			// Non-fatal, the dial works without sound
			fmt.Fprintln(os.Stderr, "warning: audio unavailable:", err)
		} else {
			defer ap.Close()
			soundPort = ap
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	screen.EnableMouse(tcell.MouseMotionEvents)
	screen.EnableFocus()

	a, err := newApp(screen, geom, haptic.DefaultConfig(), soundPort, time.Now)
	if err != nil {
		screen.Fini()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	a.run()

	a.dial.Close()
	screen.Fini()
	fmt.Printf("count: %d\n", a.dial.Count())
}
