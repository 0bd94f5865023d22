//go:build linux

package haptic

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux input constants (linux/input-event-codes.h, linux/input.h).
const (
	evFF = 0x15

	ffRumble   = 0x50
	ffPeriodic = 0x51
	ffConstant = 0x52
	ffMax      = 0x7f

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | uintptr('E')<<8 | nr
}

// ffEffect mirrors struct ff_effect. The union is sized for struct ff_periodic_effect, its
// largest member, whose trailing pointer makes the layout word-size dependent.
type ffEffect struct {
	Type            uint16
	ID              int16
	Direction       uint16
	TriggerButton   uint16
	TriggerInterval uint16
	ReplayLength    uint16
	ReplayDelay     uint16
	_               uint16
	U               [24 + unsafe.Sizeof(uintptr(0))]byte
	_               [0]uintptr
}

// inputEvent mirrors struct input_event on 64-bit time_t platforms.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var (
	eviocsff  = ioc(iocWrite, 0x80, unsafe.Sizeof(ffEffect{}))
	eviocrmff = ioc(iocWrite, 0x81, unsafe.Sizeof(int32(0)))
)

func eviocgbit(ev, size uintptr) uintptr {
	return ioc(iocRead, 0x20+ev, size)
}

// Evdev plays pulses as force-feedback effects on a Linux input device.
//
// A single effect slot is uploaded on the first pulse and updated in place afterwards.
// Devices advertising FF_RUMBLE get magnitude control; devices with only FF_CONSTANT or
// FF_PERIODIC are reported as amplitude-less and play at a fixed level.
type Evdev struct {
	f      *os.File
	logger *slog.Logger

	effectType uint16
	caps       Capabilities

	mu       sync.Mutex
	effectID int16
	closed   bool
}

// OpenEvdev opens path read-write and probes its force-feedback support.
func OpenEvdev(path string, logger *slog.Logger) (*Evdev, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var bits [(ffMax + 8) / 8]byte
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		f.Fd(),
		eviocgbit(evFF, uintptr(len(bits))),
		uintptr(unsafe.Pointer(&bits[0])),
	)
	if errno != 0 {
		f.Close()
		return nil, fmt.Errorf("EVIOCGBIT(EV_FF) %s: %w", path, errno)
	}

	has := func(code int) bool { return bits[code/8]&(1<<(code%8)) != 0 }

	d := &Evdev{f: f, logger: logger, effectID: -1}
	switch {
	case has(ffRumble):
		d.effectType = ffRumble
		d.caps = Capabilities{Present: true, Amplitude: true}
	case has(ffConstant):
		d.effectType = ffConstant
		d.caps = Capabilities{Present: true}
	case has(ffPeriodic):
		d.effectType = ffPeriodic
		d.caps = Capabilities{Present: true}
	default:
		f.Close()
		return nil, fmt.Errorf("%s: no supported force-feedback effects", path)
	}

	logger.Debug("force-feedback device opened", "path", path, "effect", d.effectType, "amplitude", d.caps.Amplitude)
	return d, nil
}

func (d *Evdev) Capabilities() Capabilities { return d.caps }

// Pulse uploads the effect for p and starts it. Failures are logged at debug.
func (d *Evdev) Pulse(p Pulse) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	eff := ffEffect{
		Type:         d.effectType,
		ID:           d.effectID,
		ReplayLength: uint16(p.DeviceDuration().Milliseconds()),
	}
	level := p.Level()
	switch d.effectType {
	case ffRumble:
		mag := uint16(level * 0xffff)
		binary.NativeEndian.PutUint16(eff.U[0:2], mag) // strong_magnitude
		binary.NativeEndian.PutUint16(eff.U[2:4], mag) // weak_magnitude
	case ffConstant:
		binary.NativeEndian.PutUint16(eff.U[0:2], uint16(int16(level*0x7fff)))
	case ffPeriodic:
		const ffSquare = 0x58
		binary.NativeEndian.PutUint16(eff.U[0:2], ffSquare)
		binary.NativeEndian.PutUint16(eff.U[2:4], 20) // period ms
		binary.NativeEndian.PutUint16(eff.U[4:6], uint16(int16(level*0x7fff)))
	}

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), eviocsff, uintptr(unsafe.Pointer(&eff)))
	if errno != 0 {
		d.logger.Debug("force-feedback upload failed", "error", errno, "pulse", p)
		return
	}
	d.effectID = eff.ID

	if err := d.write(eff.ID, 1); err != nil {
		d.logger.Debug("force-feedback play failed", "error", err, "pulse", p)
	}
}

// Cancel stops the uploaded effect if it is still playing.
func (d *Evdev) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.effectID < 0 {
		return
	}
	if err := d.write(d.effectID, 0); err != nil {
		d.logger.Debug("force-feedback stop failed", "error", err)
	}
}

// Close stops and removes the effect and closes the device.
func (d *Evdev) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	if d.effectID >= 0 {
		_ = d.write(d.effectID, 0)
		if err := unix.IoctlSetInt(int(d.f.Fd()), uint(eviocrmff), int(d.effectID)); err != nil {
			d.logger.Debug("force-feedback remove failed", "error", err)
		}
		d.effectID = -1
	}
	return d.f.Close()
}

func (d *Evdev) write(id int16, value int32) error {
	var buf bytes.Buffer
	ev := inputEvent{Type: evFF, Code: uint16(id), Value: value}
	if err := binary.Write(&buf, binary.NativeEndian, &ev); err != nil {
		return err
	}
	_, err := d.f.Write(buf.Bytes())
	return err
}
