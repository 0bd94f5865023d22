//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// deviceEvent is one raw event tagged with the index of the device it came from.
// hangup is set instead of ev when the device went away.
type deviceEvent struct {
	dev    int
	ev     inputEvent
	hangup bool
}

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// eviocgabs is _IOR('E', 0x40 + abs, struct input_absinfo).
func eviocgabs(abs uintptr) uintptr {
	const iocRead = 2
	return iocRead<<30 | unsafe.Sizeof(absInfo{})<<16 | uintptr('E')<<8 | (0x40 + abs)
}

// probeAbsAxis reads the range of one absolute axis. It fails for devices without it.
func probeAbsAxis(f *os.File, code uintptr) (*axisRange, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), eviocgabs(code), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return nil, errno
	}
	if info.Maximum <= info.Minimum {
		return nil, fmt.Errorf("empty range [%d, %d]", info.Minimum, info.Maximum)
	}
	return &axisRange{Min: info.Minimum, Max: info.Maximum}, nil
}

// inputDevice is an opened pointer device with its probed axes.
type inputDevice struct {
	f          *os.File
	absX, absY *axisRange
}

// openInputDevices opens every path that can be opened and probes its absolute axes.
// Devices that fail to open are logged and skipped.
func openInputDevices(paths []string, logger *slog.Logger) []inputDevice {
	var devs []inputDevice
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			logger.Warn("failed to open input device", "device", p, "error", err, "tip", "run as root or add user to 'input' group")
			continue
		}
		d := inputDevice{f: f}
		if r, err := probeAbsAxis(f, ABS_X); err == nil {
			d.absX = r
		}
		if r, err := probeAbsAxis(f, ABS_Y); err == nil {
			d.absY = r
		}
		logger.Info("input device opened", "device", p, "absolute", d.absX != nil && d.absY != nil)
		devs = append(devs, d)
	}
	return devs
}

// surfaceFromDevices derives the input plane from the first device with absolute axes.
func surfaceFromDevices(devs []inputDevice) Surface {
	for _, d := range devs {
		if d.absX != nil && d.absY != nil {
			return Surface{
				Width:  float64(d.absX.Max - d.absX.Min),
				Height: float64(d.absY.Max - d.absY.Min),
			}
		}
	}
	return Surface{Width: defaultSurfaceSize, Height: defaultSurfaceSize}
}

// runInput reads all devices, translates their events into drag events and sends them
// to the daemon. It returns when ctx is canceled or every device is gone.
func runInput(ctx context.Context, devs []inputDevice, surface Surface, events chan<- Event, logger *slog.Logger) error {
	if len(devs) == 0 {
		return errors.New("no input devices provided")
	}

	translators := make([]*pointerTranslator, len(devs))
	files := make([]*os.File, len(devs))
	for i, d := range devs {
		translators[i] = newPointerTranslator(surface, d.absX, d.absY)
		files[i] = d.f
	}

	raw := make(chan deviceEvent, eventBufferSize)
	readErr := make(chan error, 1)
	go func() {
		readErr <- readInputEventsEpoll(ctx, files, raw, logger)
		close(raw)
	}()

	send := func(out []Event) {
		for _, ev := range out {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}

	for de := range raw {
		t := translators[de.dev]
		if de.hangup {
			send(t.cancel())
			continue
		}
		send(t.translate(de.ev))
	}
	return <-readErr
}

// readInputEventsEpoll reads from multiple input devices using a single epoll instance.
//
// A device that hangs up is reported once through out (hangup=true) and removed; the
// reader keeps serving the others and returns an error only when none are left.
func readInputEventsEpoll(ctx context.Context, files []*os.File, out chan<- deviceEvent, logger *slog.Logger) error {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fdToDev := make(map[int]int, len(files))
	for i, f := range files {
		fd := int(f.Fd())
		fdToDev[fd] = i

		event := unix.EpollEvent{
			Events: unix.EPOLLIN,
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
		}
	}

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)

	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize*64)
	reader := bytes.NewReader(nil)

	drop := func(fd int) {
		dev := fdToDev[fd]
		_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(fdToDev, fd)
		select {
		case out <- deviceEvent{dev: dev, hangup: true}:
		case <-ctx.Done():
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if len(fdToDev) == 0 {
			return errors.New("all input devices are gone")
		}

		n, err := unix.EpollWait(epfd, epollEvents, inputPollTimeoutMS)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			dev, ok := fdToDev[fd]
			if !ok {
				continue
			}
			f := files[dev]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				logger.Warn("input device error/hangup", "device", f.Name())
				drop(fd)
				continue
			}

			nr, err := f.Read(buf)
			if err != nil {
				logger.Warn("input device read failed", "device", f.Name(), "error", err)
				drop(fd)
				continue
			}

			reader.Reset(buf[:nr-nr%evSize])
			for reader.Len() > 0 {
				var ev inputEvent
				if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
					break
				}
				select {
				case out <- deviceEvent{dev: dev, ev: ev}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
