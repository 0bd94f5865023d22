//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
)

type inputDevice struct {
	f          *os.File
	absX, absY *axisRange
}

// Pointer devices are read through evdev, which only exists on Linux.
// IPC and HTTP keep working elsewhere.
func openInputDevices(paths []string, logger *slog.Logger) []inputDevice {
	if len(paths) > 0 {
		logger.Warn("input devices are only supported on Linux; ignoring", "devices", paths)
	}
	return nil
}

func surfaceFromDevices([]inputDevice) Surface {
	return Surface{Width: defaultSurfaceSize, Height: defaultSurfaceSize}
}

func runInput(ctx context.Context, devs []inputDevice, surface Surface, events chan<- Event, logger *slog.Logger) error {
	return errors.New("input devices are only supported on Linux")
}
