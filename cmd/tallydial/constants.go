package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02
	EV_ABS = 0x03

	SYN_REPORT  = 0
	SYN_DROPPED = 3

	BTN_LEFT  = 0x110
	BTN_TOUCH = 0x14a

	ABS_X = 0x00
	ABS_Y = 0x01

	REL_X = 0x00
	REL_Y = 0x01
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Daemon defaults
const (
	defaultSocketPath = "/tmp/tallydial.sock"
	defaultHTTPPort   = 3002

	// Fallback input plane for relative-only pointers (mice) when no size is configured.
	defaultSurfaceSize = 1000.0

	// Event bus capacity. Pointer devices report at up to ~1kHz; the daemon loop drains
	// much faster than that, so this only absorbs scheduling jitter.
	eventBufferSize = 256

	// Reducer broadcasts waiting for the WS broadcaster.
	broadcastBufferSize = 256

	// Maximum time an HTTP handler waits for a snapshot from the daemon loop.
	snapshotTimeout = time.Second

	// epoll_wait timeout so the reader notices shutdown.
	inputPollTimeoutMS = 250
)
