package main

import (
	"context"
	"log/slog"
	"time"

	"tallydial/haptic"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Design rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands + broadcasts.
//   - The daemon loop is the only place that touches the haptic port.
//   - Broadcasts are handed to the WS broadcaster without blocking.
//   - Explicit event and command queues (no nested/re-entrant execution).
//
// There is no periodic tick: every state change is driven by an input event.
// ============================================================================

// runDaemon reduces events from all sources until ctx is canceled or events is closed.
// On exit it cancels any pulse still playing.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	port haptic.Port,
	cfg ReducerConfig,
	state *DaemonState,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}

	defer runEffect(port, CmdCancelPulse{}, logger)

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}
	enqueueCommands := func(cmds []Command) {
		if len(cmds) == 0 {
			return
		}
		cmdQueue = append(cmdQueue, cmds...)
	}
	publish := func(bs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bs {
			select {
			case broadcasts <- b:
			default:
				logger.Warn("broadcast queue full, dropping state broadcast", "broadcast", b)
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			enqueueCommands(rr.Commands)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]
			runEffect(port, cmd, logger)
		}
	}

	logger.Debug("daemon loop starting", "checkpoints", cfg.Geometry.Checkpoints, "center_x", cfg.Center.X, "center_y", cfg.Center.Y)

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			if _, timed := ev.(TimedEvent); !timed {
				ev = TimedEvent{Event: ev, At: time.Now()}
			}
			enqueueEvent(ev)
			flushEvents()
			flushCommands()
		}
	}
}
