package main

import (
	"log/slog"

	"tallydial/haptic"
)

// runEffect executes a single reducer-emitted Command against the haptic port or a
// snapshot requester.
//
// Design rules:
// - This function is allowed to perform I/O.
// - It must never call Reduce() directly.
// - It must not block: ports are fire-and-forget and snapshot replies are buffered.
func runEffect(port haptic.Port, cmd Command, logger *slog.Logger) {
	switch c := cmd.(type) {
	case CmdPulse:
		if port == nil {
			return
		}
		logger.Debug("haptic pulse", "tier", c.Pulse.Tier, "duration", c.Pulse.Duration, "strength", c.Pulse.Strength)
		port.Pulse(c.Pulse)

	case CmdCancelPulse:
		if port == nil {
			return
		}
		port.Cancel()

	case CmdPublishStateSnapshot:
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("snapshot reply dropped (requester not ready)")
		}

	default:
		logger.Warn("unknown command", "command", cmd.String())
	}
}
