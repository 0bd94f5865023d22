package main

import (
	"fmt"

	"tallydial/haptic"
)

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
// In this codebase, those are haptic output requests and snapshot replies.
type Command interface {
	commandMarker()
	String() string
}

// CmdPulse plays one pulse on the haptic port.
type CmdPulse struct {
	Pulse haptic.Pulse
}

func (CmdPulse) commandMarker()   {}
func (c CmdPulse) String() string { return fmt.Sprintf("CmdPulse(%s)", c.Pulse) }

// CmdCancelPulse stops whatever the haptic port is still playing.
type CmdCancelPulse struct{}

func (CmdCancelPulse) commandMarker() {}
func (CmdCancelPulse) String() string { return "CmdCancelPulse()" }

// CmdPublishStateSnapshot delivers a snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (c CmdPublishStateSnapshot) String() string {
	return fmt.Sprintf("CmdPublishStateSnapshot(count=%d)", c.Snapshot.Count)
}
