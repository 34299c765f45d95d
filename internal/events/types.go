package events

import (
	"time"

	"github.com/sweeney/relay-lights/internal/logic"
)

// Event type constants for kelindar/event.
const (
	TypeController uint32 = iota + 1
	TypeCommand
	TypeHeartbeat
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ControllerEvent wraps a controller state change with its wall time.
type ControllerEvent struct {
	logic.Event
	Timestamp time.Time
}

// Type returns the event type identifier for ControllerEvent.
func (e ControllerEvent) Type() uint32 { return TypeController }

// CommandEvent records a command handled by the control loop.
type CommandEvent struct {
	RequestID string
	Source    string
	Command   string
	Value     string
	Result    logic.CommandResult
	Err       string
	Timestamp time.Time
}

// Type returns the event type identifier for CommandEvent.
func (e CommandEvent) Type() uint32 { return TypeCommand }

// HeartbeatEvent is the periodic liveness summary.
type HeartbeatEvent struct {
	Uptime    time.Duration
	Counts    logic.EventCounts
	Timestamp time.Time
}

// Type returns the event type identifier for HeartbeatEvent.
func (e HeartbeatEvent) Type() uint32 { return TypeHeartbeat }
