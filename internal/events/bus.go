// Package events carries control loop output to its consumers.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting.
// Each subscriber runs on its own goroutine, so a slow consumer never
// stalls the control loop.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case ControllerEvent:
		event.Publish(b.dispatcher, e)
	case CommandEvent:
		event.Publish(b.dispatcher, e)
	case HeartbeatEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type it accepts and returns an
// unsubscribe function. Unknown handler types are ignored.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(ControllerEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CommandEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(HeartbeatEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Close stops delivery to all subscribers.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}
