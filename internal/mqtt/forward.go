package mqtt

import (
	"log/slog"
	"time"

	"github.com/sweeney/relay-lights/internal/events"
	"github.com/sweeney/relay-lights/internal/status"
)

// Forward subscribes pub to the bus. Controller events are published as
// they arrive and heartbeats are published as retained status snapshots.
// The returned function unsubscribes.
func Forward(bus *events.Bus, pub Publisher, tracker *status.Tracker, logger *slog.Logger) func() {
	conn, _ := pub.(ConnectionStatus)
	syncConn := func() {
		if conn != nil && tracker != nil {
			tracker.SetMQTTConnected(conn.IsConnected())
		}
	}

	offEvents := bus.Subscribe(func(ev events.ControllerEvent) {
		if err := pub.Publish(ev); err != nil {
			logger.Warn("Publish failed", "event", ev.Event.Type, "error", err)
		}
		syncConn()
	})
	offHeartbeat := bus.Subscribe(func(ev events.HeartbeatEvent) {
		syncConn()
		sys := SystemEvent{Timestamp: ev.Timestamp, Event: "HEARTBEAT", Retained: true}
		if tracker != nil {
			sys.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := pub.PublishSystem(sys); err != nil {
			logger.Warn("Heartbeat publish failed", "error", err)
		}
	})
	return func() {
		offEvents()
		offHeartbeat()
	}
}

// PublishLifecycle publishes a retained STARTUP or SHUTDOWN status snapshot.
func PublishLifecycle(pub Publisher, tracker *status.Tracker, event, reason string) error {
	sys := SystemEvent{Timestamp: time.Now(), Event: event, Reason: reason, Retained: true}
	if tracker != nil {
		sys.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), event, reason)
	}
	return pub.PublishSystem(sys)
}
