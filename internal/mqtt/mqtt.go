// Package mqtt publishes controller events and accepts commands over MQTT,
// with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/relay-lights/internal/events"
	"github.com/sweeney/relay-lights/internal/logic"
)

// DefaultPrefix is the topic prefix used when none is configured.
const DefaultPrefix = "relay-lights"

// Topics under a prefix.
func TopicEvents(prefix string) string        { return prefix + "/events" }
func TopicSystem(prefix string) string        { return prefix + "/system" }
func TopicCommand(prefix string) string       { return prefix + "/command" }
func TopicCommandResult(prefix string) string { return prefix + "/command/result" }

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a controller event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event events.ControllerEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Lights LightsPayload `json:"lights"`
}

// LightsPayload contains the controller event details.
type LightsPayload struct {
	Timestamp string   `json:"timestamp"`
	Event     string   `json:"event"`
	Mode      string   `json:"mode"`
	Power     bool     `json:"power"`
	Pattern   string   `json:"pattern"`
	Celsius   *float64 `json:"celsius,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

// FormatPayload creates the JSON payload for a controller event.
func FormatPayload(event events.ControllerEvent) ([]byte, error) {
	e := event.Event
	payload := Payload{
		Lights: LightsPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(e.Type),
			Mode:      string(e.Mode),
			Power:     e.Power,
			Pattern:   string(e.Pattern),
			Detail:    e.Detail,
		},
	}
	if e.Type == logic.EventOverheat || e.Type == logic.EventOverheatCleared {
		c := e.Celsius
		payload.Lights.Celsius = &c
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
