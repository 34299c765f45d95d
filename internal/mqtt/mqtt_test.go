package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/relay-lights/internal/control"
	"github.com/sweeney/relay-lights/internal/events"
	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/status"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func controllerEvent(typ logic.EventType) events.ControllerEvent {
	return events.ControllerEvent{
		Event: logic.Event{
			Type:    typ,
			Mode:    logic.ModeAuto,
			Power:   true,
			Pattern: logic.PatternChase,
		},
		Timestamp: time.Date(2026, 10, 16, 18, 0, 5, 0, time.UTC),
	}
}

func TestTopics(t *testing.T) {
	tests := map[string]string{
		TopicEvents("relay-lights"):        "relay-lights/events",
		TopicSystem("relay-lights"):        "relay-lights/system",
		TopicCommand("garden/lights"):      "garden/lights/command",
		TopicCommandResult("relay-lights"): "relay-lights/command/result",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("topic: got %s, want %s", got, want)
		}
	}
}

func TestFormatPayloadExactJSON(t *testing.T) {
	payload, err := FormatPayload(controllerEvent(logic.EventPowerOn))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"lights":{"timestamp":"2026-10-16T18:00:05Z","event":"POWER_ON","mode":"AUTO","power":true,"pattern":"chase"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatPayloadOverheatCarriesCelsius(t *testing.T) {
	ev := controllerEvent(logic.EventOverheat)
	ev.Power = false
	ev.Celsius = 51.5

	payload, err := FormatPayload(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Lights.Celsius == nil || *parsed.Lights.Celsius != 51.5 {
		t.Errorf("celsius = %v, want 51.5", parsed.Lights.Celsius)
	}
	if parsed.Lights.Power {
		t.Error("power should be false")
	}
}

func TestFormatPayloadDetailAndTimezone(t *testing.T) {
	ev := controllerEvent(logic.EventSunsetFetchFailed)
	ev.Detail = "status 401"
	ev.Timestamp = time.Date(2026, 10, 16, 19, 0, 0, 0, time.FixedZone("BST", 3600))

	payload, _ := FormatPayload(ev)
	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Lights.Timestamp != "2026-10-16T18:00:00Z" {
		t.Errorf("timestamp not converted to UTC: %s", parsed.Lights.Timestamp)
	}
	if parsed.Lights.Detail != "status 401" {
		t.Errorf("detail = %q", parsed.Lights.Detail)
	}
	if parsed.Lights.Celsius != nil {
		t.Error("celsius should be omitted for non-thermal events")
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", payload, expected)
	}
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	if strings.Contains(string(payload), "reason") {
		t.Errorf("reason should be omitted: %s", payload)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not returned verbatim: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	if err := f.Publish(controllerEvent(logic.EventPowerOn)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events()) != 1 || len(f.Payloads()) != 1 {
		t.Errorf("expected 1 event and payload, got %d/%d", len(f.Events()), len(f.Payloads()))
	}
	if sys := f.SystemEvents(); len(sys) != 1 || !sys[0].Retained {
		t.Errorf("system events = %+v", sys)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(controllerEvent(logic.EventPowerOn)); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Error("expected system publish error")
	}
	if len(f.Events()) != 0 || len(f.SystemEvents()) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherCloseAndReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(controllerEvent(logic.EventPowerOn))
	f.Close()
	if !f.Closed() {
		t.Error("expected Closed after Close")
	}

	f.Reset()
	if f.Closed() || len(f.Events()) != 0 {
		t.Error("Reset should clear recorded state")
	}
	if err := f.Publish(controllerEvent(logic.EventPowerOff)); err != nil {
		t.Errorf("publisher should be reusable after Reset: %v", err)
	}
}

type fakeCommander struct {
	mu   sync.Mutex
	reqs []control.Request
	res  logic.CommandResult
	err  error
}

func (c *fakeCommander) Submit(_ context.Context, req control.Request) (logic.CommandResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return c.res, c.err
}

func TestParseCommandValueTypes(t *testing.T) {
	tests := []struct {
		payload string
		want    string
	}{
		{`{"command":"mode","value":"AUTO"}`, "AUTO"},
		{`{"command":"speed","value":250}`, "250"},
		{`{"command":"shuffle","value":true}`, "true"},
		{`{"command":"allon"}`, ""},
		{`{"command":"allon","value":null}`, ""},
	}
	for _, tt := range tests {
		req, err := ParseCommand([]byte(tt.payload))
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.payload, err)
			continue
		}
		if req.Value != tt.want {
			t.Errorf("%s: value = %q, want %q", tt.payload, req.Value, tt.want)
		}
		if req.Source != "mqtt" {
			t.Errorf("%s: source = %q", tt.payload, req.Source)
		}
		if req.ID == "" {
			t.Errorf("%s: expected generated id", tt.payload)
		}
	}
}

func TestParseCommandRejectsBadInput(t *testing.T) {
	for _, p := range []string{``, `not json`, `{"value":1}`, `{"command":"speed","value":[1]}`} {
		if _, err := ParseCommand([]byte(p)); err == nil {
			t.Errorf("%q: expected error", p)
		}
	}
}

func TestHandleCommandSuccess(t *testing.T) {
	cmd := &fakeCommander{res: logic.CommandResult{Command: "speed", Applied: "5000", Clamped: true}}

	out := HandleCommand(context.Background(), cmd, []byte(`{"id":"abc","command":"speed","value":9000}`))

	var reply CommandReply
	if err := json.Unmarshal(out, &reply); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if reply.ID != "abc" {
		t.Errorf("id = %q, want abc", reply.ID)
	}
	if reply.Result == nil || !reply.Result.Clamped || reply.Result.Applied != "5000" {
		t.Errorf("result = %+v", reply.Result)
	}
	if len(cmd.reqs) != 1 || cmd.reqs[0].Value != "9000" {
		t.Errorf("requests = %+v", cmd.reqs)
	}
}

func TestHandleCommandError(t *testing.T) {
	cmd := &fakeCommander{err: control.ErrUnknownCommand}
	out := HandleCommand(context.Background(), cmd, []byte(`{"command":"dance"}`))

	var reply CommandReply
	if err := json.Unmarshal(out, &reply); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if reply.Error == "" || reply.Result != nil {
		t.Errorf("expected error reply, got %+v", reply)
	}
}

func TestHandleCommandMalformed(t *testing.T) {
	cmd := &fakeCommander{}
	out := HandleCommand(context.Background(), cmd, []byte(`{`))
	if !strings.Contains(string(out), `"error"`) {
		t.Errorf("expected error reply, got %s", out)
	}
	if len(cmd.reqs) != 0 {
		t.Error("malformed command should not be submitted")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestForwardPublishesControllerEvents(t *testing.T) {
	bus := events.New()
	defer bus.Close()
	pub := NewFakePublisher()
	pub.SetConnected(true)
	tracker := status.NewTracker(time.Now(), status.Config{})

	off := Forward(bus, pub, tracker, discard())
	defer off()

	bus.Publish(controllerEvent(logic.EventPowerOn))
	waitFor(t, func() bool { return len(pub.Events()) == 1 })

	if got := pub.Events()[0].Event.Type; got != logic.EventPowerOn {
		t.Errorf("event = %s, want POWER_ON", got)
	}
	waitFor(t, func() bool { return tracker.Snapshot().MQTTConnected })
}

func TestForwardPublishesHeartbeatSnapshot(t *testing.T) {
	bus := events.New()
	defer bus.Close()
	pub := NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	off := Forward(bus, pub, tracker, discard())
	defer off()

	bus.Publish(events.HeartbeatEvent{Timestamp: time.Now()})
	waitFor(t, func() bool { return len(pub.SystemEvents()) == 1 })

	sys := pub.SystemEvents()[0]
	if sys.Event != "HEARTBEAT" || !sys.Retained {
		t.Errorf("system event = %+v", sys)
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads()[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("status event = %q", parsed.Status.Event)
	}
}

func TestForwardSurvivesPublishErrors(t *testing.T) {
	bus := events.New()
	defer bus.Close()
	pub := NewFakePublisher()
	pub.PublishError = errors.New("not connected")

	off := Forward(bus, pub, nil, discard())
	defer off()

	bus.Publish(controllerEvent(logic.EventPowerOn))
	bus.Publish(events.HeartbeatEvent{Timestamp: time.Now()})
	waitFor(t, func() bool { return len(pub.SystemEvents()) == 1 })
}

func TestPublishLifecycle(t *testing.T) {
	pub := NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{Broker: "tcp://broker:1883"})

	if err := PublishLifecycle(pub, tracker, "SHUTDOWN", "SIGTERM"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads()[0], &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" || parsed.Status.Reason != "SIGTERM" {
		t.Errorf("status = %+v", parsed.Status)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	payload, _ := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	var parsed SystemPayload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.System.Reason != "MQTT_DISCONNECT" {
		t.Errorf("reason = %q", parsed.System.Reason)
	}
}
