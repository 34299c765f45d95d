package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/relay-lights/internal/config"
	"github.com/sweeney/relay-lights/internal/control"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/mqtt"
	"github.com/sweeney/relay-lights/internal/sensor"
	"github.com/sweeney/relay-lights/internal/store"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "garden")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected network info")
	}
	if info.IP != "192.168.1.100" || info.SSID != "garden" || info.Type != "wifi" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil, got %+v", info)
	}
}

func TestSignalName(t *testing.T) {
	tests := map[os.Signal]string{
		syscall.SIGINT:  "SIGINT",
		syscall.SIGTERM: "SIGTERM",
		syscall.SIGHUP:  "UNKNOWN",
	}
	for sig, want := range tests {
		if got := signalName(sig); got != want {
			t.Errorf("signalName(%v) = %q, want %q", sig, got, want)
		}
	}
}

func TestParseFrame(t *testing.T) {
	good := map[string]logic.Frame{"0": 0, "255": 0xFF, "0x0f": 0x0F, "0b1010": 0x0A}
	for in, want := range good {
		got, err := parseFrame(in)
		if err != nil || got != want {
			t.Errorf("parseFrame(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, in := range []string{"256", "-1", "lights", ""} {
		if _, err := parseFrame(in); err == nil {
			t.Errorf("parseFrame(%q): expected error", in)
		}
	}
}

func TestWriteFrameActiveLow(t *testing.T) {
	w := gpio.NewFakeWriter(logic.NumChannels)
	if err := writeFrame(w, 0x05, true); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	// Energised channels are driven low.
	if got := w.Levels(); got != 0xFA {
		t.Errorf("levels = %08b, want 11111010", got)
	}

	if err := writeFrame(w, 0x05, false); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	if got := w.Levels(); got != 0x05 {
		t.Errorf("levels = %08b, want 00000101", got)
	}
}

func TestWriteFrameReportsFailure(t *testing.T) {
	w := gpio.NewFakeWriter(logic.NumChannels)
	w.FailChannel(3, errors.New("line busy"))
	if err := writeFrame(w, 0xFF, false); err == nil {
		t.Error("expected error")
	}
}

func TestControllerConfig(t *testing.T) {
	opts := config.Defaults()
	opts.PlaylistOrder = "sequential"
	opts.PlaylistMembers = []string{"chase", "wave"}
	opts.ThermalIntervalS = 30

	cfg, err := controllerConfig(&opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PlaylistOrder != logic.OrderSequential {
		t.Errorf("order = %q", cfg.PlaylistOrder)
	}
	if len(cfg.Playlist) != 2 || cfg.Playlist[1] != logic.PatternWave {
		t.Errorf("playlist = %v", cfg.Playlist)
	}
	if cfg.ThermalIntervalMs != 30000 {
		t.Errorf("interval = %d", cfg.ThermalIntervalMs)
	}
	if !cfg.ActiveLow {
		t.Error("expected active low from defaults")
	}

	opts.PlaylistMembers = []string{"disco"}
	if _, err := controllerConfig(&opts); !errors.Is(err, logic.ErrUnknownPattern) {
		t.Errorf("expected ErrUnknownPattern, got %v", err)
	}
	opts.PlaylistMembers = nil
	opts.PlaylistOrder = "random"
	if _, err := controllerConfig(&opts); err == nil {
		t.Error("expected error for unknown order")
	}
}

func TestFormatSettings(t *testing.T) {
	s := logic.DefaultSettings()
	s.SunsetEnabled = true
	s.SunsetOffset = -15
	out := formatSettings(s)
	for _, want := range []string{"mode: AUTO", "pattern: chase", "window: 18:00-23:00", "sunset: on (offset -15 min)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.toml")
	st, err := store.Open(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	st.Persist(logic.KeyPattern, "wave")
	st.Persist(logic.KeySpeedMs, 250)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"state", "--config", "", "--state-file", path})
	if err := root.Execute(); err != nil {
		t.Fatalf("state: %v", err)
	}
	for _, want := range []string{"pattern = wave", "speed_ms = 250", "pattern: wave", "speed: 250ms"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"state", "--config", "", "--thermal-trip-c", "40", "--thermal-recover-c", "45"})
	if err := root.Execute(); err == nil {
		t.Error("expected validation error")
	}
}

// daemonFixture wires the daemon to fakes.
type daemonFixture struct {
	d      *lightsDaemon
	writer *gpio.FakeWriter
	pub    *mqtt.FakePublisher
	store  *store.Store
	tick   chan time.Time
	sig    chan os.Signal
	done   chan error
}

func newDaemonFixture(t *testing.T, at time.Time) *daemonFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	opts := config.Defaults()
	opts.HTTPAddr = ""
	opts.MQTTBroker = "tcp://broker.test:1883"

	st, err := store.Open(filepath.Join(t.TempDir(), "state.toml"), logger)
	if err != nil {
		t.Fatal(err)
	}

	f := &daemonFixture{
		writer: gpio.NewFakeWriter(logic.NumChannels),
		pub:    mqtt.NewFakePublisher(),
		store:  st,
		tick:   make(chan time.Time),
		sig:    make(chan os.Signal, 1),
		done:   make(chan error, 1),
	}
	f.pub.SetConnected(true)

	e := edges{
		output: f.writer,
		thermo: sensor.NewFake(30),
		store:  st,
		now:    func() time.Time { return at },
		loc:    time.UTC,
		rand:   rand.New(rand.NewPCG(1, 2)),
		newPublisher: func(mqtt.Commander) (mqtt.Publisher, error) {
			return f.pub, nil
		},
	}
	d, err := newDaemon(&opts, e, logger)
	if err != nil {
		t.Fatalf("newDaemon: %v", err)
	}
	f.d = d

	go func() { f.done <- d.run(f.tick, f.sig) }()
	return f
}

func (f *daemonFixture) stop(t *testing.T, sig os.Signal) {
	t.Helper()
	f.sig <- sig
	select {
	case err := <-f.done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop")
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

func hasEvent(pub *mqtt.FakePublisher, typ logic.EventType) bool {
	for _, e := range pub.Events() {
		if e.Event.Type == typ {
			return true
		}
	}
	return false
}

func TestDaemonStartupAndShutdown(t *testing.T) {
	f := newDaemonFixture(t, time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC))

	f.tick <- time.Time{}
	waitFor(t, func() bool { return hasEvent(f.pub, logic.EventPowerOn) })

	f.stop(t, syscall.SIGTERM)

	sys := f.pub.SystemEvents()
	if len(sys) < 2 {
		t.Fatalf("expected STARTUP and SHUTDOWN, got %d system events", len(sys))
	}
	if sys[0].Event != "STARTUP" || !sys[0].Retained {
		t.Errorf("first system event = %+v", sys[0])
	}
	last := sys[len(sys)-1]
	if last.Event != "SHUTDOWN" || last.Reason != "SIGTERM" {
		t.Errorf("last system event = %s/%s, want SHUTDOWN/SIGTERM", last.Event, last.Reason)
	}
	if !strings.Contains(string(f.pub.SystemPayloads()[len(sys)-1]), `"reason":"SIGTERM"`) {
		t.Errorf("shutdown payload missing reason: %s", f.pub.SystemPayloads()[len(sys)-1])
	}
	if !f.pub.Closed() {
		t.Error("publisher should be closed on shutdown")
	}
}

func TestDaemonOutsideWindowStaysDark(t *testing.T) {
	f := newDaemonFixture(t, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))

	f.tick <- time.Time{}
	f.tick <- time.Time{}
	f.stop(t, syscall.SIGINT)

	if hasEvent(f.pub, logic.EventPowerOn) {
		t.Error("lights should stay off outside the window")
	}
	// Every line is released: active-low relays are off when high.
	if got := f.writer.Levels(); got != 0xFF {
		t.Errorf("levels = %08b, want all released", got)
	}
}

func TestDaemonCommandPersists(t *testing.T) {
	f := newDaemonFixture(t, time.Date(2026, 10, 16, 19, 0, 0, 0, time.UTC))
	f.tick <- time.Time{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := f.d.loop.Submit(ctx, control.Request{ID: "t1", Source: "test", Command: control.CmdMode, Value: "MANUAL_OFF"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.Applied != "MANUAL_OFF" {
		t.Errorf("applied = %q", res.Applied)
	}
	waitFor(t, func() bool { return hasEvent(f.pub, logic.EventPowerOff) })

	f.stop(t, syscall.SIGTERM)

	if got := f.store.String(logic.KeyMode, ""); got != "MANUAL_OFF" {
		t.Errorf("persisted mode = %q, want MANUAL_OFF", got)
	}
	if snap := f.d.tracker.Snapshot(); snap.Controller.Mode != logic.ModeManualOff {
		t.Errorf("tracker mode = %s", snap.Controller.Mode)
	}
}
