// Package metrics exposes controller state and counters to Prometheus.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sweeney/relay-lights/internal/events"
	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/status"
)

const namespace = "relay_lights"

// Snapshotter provides the latest daemon status.
type Snapshotter interface {
	Snapshot() status.Snapshot
}

// Metrics owns the registry and the event-driven counters.
type Metrics struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	commands *prometheus.CounterVec
}

// New registers gauges backed by src on a fresh registry.
func New(src Snapshotter) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Controller events by type",
		}, []string{"type"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands handled by source and outcome",
		}, []string{"command", "source", "outcome"}),
	}

	gauge := func(name, help string, fn func(logic.Status) float64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(src.Snapshot().Controller) })
	}
	counter := func(name, help string, fn func(logic.Status) float64) {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(src.Snapshot().Controller) })
	}

	gauge("relays_enabled", "1 while the lights are powered", func(s logic.Status) float64 { return boolf(s.RelaysEnabled) })
	gauge("overheated", "1 while the thermal interlock is active", func(s logic.Status) float64 { return boolf(s.Overheated) })
	gauge("all_on_active", "1 while the all-on hold is active", func(s logic.Status) float64 { return boolf(s.AllOnActive) })
	gauge("enclosure_celsius", "Last enclosure temperature reading", func(s logic.Status) float64 { return s.Celsius })
	gauge("frame", "Current relay frame as a bitmask", func(s logic.Status) float64 { return float64(s.Frame) })
	gauge("speed_ms", "Pattern step interval", func(s logic.Status) float64 { return float64(s.SpeedMs) })
	counter("relay_toggles_total", "Relay state changes", func(s logic.Status) float64 { return float64(s.Toggles) })
	counter("relay_suppressed_total", "Relay changes deferred by the minimum dwell", func(s logic.Status) float64 { return float64(s.Suppressed) })
	counter("relay_write_errors_total", "Failed relay writes", func(s logic.Status) float64 { return float64(s.WriteErrors) })
	counter("pattern_steps_total", "Pattern frames rendered", func(s logic.Status) float64 { return float64(s.Steps) })
	counter("sensor_failures_total", "Failed temperature reads", func(s logic.Status) float64 { return float64(s.SensorFailures) })
	counter("persist_errors_total", "Settings that could not be saved", func(s logic.Status) float64 { return float64(s.PersistErrors) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mqtt_connected",
		Help:      "1 while the MQTT client is connected",
	}, func() float64 { return boolf(src.Snapshot().MQTTConnected) })

	return m
}

// Attach counts events published on bus. The returned function unsubscribes.
func (m *Metrics) Attach(bus *events.Bus) func() {
	unsubEvents := bus.Subscribe(func(e events.ControllerEvent) {
		m.events.WithLabelValues(strings.ToLower(string(e.Event.Type))).Inc()
	})
	unsubCommands := bus.Subscribe(func(e events.CommandEvent) {
		outcome := "applied"
		switch {
		case e.Err != "":
			outcome = "rejected"
		case e.Result.Clamped:
			outcome = "clamped"
		}
		m.commands.WithLabelValues(e.Command, e.Source, outcome).Inc()
	})
	return func() {
		unsubEvents()
		unsubCommands()
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
