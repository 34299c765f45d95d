package status

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/relay-lights/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Ready         bool           `json:"ready"`
	LocalTime     string         `json:"local_time,omitempty"`
	Lights        LightsJSON     `json:"lights"`
	Schedule      ScheduleJSON   `json:"schedule"`
	Thermal       ThermalJSON    `json:"thermal"`
	Relays        RelaysJSON     `json:"relays"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        map[string]int `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// LightsJSON describes what the lights are doing.
type LightsJSON struct {
	Mode           string `json:"mode"`
	RelaysEnabled  bool   `json:"relays_enabled"`
	Pattern        string `json:"pattern"`
	SpeedMs        uint32 `json:"speed_ms"`
	ShuffleEnabled bool   `json:"shuffle_enabled"`
	HoldSeconds    int    `json:"hold_seconds"`
	AllOnActive    bool   `json:"all_on_active"`
}

// ScheduleJSON describes the active window.
type ScheduleJSON struct {
	On              string `json:"on"`
	Off             string `json:"off"`
	SunsetEnabled   bool   `json:"sunset_enabled"`
	SunsetOffsetMin int    `json:"sunset_offset_min"`
	Sunset          string `json:"sunset,omitempty"`
}

// ThermalJSON reports the enclosure interlock.
type ThermalJSON struct {
	Overheated     bool     `json:"overheated"`
	Celsius        *float64 `json:"celsius,omitempty"`
	SensorFailures int      `json:"sensor_failures"`
}

// RelaysJSON reports relay outputs and counters.
type RelaysJSON struct {
	Frame         string `json:"frame"`
	Toggles       uint64 `json:"toggles"`
	Suppressed    uint64 `json:"suppressed"`
	WriteErrors   uint64 `json:"write_errors"`
	Steps         uint64 `json:"steps"`
	PersistErrors int    `json:"persist_errors"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	TickMs        int64   `json:"tick_ms"`
	HeartbeatMs   int64   `json:"heartbeat_ms"`
	Broker        string  `json:"broker"`
	HTTPAddr      string  `json:"http_addr"`
	Sensor        string  `json:"sensor"`
	TripC         float64 `json:"trip_c"`
	RecoverC      float64 `json:"recover_c"`
	PlaylistOrder string  `json:"playlist_order"`
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Controller
	inner := StatusInner{
		Ready: snap.Ready,
		Lights: LightsJSON{
			Mode:           string(c.Mode),
			RelaysEnabled:  c.RelaysEnabled,
			Pattern:        string(c.Pattern),
			SpeedMs:        c.SpeedMs,
			ShuffleEnabled: c.ShuffleEnabled,
			HoldSeconds:    c.HoldSeconds,
			AllOnActive:    c.AllOnActive,
		},
		Schedule: ScheduleJSON{
			On:              c.On,
			Off:             c.Off,
			SunsetEnabled:   c.SunsetEnabled,
			SunsetOffsetMin: c.SunsetOffsetMin,
			Sunset:          c.Sunset,
		},
		Thermal: ThermalJSON{
			Overheated:     c.Overheated,
			SensorFailures: c.SensorFailures,
		},
		Relays: RelaysJSON{
			Frame:         c.Frame.String(),
			Toggles:       c.Toggles,
			Suppressed:    c.Suppressed,
			WriteErrors:   c.WriteErrors,
			Steps:         c.Steps,
			PersistErrors: c.PersistErrors,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        make(map[string]int, len(c.Counts)),
		Config: ConfigJSON{
			TickMs:        snap.Config.TickMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			Sensor:        snap.Config.Sensor,
			TripC:         snap.Config.TripC,
			RecoverC:      snap.Config.RecoverC,
			PlaylistOrder: snap.Config.PlaylistOrder,
		},
	}
	if c.LocalTime.Valid {
		inner.LocalTime = fmt.Sprintf("%02d:%02d", c.LocalTime.Hour, c.LocalTime.Minute)
	}
	if c.HaveCelsius {
		celsius := c.Celsius
		inner.Thermal.Celsius = &celsius
	}
	for k, v := range c.Counts {
		inner.Counts[strings.ToLower(string(k))] = v
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatText renders the controller status as key: value lines.
func FormatText(st logic.Status) string {
	var b strings.Builder
	local := "unsynced"
	if st.LocalTime.Valid {
		local = fmt.Sprintf("%02d:%02d", st.LocalTime.Hour, st.LocalTime.Minute)
	}
	fmt.Fprintf(&b, "time: %s\n", local)
	fmt.Fprintf(&b, "mode: %s\n", st.Mode)
	fmt.Fprintf(&b, "relays: %s\n", onOff(st.RelaysEnabled))
	fmt.Fprintf(&b, "window: %s-%s\n", st.On, st.Off)
	fmt.Fprintf(&b, "sunset: %s (offset %+d min)\n", onOff(st.SunsetEnabled), st.SunsetOffsetMin)
	fmt.Fprintf(&b, "pattern: %s\n", st.Pattern)
	fmt.Fprintf(&b, "speed: %dms\n", st.SpeedMs)
	fmt.Fprintf(&b, "shuffle: %s (hold %ds)\n", onOff(st.ShuffleEnabled), st.HoldSeconds)
	fmt.Fprintf(&b, "all on: %s\n", onOff(st.AllOnActive))
	if st.Overheated {
		b.WriteString("overheated: yes\n")
	}
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
