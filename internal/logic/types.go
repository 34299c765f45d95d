// Package logic contains the pure control core for the relay light controller.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Monotonic time is injected as Millis and wall-clock time as LocalTime.
package logic

import (
	"errors"
	"fmt"
)

// Millis is a wrapping millisecond counter from a monotonic clock.
type Millis uint32

// Since returns the elapsed milliseconds from earlier to m.
// Unsigned subtraction keeps the result correct across counter wraparound.
func (m Millis) Since(earlier Millis) uint32 {
	return uint32(m - earlier)
}

// LocalTime is the wall-clock time of day. Valid is false until the
// system clock has been synchronised.
type LocalTime struct {
	Hour   int
	Minute int
	Valid  bool
}

// MinuteOfDay returns Hour*60+Minute.
func (t LocalTime) MinuteOfDay() int {
	return t.Hour*60 + t.Minute
}

// Frame is a bitmask of desired channel states, bit i = channel i.
type Frame uint8

// NumChannels is the number of relay channels on the board.
const NumChannels = 8

// AllOnFrame energises every channel.
const AllOnFrame Frame = 0xFF

// On reports whether channel i is set in the frame.
func (f Frame) On(i int) bool {
	return f&(1<<uint(i)) != 0
}

// String renders the frame as eight binary digits, channel 7 first.
func (f Frame) String() string {
	return fmt.Sprintf("%08b", uint8(f))
}

// Timing and clamping constants.
const (
	// MinDwellMs is the minimum time a relay stays in a state before it may
	// be commanded to the opposite state.
	MinDwellMs = 200

	MaxSpeedMs     = 5000
	DefaultSpeedMs = 500

	MinHoldSeconds     = 10
	MaxHoldSeconds     = 3600
	DefaultHoldSeconds = 60

	MaxSunsetOffsetMin = 180

	MinutesPerDay = 1440
)

// Mode is the top-level operating mode.
type Mode string

const (
	ModeAuto      Mode = "AUTO"
	ModeManualOn  Mode = "MANUAL_ON"
	ModeManualOff Mode = "MANUAL_OFF"
)

// ParseMode accepts the mode names used by the command surfaces.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto", "AUTO":
		return ModeAuto, nil
	case "on", "manual_on", "MANUAL_ON":
		return ModeManualOn, nil
	case "off", "manual_off", "MANUAL_OFF":
		return ModeManualOff, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Errors returned by controller commands. State is unchanged when one is returned.
var (
	ErrUnknownPattern = errors.New("unknown pattern")
	ErrUnknownMode    = errors.New("unknown mode")
	ErrInvalidTime    = errors.New("invalid time, want HH:MM")
)

// EventType identifies a controller event.
type EventType string

const (
	EventPowerOn           EventType = "POWER_ON"
	EventPowerOff          EventType = "POWER_OFF"
	EventOverheat          EventType = "OVERHEAT"
	EventOverheatCleared   EventType = "OVERHEAT_CLEARED"
	EventPatternChanged    EventType = "PATTERN_CHANGED"
	EventAllOnStarted      EventType = "ALL_ON_STARTED"
	EventAllOnStopped      EventType = "ALL_ON_STOPPED"
	EventModeChanged       EventType = "MODE_CHANGED"
	EventSunsetUpdated     EventType = "SUNSET_UPDATED"
	EventSunsetFetchFailed EventType = "SUNSET_FETCH_FAILED"
	EventSensorReadFailed  EventType = "SENSOR_READ_FAILED"
)

// Event is a state change worth publishing.
type Event struct {
	Type    EventType
	At      Millis
	Mode    Mode
	Power   bool
	Pattern Pattern
	Celsius float64
	Detail  string
}

// EventCounts tracks the number of each event type since startup.
type EventCounts map[EventType]int

// Copy returns an independent copy of the counts.
func (c EventCounts) Copy() EventCounts {
	out := make(EventCounts, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Rand is the source of randomness for animations and shuffling.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Output drives one physical relay line. high is the electrical level.
type Output interface {
	Write(channel int, high bool) error
}

// Thermometer returns the latest enclosure temperature. It must not block.
type Thermometer interface {
	ReadCelsius() (float64, bool)
}

// Persister stores a configuration value under key.
type Persister interface {
	Persist(key string, value any) error
}
