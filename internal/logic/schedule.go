package logic

import "fmt"

// Window is a daily on/off window in minutes of the day, [On, Off).
// When On > Off the window wraps past midnight.
type Window struct {
	On  int
	Off int
}

// Contains reports whether minute falls inside the window.
func (w Window) Contains(minute int) bool {
	if w.On <= w.Off {
		return w.On <= minute && minute < w.Off
	}
	return minute >= w.On || minute < w.Off
}

// ParseClock parses "HH:MM" into a minute of the day.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	for i := 0; i < len(s); i++ {
		if i != 2 && (s[i] < '0' || s[i] > '9') {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
		}
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	m := int(s[3]-'0')*10 + int(s[4]-'0')
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return h*60 + m, nil
}

// FormatClock renders a minute of the day as "HH:MM".
func FormatClock(minute int) string {
	minute = wrapMinute(minute)
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func wrapMinute(m int) int {
	m %= MinutesPerDay
	if m < 0 {
		m += MinutesPerDay
	}
	return m
}

// Sunset fetch cadence.
const (
	SunsetRefreshMs = 24 * 60 * 60 * 1000
	SunsetRetryMs   = 10 * 60 * 1000
)

// Schedule decides whether the relays should be powered in AUTO mode.
type Schedule struct {
	fixed Window

	sunsetEnabled bool
	offsetMin     int
	sunsetMinute  int
	haveSunset    bool

	fetchStarted bool
	lastFetch    Millis
	nextFetchMs  uint32
	inFlight     bool
}

// NewSchedule creates a schedule with a fixed window.
func NewSchedule(fixed Window) *Schedule {
	return &Schedule{fixed: fixed}
}

// SetFixed replaces the fixed window.
func (s *Schedule) SetFixed(w Window) {
	s.fixed = w
}

// Fixed returns the configured fixed window.
func (s *Schedule) Fixed() Window {
	return s.fixed
}

// SetSunsetEnabled switches between the fixed and sunset-anchored on time.
func (s *Schedule) SetSunsetEnabled(on bool) {
	s.sunsetEnabled = on
}

// SunsetEnabled reports whether sunset mode is on.
func (s *Schedule) SunsetEnabled() bool {
	return s.sunsetEnabled
}

// ClampOffset limits a sunset offset to ±MaxSunsetOffsetMin.
func ClampOffset(minutes int) int {
	switch {
	case minutes > MaxSunsetOffsetMin:
		return MaxSunsetOffsetMin
	case minutes < -MaxSunsetOffsetMin:
		return -MaxSunsetOffsetMin
	}
	return minutes
}

// SetOffset sets the sunset offset, clamped, and returns the stored value.
func (s *Schedule) SetOffset(minutes int) int {
	s.offsetMin = ClampOffset(minutes)
	return s.offsetMin
}

// Offset returns the sunset offset in minutes.
func (s *Schedule) Offset() int {
	return s.offsetMin
}

// Window returns the effective window. In sunset mode the on time is the
// last fetched sunset plus the offset; until a fetch succeeds the fixed on
// time is used.
func (s *Schedule) Window() Window {
	w := s.fixed
	if s.sunsetEnabled && s.haveSunset {
		w.On = wrapMinute(s.sunsetMinute + s.offsetMin)
	}
	return w
}

// ShouldBeOn returns the recommended power state. Without a valid local
// time the current state is returned unchanged.
func (s *Schedule) ShouldBeOn(local LocalTime, current bool) bool {
	if !local.Valid {
		return current
	}
	return s.Window().Contains(local.MinuteOfDay())
}

// FetchDue reports whether a sunset fetch should be started.
func (s *Schedule) FetchDue(now Millis) bool {
	if !s.sunsetEnabled || s.inFlight {
		return false
	}
	return !s.fetchStarted || now.Since(s.lastFetch) >= s.nextFetchMs
}

// FetchStarted marks a fetch as in flight.
func (s *Schedule) FetchStarted(now Millis) {
	s.inFlight = true
	s.fetchStarted = true
	s.lastFetch = now
}

// ApplySunset consumes a fetch result. A failure keeps the previous sunset
// and schedules an early retry.
func (s *Schedule) ApplySunset(minute int, ok bool, now Millis) {
	s.inFlight = false
	s.fetchStarted = true
	s.lastFetch = now
	if !ok {
		s.nextFetchMs = SunsetRetryMs
		return
	}
	s.sunsetMinute = wrapMinute(minute)
	s.haveSunset = true
	s.nextFetchMs = SunsetRefreshMs
}

// Sunset returns the last fetched sunset minute of day.
func (s *Schedule) Sunset() (int, bool) {
	return s.sunsetMinute, s.haveSunset
}
