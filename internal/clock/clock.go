// Package clock adapts wall and monotonic time to the controller's inputs.
package clock

import (
	"time"

	"github.com/sweeney/relay-lights/internal/logic"
)

// MinValidYear is the earliest year treated as a synchronised clock. A Pi
// without an RTC boots in 1970 until NTP catches up.
const MinValidYear = 2024

// Clock reports elapsed milliseconds since start and the local time of day.
type Clock struct {
	start time.Time
	now   func() time.Time
	loc   *time.Location
}

// New creates a Clock. A nil now uses time.Now; a nil loc uses time.Local.
func New(now func() time.Time, loc *time.Location) *Clock {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Clock{start: now(), now: now, loc: loc}
}

// Now returns the current wall time.
func (c *Clock) Now() time.Time { return c.now() }

// Start returns the time the clock was created.
func (c *Clock) Start() time.Time { return c.start }

// Location returns the zone used for Local.
func (c *Clock) Location() *time.Location { return c.loc }

// Millis returns milliseconds since start. The value wraps after ~49 days.
func (c *Clock) Millis() logic.Millis {
	return MillisSince(c.start, c.now())
}

// Local returns the time of day, invalid until the clock is synchronised.
func (c *Clock) Local() logic.LocalTime {
	return LocalOf(c.now().In(c.loc))
}

// MillisSince converts the monotonic elapsed time between start and t.
func MillisSince(start, t time.Time) logic.Millis {
	return logic.Millis(uint32(uint64(t.Sub(start).Milliseconds())))
}

// LocalOf converts a wall time to a LocalTime.
func LocalOf(t time.Time) logic.LocalTime {
	if t.Year() < MinValidYear {
		return logic.LocalTime{}
	}
	return logic.LocalTime{Hour: t.Hour(), Minute: t.Minute(), Valid: true}
}
