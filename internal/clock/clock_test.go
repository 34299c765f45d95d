package clock

import (
	"testing"
	"time"

	"github.com/sweeney/relay-lights/internal/logic"
)

func TestMillis(t *testing.T) {
	base := time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)
	now := base
	c := New(func() time.Time { return now }, time.UTC)

	if c.Millis() != 0 {
		t.Errorf("Millis at start = %d", c.Millis())
	}
	now = base.Add(1500 * time.Millisecond)
	if c.Millis() != 1500 {
		t.Errorf("Millis = %d, want 1500", c.Millis())
	}
}

func TestMillisWraps(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := base.Add(time.Duration(1<<32+5) * time.Millisecond)
	if got := MillisSince(base, later); got != 5 {
		t.Errorf("MillisSince = %d, want wrapped 5", got)
	}
}

func TestLocalUnsynced(t *testing.T) {
	c := New(func() time.Time { return time.Unix(60, 0) }, time.UTC)
	if c.Local().Valid {
		t.Error("1970 clock must be reported as unsynced")
	}
}

func TestLocalUsesLocation(t *testing.T) {
	ts := time.Date(2026, 10, 16, 17, 30, 0, 0, time.UTC)
	c := New(func() time.Time { return ts }, time.FixedZone("BST", 3600))
	want := logic.LocalTime{Hour: 18, Minute: 30, Valid: true}
	if got := c.Local(); got != want {
		t.Errorf("Local = %+v, want %+v", got, want)
	}
}
