package logic

import "fmt"

// ThermalTransition is the result of a temperature sample.
type ThermalTransition int

const (
	ThermalNone ThermalTransition = iota
	ThermalTripped
	ThermalCleared
	ThermalReadFailed
)

// Default thermal thresholds.
const (
	DefaultTripC           = 50.0
	DefaultRecoverC        = 45.0
	DefaultThermalSampleMs = 60_000
)

// ThermalGuard latches an overheat interlock with hysteresis.
type ThermalGuard struct {
	tripC      float64
	recoverC   float64
	intervalMs uint32

	sampled    bool
	lastSample Millis

	overheated bool
	lastC      float64
	haveC      bool
	failures   int
}

// NewThermalGuard creates a guard. recoverC must be strictly below tripC.
func NewThermalGuard(tripC, recoverC float64, intervalMs uint32) (*ThermalGuard, error) {
	if recoverC >= tripC {
		return nil, fmt.Errorf("recover threshold %.1f must be below trip threshold %.1f", recoverC, tripC)
	}
	return &ThermalGuard{
		tripC:      tripC,
		recoverC:   recoverC,
		intervalMs: intervalMs,
	}, nil
}

// Due reports whether a new sample should be taken. The first sample is
// due immediately.
func (g *ThermalGuard) Due(now Millis) bool {
	return !g.sampled || now.Since(g.lastSample) >= g.intervalMs
}

// Sample feeds one reading. ok=false means the sensor read failed; the
// previous state is kept.
func (g *ThermalGuard) Sample(celsius float64, ok bool, now Millis) ThermalTransition {
	g.sampled = true
	g.lastSample = now

	if !ok {
		g.failures++
		return ThermalReadFailed
	}

	g.lastC = celsius
	g.haveC = true

	switch {
	case !g.overheated && celsius >= g.tripC:
		g.overheated = true
		return ThermalTripped
	case g.overheated && celsius <= g.recoverC:
		g.overheated = false
		return ThermalCleared
	}
	return ThermalNone
}

// Overheated reports the interlock state.
func (g *ThermalGuard) Overheated() bool {
	return g.overheated
}

// LastCelsius returns the last successful reading.
func (g *ThermalGuard) LastCelsius() (float64, bool) {
	return g.lastC, g.haveC
}

// Failures returns the number of failed reads since startup.
func (g *ThermalGuard) Failures() int {
	return g.failures
}
