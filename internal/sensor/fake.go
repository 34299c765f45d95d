package sensor

import (
	"context"
	"errors"
	"sync"
)

// Fake is a test double usable both as a Source and as a Thermometer.
type Fake struct {
	mu    sync.Mutex
	value float64
	ok    bool
	calls int
}

// NewFake creates a Fake returning celsius.
func NewFake(celsius float64) *Fake {
	return &Fake{value: celsius, ok: true}
}

// Set changes the reading. ok=false simulates a failed read.
func (f *Fake) Set(celsius float64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = celsius
	f.ok = ok
}

// Celsius implements Source.
func (f *Fake) Celsius(ctx context.Context) (float64, error) {
	v, ok := f.ReadCelsius()
	if !ok {
		return 0, errors.New("fake sensor failure")
	}
	return v, nil
}

// ReadCelsius implements the controller's Thermometer port.
func (f *Fake) ReadCelsius() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.value, f.ok
}

// Calls returns the number of reads.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
