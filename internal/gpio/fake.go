package gpio

import (
	"fmt"
	"sync"
)

// FakeWriter is a test double that records line levels.
type FakeWriter struct {
	mu     sync.Mutex
	levels []bool
	writes int
	fail   map[int]error
	closed bool
}

// NewFakeWriter creates a FakeWriter with n lines, all low.
func NewFakeWriter(n int) *FakeWriter {
	return &FakeWriter{levels: make([]bool, n), fail: make(map[int]error)}
}

// Write records the level of channel.
func (f *FakeWriter) Write(channel int, high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if channel < 0 || channel >= len(f.levels) {
		return fmt.Errorf("channel %d out of range", channel)
	}
	if err := f.fail[channel]; err != nil {
		return err
	}
	f.levels[channel] = high
	f.writes++
	return nil
}

// FailChannel makes writes to channel return err. A nil err clears it.
func (f *FakeWriter) FailChannel(channel int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, channel)
		return
	}
	f.fail[channel] = err
}

// Level returns the last level written to channel.
func (f *FakeWriter) Level(channel int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[channel]
}

// Levels returns the line levels as a bitmask, bit i = channel i high.
func (f *FakeWriter) Levels() uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var m uint8
	for i, high := range f.levels {
		if high && i < 8 {
			m |= 1 << uint(i)
		}
	}
	return m
}

// Writes returns the number of successful writes.
func (f *FakeWriter) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeWriter) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
