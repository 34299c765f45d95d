//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealWriter drives relay lines on actual hardware using the Linux GPIO
// character device.
type RealWriter struct {
	chip      *gpiocdev.Chip
	lines     []*gpiocdev.Line
	activeLow bool
}

// NewRealWriter requests every pin as an output at its released level, so
// no relay clicks on startup.
func NewRealWriter(chipName string, pins []int, activeLow bool) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("relay-lights"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	w := &RealWriter{chip: chip, activeLow: activeLow}
	off := level(activeLow)
	for i, pin := range pins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(off))
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request channel %d pin %d: %w", i, pin, err)
		}
		w.lines = append(w.lines, line)
	}
	return w, nil
}

// Write sets the raw level of channel.
func (w *RealWriter) Write(channel int, high bool) error {
	if channel < 0 || channel >= len(w.lines) {
		return fmt.Errorf("channel %d out of range", channel)
	}
	if err := w.lines[channel].SetValue(level(high)); err != nil {
		return fmt.Errorf("set channel %d: %w", channel, err)
	}
	return nil
}

// Close releases every relay and returns the lines to inputs biased
// towards the released level, so the relays stay off through a reboot.
func (w *RealWriter) Close() error {
	var errs []error

	off := level(w.activeLow)
	bias := gpiocdev.WithPullDown
	if w.activeLow {
		bias = gpiocdev.WithPullUp
	}
	for i, line := range w.lines {
		if err := line.SetValue(off); err != nil {
			errs = append(errs, fmt.Errorf("release channel %d: %w", i, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, bias); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure channel %d: %w", i, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel %d: %w", i, err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
