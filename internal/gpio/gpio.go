// Package gpio drives the relay board outputs with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Writer drives relay output lines.
type Writer interface {
	// Write sets the electrical level of channel. Polarity is handled by
	// the caller: high is the raw line level.
	Write(channel int, high bool) error

	// Close releases GPIO resources.
	Close() error
}

// DefaultPins are the BCM line offsets of the 8-channel relay HAT,
// channel 0 first.
var DefaultPins = []int{5, 6, 13, 16, 19, 20, 21, 26}

// DefaultChip is the GPIO character device on the Raspberry Pi header.
const DefaultChip = "gpiochip0"

func level(high bool) int {
	if high {
		return 1
	}
	return 0
}
