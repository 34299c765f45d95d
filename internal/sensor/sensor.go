// Package sensor reads the enclosure temperature.
//
// Sources block (I2C transactions, sysfs reads), so the control loop never
// calls them directly: a Cached wrapper polls the source on its own
// goroutine and serves the latest reading without blocking.
package sensor

import (
	"context"
	"errors"
)

// Source performs one blocking temperature measurement.
type Source interface {
	Celsius(ctx context.Context) (float64, error)
}

// ErrCRC is returned when a sensor frame fails its checksum.
var ErrCRC = errors.New("sensor: crc mismatch")
