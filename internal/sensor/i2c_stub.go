//go:build !linux

package sensor

import "errors"

// OpenI2C is not available on non-Linux platforms.
func OpenI2C(n byte) (Bus, func() error, error) {
	return nil, nil, errors.New("sensor: i2c not supported on this platform (requires Linux)")
}
