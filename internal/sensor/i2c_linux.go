//go:build linux

package sensor

import (
	"fmt"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/rpi"
)

// OpenI2C initialises the host I2C driver and opens bus n. The returned
// close func releases the bus and the driver.
func OpenI2C(n byte) (Bus, func() error, error) {
	if err := embd.InitI2C(); err != nil {
		return nil, nil, fmt.Errorf("init i2c: %w", err)
	}
	bus := embd.NewI2CBus(n)
	closeFn := func() error {
		if err := bus.Close(); err != nil {
			return err
		}
		return embd.CloseI2C()
	}
	return bus, closeFn, nil
}
