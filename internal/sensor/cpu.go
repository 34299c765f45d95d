package sensor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultThermalZone is the SoC temperature on a Raspberry Pi.
const DefaultThermalZone = "/sys/class/thermal/thermal_zone0/temp"

// ThermalZone reads a sysfs thermal zone in millidegrees Celsius. It is the
// fallback when no enclosure sensor is fitted.
type ThermalZone struct {
	Path string
}

// Celsius reads the zone.
func (z ThermalZone) Celsius(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b, err := os.ReadFile(z.Path)
	if err != nil {
		return 0, fmt.Errorf("read thermal zone: %w", err)
	}
	milli, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse thermal zone %q: %w", z.Path, err)
	}
	return float64(milli) / 1000, nil
}
