package config

import (
	"errors"
	"fmt"

	"github.com/sweeney/relay-lights/internal/logging"
)

// Options is the flat daemon configuration. Field names map to flags
// (GPIOChip -> --gpio-chip), toml tags to config file paths and env tags to
// RELAYLIGHTS_* variables.
type Options struct {
	Config string `help:"Path to configuration file" short:"c"`

	GPIOChip      string `help:"GPIO character device" toml:"gpio.chip" env:"GPIO_CHIP"`
	GPIOPins      []int  `help:"BCM pins for channels 0-7" toml:"gpio.pins" env:"GPIO_PINS"`
	GPIOActiveLow bool   `help:"Relay board energises on a low output" toml:"gpio.active_low" env:"GPIO_ACTIVE_LOW"`
	ControlTickMs int    `help:"Control loop period in milliseconds" toml:"control.tick_ms" env:"CONTROL_TICK_MS"`

	SensorType        string  `help:"Enclosure sensor (sht31, cpu, none)" toml:"sensor.type" env:"SENSOR_TYPE"`
	SensorI2CBus      int     `help:"I2C bus number" toml:"sensor.i2c_bus" env:"SENSOR_I2C_BUS"`
	SensorI2CAddr     int     `help:"SHT31 I2C address" toml:"sensor.i2c_addr" env:"SENSOR_I2C_ADDR"`
	SensorThermalZone string  `help:"sysfs thermal zone for the cpu sensor" toml:"sensor.thermal_zone" env:"SENSOR_THERMAL_ZONE"`
	ThermalTripC      float64 `help:"Disable relays at or above this temperature" toml:"thermal.trip_c" env:"THERMAL_TRIP_C"`
	ThermalRecoverC   float64 `help:"Re-enable relays at or below this temperature" toml:"thermal.recover_c" env:"THERMAL_RECOVER_C"`
	ThermalIntervalS  int     `help:"Temperature sample interval in seconds" toml:"thermal.interval_s" env:"THERMAL_INTERVAL_S"`

	SunsetAPIKey   string  `help:"OpenWeatherMap API key" toml:"sunset.api_key" env:"SUNSET_API_KEY"`
	SunsetLat      float64 `help:"Latitude for sunset lookups" toml:"sunset.lat" env:"SUNSET_LAT"`
	SunsetLon      float64 `help:"Longitude for sunset lookups" toml:"sunset.lon" env:"SUNSET_LON"`
	SunsetTimeoutS int     `help:"Sunset request timeout in seconds" toml:"sunset.timeout_s" env:"SUNSET_TIMEOUT_S"`

	MQTTBroker     string `help:"MQTT broker address (empty to disable)" toml:"mqtt.broker" env:"MQTT_BROKER"`
	MQTTPrefix     string `help:"MQTT topic prefix" toml:"mqtt.prefix" env:"MQTT_PREFIX"`
	MQTTClientID   string `help:"MQTT client id" toml:"mqtt.client_id" env:"MQTT_CLIENT_ID"`
	MQTTHeartbeatS int    `help:"Heartbeat interval in seconds (0 to disable)" toml:"mqtt.heartbeat_s" env:"MQTT_HEARTBEAT_S"`

	HTTPAddr  string `help:"HTTP listen address (empty to disable)" toml:"http.addr" env:"HTTP_ADDR"`
	StateFile string `help:"Persisted settings file" toml:"state.file" env:"STATE_FILE"`

	PlaylistOrder   string   `help:"Playlist order (shuffle, sequential)" toml:"playlist.order" env:"PLAYLIST_ORDER"`
	PlaylistMembers []string `help:"Patterns in the playlist (empty for all)" toml:"playlist.members" env:"PLAYLIST_MEMBERS"`
	ChaseGap        int      `help:"Spacing for the chase_gap pattern" toml:"patterns.chase_gap" env:"CHASE_GAP"`

	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingControl string `help:"Control loop logging level" toml:"logging.control" env:"LOGGING_CONTROL"`
	LoggingGPIO    string `help:"GPIO logging level" toml:"logging.gpio" env:"LOGGING_GPIO"`
	LoggingSensor  string `help:"Sensor logging level" toml:"logging.sensor" env:"LOGGING_SENSOR"`
	LoggingSunset  string `help:"Sunset client logging level" toml:"logging.sunset" env:"LOGGING_SUNSET"`
	LoggingMQTT    string `help:"MQTT logging level" toml:"logging.mqtt" env:"LOGGING_MQTT"`
	LoggingWeb     string `help:"HTTP logging level" toml:"logging.web" env:"LOGGING_WEB"`
	LoggingStore   string `help:"Settings store logging level" toml:"logging.store" env:"LOGGING_STORE"`
}

// Defaults returns the built-in option values.
func Defaults() Options {
	return Options{
		Config:            "config.toml",
		GPIOChip:          "gpiochip0",
		GPIOPins:          []int{5, 6, 13, 16, 19, 20, 21, 26},
		GPIOActiveLow:     true,
		ControlTickMs:     20,
		SensorType:        "sht31",
		SensorI2CBus:      1,
		SensorI2CAddr:     0x44,
		SensorThermalZone: "/sys/class/thermal/thermal_zone0/temp",
		ThermalTripC:      50,
		ThermalRecoverC:   45,
		ThermalIntervalS:  60,
		SunsetLat:         53.8,
		SunsetLon:         -1.55,
		SunsetTimeoutS:    10,
		MQTTPrefix:        "relay-lights",
		MQTTClientID:      "relay-lights",
		MQTTHeartbeatS:    900,
		HTTPAddr:          ":80",
		StateFile:         "/var/lib/relay-lights/state.toml",
		PlaylistOrder:     "shuffle",
		ChaseGap:          3,
		LoggingLevel:      "info",
		LoggingFormat:     "text",
	}
}

// Validate checks values that would otherwise fail deep inside startup.
func (o *Options) Validate() error {
	var errs []error
	if len(o.GPIOPins) != 8 {
		errs = append(errs, fmt.Errorf("gpio pins: want 8, got %d", len(o.GPIOPins)))
	}
	if o.ControlTickMs < 1 || o.ControlTickMs > 100 {
		errs = append(errs, fmt.Errorf("control tick %dms out of range 1-100", o.ControlTickMs))
	}
	switch o.SensorType {
	case "sht31", "cpu", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown sensor type %q", o.SensorType))
	}
	if o.ThermalRecoverC >= o.ThermalTripC {
		errs = append(errs, fmt.Errorf("recover threshold %.1f must be below trip %.1f", o.ThermalRecoverC, o.ThermalTripC))
	}
	if o.ThermalIntervalS < 1 {
		errs = append(errs, errors.New("thermal interval must be at least 1s"))
	}
	if o.MQTTHeartbeatS < 0 {
		errs = append(errs, errors.New("heartbeat interval must not be negative"))
	}
	return errors.Join(errs...)
}

// Logging builds the logging configuration.
func (o *Options) Logging() logging.Config {
	modules := map[string]string{}
	for name, level := range map[string]string{
		"control": o.LoggingControl,
		"gpio":    o.LoggingGPIO,
		"sensor":  o.LoggingSensor,
		"sunset":  o.LoggingSunset,
		"mqtt":    o.LoggingMQTT,
		"web":     o.LoggingWeb,
		"store":   o.LoggingStore,
	} {
		if level != "" {
			modules[name] = level
		}
	}
	return logging.Config{
		Level:   o.LoggingLevel,
		Format:  o.LoggingFormat,
		Modules: modules,
	}
}
