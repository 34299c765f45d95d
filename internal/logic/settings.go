package logic

// Persistence keys.
const (
	KeyPattern       = "pattern"
	KeySpeedMs       = "speed_ms"
	KeyOnTime        = "on_time"
	KeyOffTime       = "off_time"
	KeySunsetEnabled = "sunset_enabled"
	KeySunsetOffset  = "sunset_offset_min"
	KeyMode          = "mode"
	KeyShuffle       = "shuffle"
	KeyHoldSeconds   = "hold_seconds"
)

// Settings is every user-mutable, persisted value.
type Settings struct {
	Pattern       Pattern
	SpeedMs       uint32
	Window        Window
	SunsetEnabled bool
	SunsetOffset  int
	Mode          Mode
	Shuffle       bool
	HoldSeconds   int
}

// DefaultSettings returns the factory settings.
func DefaultSettings() Settings {
	return Settings{
		Pattern:     PatternChase,
		SpeedMs:     DefaultSpeedMs,
		Window:      Window{On: 18 * 60, Off: 23 * 60},
		Mode:        ModeAuto,
		HoldSeconds: DefaultHoldSeconds,
	}
}

// Loader reads persisted values, returning def when a key is missing.
type Loader interface {
	String(key, def string) string
	Int(key string, def int) int
	Bool(key string, def bool) bool
}

// LoadSettings reads settings from l. Invalid stored values fall back to
// defaults and out-of-range numbers are clamped.
func LoadSettings(l Loader) Settings {
	s := DefaultSettings()

	if p, err := ParsePattern(l.String(KeyPattern, string(s.Pattern))); err == nil && p != PatternAllOn {
		s.Pattern = p
	}
	s.SpeedMs = ClampSpeed(l.Int(KeySpeedMs, int(s.SpeedMs)))
	if m, err := ParseClock(l.String(KeyOnTime, FormatClock(s.Window.On))); err == nil {
		s.Window.On = m
	}
	if m, err := ParseClock(l.String(KeyOffTime, FormatClock(s.Window.Off))); err == nil {
		s.Window.Off = m
	}
	s.SunsetEnabled = l.Bool(KeySunsetEnabled, s.SunsetEnabled)
	s.SunsetOffset = ClampOffset(l.Int(KeySunsetOffset, s.SunsetOffset))
	if m, err := ParseMode(l.String(KeyMode, string(s.Mode))); err == nil {
		s.Mode = m
	}
	s.Shuffle = l.Bool(KeyShuffle, s.Shuffle)
	s.HoldSeconds = ClampHold(l.Int(KeyHoldSeconds, s.HoldSeconds))
	return s
}

// ClampSpeed limits a step interval to [MinDwellMs, MaxSpeedMs].
func ClampSpeed(ms int) uint32 {
	switch {
	case ms < MinDwellMs:
		return MinDwellMs
	case ms > MaxSpeedMs:
		return MaxSpeedMs
	}
	return uint32(ms)
}

// ClampHold limits a playlist hold to [MinHoldSeconds, MaxHoldSeconds].
func ClampHold(s int) int {
	switch {
	case s < MinHoldSeconds:
		return MinHoldSeconds
	case s > MaxHoldSeconds:
		return MaxHoldSeconds
	}
	return s
}
