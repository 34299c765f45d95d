package logic

import (
	"fmt"
	"strconv"
)

// Config holds the fixed, non-persisted controller parameters.
type Config struct {
	ActiveLow bool

	TripC             float64
	RecoverC          float64
	ThermalIntervalMs uint32

	// ScheduleIntervalMs is how often AUTO mode re-evaluates the schedule.
	ScheduleIntervalMs uint32

	Playlist      []Pattern
	PlaylistOrder PlaylistOrder
	ChaseGap      int
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		TripC:              DefaultTripC,
		RecoverC:           DefaultRecoverC,
		ThermalIntervalMs:  DefaultThermalSampleMs,
		ScheduleIntervalMs: 1000,
		Playlist:           DefaultPlaylist(),
		PlaylistOrder:      OrderShuffle,
		ChaseGap:           DefaultChaseGap,
	}
}

// Deps are the ports the controller drives. Thermometer and Persister may
// be nil.
type Deps struct {
	Output      Output
	Thermometer Thermometer
	Persister   Persister
	Rand        Rand
}

// CommandResult describes what a command actually applied.
type CommandResult struct {
	Command string `json:"command"`
	Applied string `json:"applied"`
	Clamped bool   `json:"clamped,omitempty"`
	Note    string `json:"note,omitempty"`
}

// HeartbeatData is the periodic liveness summary.
type HeartbeatData struct {
	At       Millis
	UptimeMs uint32
	Counts   EventCounts
}

// Controller owns all control state. It is not safe for concurrent use;
// exactly one goroutine calls Tick and the command methods.
type Controller struct {
	cfg      Config
	settings Settings
	therm    Thermometer
	persist  Persister

	act      *Actuator
	guard    *ThermalGuard
	stepper  *Stepper
	playlist *Playlist
	sched    *Schedule

	// savedPattern is the last explicitly selected pattern; playlist
	// rotation changes settings.Pattern but is never persisted.
	savedPattern Pattern

	booted     bool
	powered    bool
	allOnHold  bool
	schedDirty bool
	schedAt    Millis
	schedSeen  bool

	start         Millis
	lastHeartbeat Millis
	events        []Event
	counts        EventCounts
	persistErrs   int
}

// NewController builds a controller from persisted settings. Power starts
// off; the first Tick applies the restored mode.
func NewController(cfg Config, s Settings, deps Deps, start Millis) (*Controller, error) {
	guard, err := NewThermalGuard(cfg.TripC, cfg.RecoverC, cfg.ThermalIntervalMs)
	if err != nil {
		return nil, err
	}
	if cfg.ScheduleIntervalMs == 0 {
		cfg.ScheduleIntervalMs = 1000
	}
	if s.Pattern == PatternAllOn {
		s.Pattern = PatternChase
	}
	opts := AnimationOptions{ChaseGap: cfg.ChaseGap}

	c := &Controller{
		cfg:           cfg,
		settings:      s,
		savedPattern:  s.Pattern,
		therm:         deps.Thermometer,
		persist:       deps.Persister,
		act:           NewActuator(deps.Output, cfg.ActiveLow),
		guard:         guard,
		stepper:       NewStepper(s.Pattern, s.SpeedMs, opts, deps.Rand),
		playlist:      NewPlaylist(cfg.Playlist, cfg.PlaylistOrder, deps.Rand),
		sched:         NewSchedule(s.Window),
		start:         start,
		lastHeartbeat: start,
		counts:        make(EventCounts),
	}
	c.sched.SetSunsetEnabled(s.SunsetEnabled)
	c.sched.SetOffset(s.SunsetOffset)
	c.playlist.SetEnabled(s.Shuffle, start)
	return c, nil
}

// Tick runs one bounded, non-blocking control iteration.
func (c *Controller) Tick(now Millis, local LocalTime) {
	if !c.booted {
		c.booted = true
		c.act.ForceAllOff(now)
		if c.settings.Mode == ModeManualOn {
			c.setPower(true, now, "restored")
		}
	}

	c.checkThermal(now)

	if c.settings.Mode == ModeAuto && c.scheduleDue(now) {
		c.schedAt = now
		c.schedSeen = true
		c.schedDirty = false
		want := c.sched.ShouldBeOn(local, c.powered) && !c.guard.Overheated()
		c.setPower(want, now, "schedule")
	}

	if !c.powered {
		return
	}

	if c.allOnHold {
		// Re-request every tick so dwell-suppressed channels catch up.
		c.act.ApplyFrame(AllOnFrame, now)
		return
	}

	holdMs := uint32(c.settings.HoldSeconds) * 1000
	if next, ok := c.playlist.AdvanceIfDue(now, holdMs, c.stepper.Pattern(), c.powered, c.allOnHold); ok {
		c.stepper.SetPattern(next)
		c.settings.Pattern = next
		c.emit(Event{Type: EventPatternChanged, At: now, Detail: "playlist"})
	}

	c.stepper.StepIfDue(now, c.act)
}

func (c *Controller) scheduleDue(now Millis) bool {
	return c.schedDirty || !c.schedSeen || now.Since(c.schedAt) >= c.cfg.ScheduleIntervalMs
}

func (c *Controller) checkThermal(now Millis) {
	if c.therm == nil || !c.guard.Due(now) {
		return
	}
	celsius, ok := c.therm.ReadCelsius()
	switch c.guard.Sample(celsius, ok, now) {
	case ThermalTripped:
		c.emit(Event{Type: EventOverheat, At: now, Celsius: celsius})
		c.act.SetGate(c.powered, true)
		c.setPower(false, now, "overheat")
	case ThermalCleared:
		c.act.SetGate(c.powered, false)
		c.schedDirty = true
		c.emit(Event{Type: EventOverheatCleared, At: now, Celsius: celsius})
	case ThermalReadFailed:
		c.emit(Event{Type: EventSensorReadFailed, At: now})
	}
}

// setPower transitions the power state. Turning off forces every channel
// off and cancels the all-on hold; turning on restarts the pattern and the
// playlist hold so a new session starts from the beginning.
func (c *Controller) setPower(on bool, now Millis, why string) {
	if on && c.guard.Overheated() {
		on = false
	}
	if on == c.powered {
		return
	}
	c.powered = on
	c.act.SetGate(on, c.guard.Overheated())
	if !on {
		c.act.ForceAllOff(now)
		c.cancelHold(now)
		c.emit(Event{Type: EventPowerOff, At: now, Detail: why})
		return
	}
	if !c.allOnHold {
		c.stepper.Restart()
	}
	c.playlist.ResetHold(now)
	c.emit(Event{Type: EventPowerOn, At: now, Detail: why})
}

// cancelHold leaves all-on hold. The pattern resumes from its frozen
// counters.
func (c *Controller) cancelHold(now Millis) {
	if !c.allOnHold {
		return
	}
	c.allOnHold = false
	c.stepper.ResetTimer()
	c.playlist.ResetHold(now)
	c.emit(Event{Type: EventAllOnStopped, At: now})
}

func (c *Controller) emit(e Event) {
	e.Mode = c.settings.Mode
	e.Power = c.powered
	e.Pattern = c.stepper.Pattern()
	c.events = append(c.events, e)
	c.counts[e.Type]++
}

// DrainEvents returns and clears the buffered events.
func (c *Controller) DrainEvents() []Event {
	out := c.events
	c.events = nil
	return out
}

// EventCounts returns a copy of the per-type event counts.
func (c *Controller) EventCounts() EventCounts {
	return c.counts.Copy()
}

// CheckHeartbeat returns heartbeat data once intervalMs has elapsed since
// the last heartbeat or startup. intervalMs == 0 disables it.
func (c *Controller) CheckHeartbeat(now Millis, intervalMs uint32) *HeartbeatData {
	if intervalMs == 0 || now.Since(c.lastHeartbeat) < intervalMs {
		return nil
	}
	c.lastHeartbeat = now
	return &HeartbeatData{
		At:       now,
		UptimeMs: now.Since(c.start),
		Counts:   c.counts.Copy(),
	}
}

func (c *Controller) save(key string, value any) string {
	if c.persist == nil {
		return ""
	}
	if err := c.persist.Persist(key, value); err != nil {
		c.persistErrs++
		return fmt.Sprintf("not saved: %v", err)
	}
	return ""
}

// SetMode switches between AUTO, MANUAL_ON and MANUAL_OFF.
func (c *Controller) SetMode(name string, now Millis) (CommandResult, error) {
	m, err := ParseMode(name)
	if err != nil {
		return CommandResult{}, err
	}
	res := CommandResult{Command: "mode", Applied: string(m)}

	if m != c.settings.Mode {
		c.settings.Mode = m
		res.Note = c.save(KeyMode, string(m))
		c.emit(Event{Type: EventModeChanged, At: now, Detail: string(m)})
	}

	switch m {
	case ModeManualOn:
		if c.guard.Overheated() {
			res.Note = joinNote(res.Note, "overheated, relays stay off")
		}
		c.setPower(true, now, "manual")
	case ModeManualOff:
		c.setPower(false, now, "manual")
		c.act.ForceAllOff(now)
	case ModeAuto:
		c.schedDirty = true
	}
	return res, nil
}

// SetPattern selects a pattern and cancels any all-on hold. Selecting
// all_on enters the hold instead.
func (c *Controller) SetPattern(name string, now Millis) (CommandResult, error) {
	p, err := ParsePattern(name)
	if err != nil {
		return CommandResult{}, err
	}
	if p == PatternAllOn {
		if c.allOnHold {
			return CommandResult{Command: "pattern", Applied: string(p), Note: "already on"}, nil
		}
		res := c.ToggleAllOn(now)
		res.Command = "pattern"
		return res, nil
	}

	res := CommandResult{Command: "pattern", Applied: string(p)}
	c.cancelHold(now)
	c.stepper.SetPattern(p)
	c.playlist.ResetHold(now)
	c.settings.Pattern = p
	if p != c.savedPattern {
		c.savedPattern = p
		res.Note = c.save(KeyPattern, string(p))
	}
	c.emit(Event{Type: EventPatternChanged, At: now, Detail: "command"})
	return res, nil
}

// SetSpeed sets the step interval, clamped to [MinDwellMs, MaxSpeedMs].
func (c *Controller) SetSpeed(ms int) CommandResult {
	v := ClampSpeed(ms)
	res := CommandResult{Command: "speed", Applied: strconv.Itoa(int(v)), Clamped: int(v) != ms}
	c.stepper.SetSpeed(v)
	if v != c.settings.SpeedMs {
		c.settings.SpeedMs = v
		res.Note = c.save(KeySpeedMs, int(v))
	}
	return res
}

// SetSchedule sets the fixed window from two "HH:MM" strings.
func (c *Controller) SetSchedule(on, off string) (CommandResult, error) {
	onMin, err := ParseClock(on)
	if err != nil {
		return CommandResult{}, err
	}
	offMin, err := ParseClock(off)
	if err != nil {
		return CommandResult{}, err
	}
	w := Window{On: onMin, Off: offMin}
	res := CommandResult{Command: "schedule", Applied: FormatClock(onMin) + "-" + FormatClock(offMin)}
	if w != c.settings.Window {
		if w.On != c.settings.Window.On {
			res.Note = joinNote(res.Note, c.save(KeyOnTime, FormatClock(w.On)))
		}
		if w.Off != c.settings.Window.Off {
			res.Note = joinNote(res.Note, c.save(KeyOffTime, FormatClock(w.Off)))
		}
		c.settings.Window = w
		c.sched.SetFixed(w)
		c.schedDirty = true
	}
	return res, nil
}

// SetSunsetMode switches the on time between fixed and sunset-anchored.
func (c *Controller) SetSunsetMode(on bool) CommandResult {
	res := CommandResult{Command: "sunset", Applied: strconv.FormatBool(on)}
	if on != c.settings.SunsetEnabled {
		c.settings.SunsetEnabled = on
		c.sched.SetSunsetEnabled(on)
		res.Note = c.save(KeySunsetEnabled, on)
		c.schedDirty = true
	}
	if on {
		if _, ok := c.sched.Sunset(); !ok {
			res.Note = joinNote(res.Note, "no sunset yet, using fixed on time")
		}
	}
	return res
}

// SetSunsetOffset sets the signed sunset offset, clamped to ±MaxSunsetOffsetMin.
func (c *Controller) SetSunsetOffset(minutes int) CommandResult {
	v := ClampOffset(minutes)
	res := CommandResult{Command: "sunset_offset", Applied: strconv.Itoa(v), Clamped: v != minutes}
	if v != c.settings.SunsetOffset {
		c.settings.SunsetOffset = v
		c.sched.SetOffset(v)
		res.Note = c.save(KeySunsetOffset, v)
		c.schedDirty = true
	}
	return res
}

// SetShuffle enables or disables playlist rotation.
func (c *Controller) SetShuffle(on bool, now Millis) CommandResult {
	res := CommandResult{Command: "shuffle", Applied: strconv.FormatBool(on)}
	c.playlist.SetEnabled(on, now)
	if on != c.settings.Shuffle {
		c.settings.Shuffle = on
		res.Note = c.save(KeyShuffle, on)
	}
	return res
}

// SetHoldSeconds sets how long each playlist pattern is held.
func (c *Controller) SetHoldSeconds(s int) CommandResult {
	v := ClampHold(s)
	res := CommandResult{Command: "hold", Applied: strconv.Itoa(v), Clamped: v != s}
	if v != c.settings.HoldSeconds {
		c.settings.HoldSeconds = v
		res.Note = c.save(KeyHoldSeconds, v)
	}
	return res
}

// ToggleAllOn enters or leaves the all-on hold. Entering switches to
// MANUAL_ON and is refused while overheated.
func (c *Controller) ToggleAllOn(now Millis) CommandResult {
	if c.allOnHold {
		c.cancelHold(now)
		return CommandResult{Command: "allon", Applied: "false"}
	}
	if c.guard.Overheated() {
		return CommandResult{Command: "allon", Applied: "false", Note: "overheated"}
	}

	res := CommandResult{Command: "allon", Applied: "true"}
	if c.settings.Mode != ModeManualOn {
		c.settings.Mode = ModeManualOn
		res.Note = c.save(KeyMode, string(ModeManualOn))
		c.emit(Event{Type: EventModeChanged, At: now, Detail: string(ModeManualOn)})
	}
	c.allOnHold = true
	c.setPower(true, now, "allon")
	c.act.ApplyFrame(AllOnFrame, now)
	c.emit(Event{Type: EventAllOnStarted, At: now})
	return res
}

// SunsetFetchDue reports whether the daemon should start a sunset fetch.
func (c *Controller) SunsetFetchDue(now Millis) bool {
	return c.sched.FetchDue(now)
}

// SunsetFetchStarted records that a fetch is in flight.
func (c *Controller) SunsetFetchStarted(now Millis) {
	c.sched.FetchStarted(now)
}

// ApplySunset consumes a sunset fetch result. minute is the sunset's local
// minute of day; err non-nil means the fetch failed and the previous value
// stays in effect.
func (c *Controller) ApplySunset(minute int, err error, now Millis) {
	if err != nil {
		c.sched.ApplySunset(0, false, now)
		c.emit(Event{Type: EventSunsetFetchFailed, At: now, Detail: err.Error()})
		return
	}
	c.sched.ApplySunset(minute, true, now)
	c.schedDirty = true
	c.emit(Event{Type: EventSunsetUpdated, At: now, Detail: FormatClock(minute)})
}

// Settings returns the current settings.
func (c *Controller) Settings() Settings {
	return c.settings
}

// Status is a point-in-time snapshot of the controller.
type Status struct {
	LocalTime       LocalTime
	On              string
	Off             string
	Pattern         Pattern
	SpeedMs         uint32
	SunsetEnabled   bool
	SunsetOffsetMin int
	Sunset          string
	RelaysEnabled   bool
	Mode            Mode
	ShuffleEnabled  bool
	AllOnActive     bool
	HoldSeconds     int

	Overheated     bool
	Celsius        float64
	HaveCelsius    bool
	SensorFailures int

	Frame         Frame
	Toggles       uint64
	Suppressed    uint64
	WriteErrors   uint64
	Steps         uint64
	PersistErrors int
	Counts        EventCounts
}

// Status returns a snapshot of the controller.
func (c *Controller) Status(local LocalTime) Status {
	w := c.sched.Window()
	st := Status{
		LocalTime:       local,
		On:              FormatClock(w.On),
		Off:             FormatClock(w.Off),
		Pattern:         c.stepper.Pattern(),
		SpeedMs:         c.settings.SpeedMs,
		SunsetEnabled:   c.settings.SunsetEnabled,
		SunsetOffsetMin: c.settings.SunsetOffset,
		RelaysEnabled:   c.powered,
		Mode:            c.settings.Mode,
		ShuffleEnabled:  c.settings.Shuffle,
		AllOnActive:     c.allOnHold,
		HoldSeconds:     c.settings.HoldSeconds,
		Overheated:      c.guard.Overheated(),
		SensorFailures:  c.guard.Failures(),
		Frame:           c.act.Frame(),
		Toggles:         c.act.Toggles(),
		Suppressed:      c.act.Suppressed(),
		WriteErrors:     c.act.WriteErrors(),
		Steps:           c.stepper.Steps(),
		PersistErrors:   c.persistErrs,
		Counts:          c.counts.Copy(),
	}
	st.Celsius, st.HaveCelsius = c.guard.LastCelsius()
	if m, ok := c.sched.Sunset(); ok {
		st.Sunset = FormatClock(m)
	}
	return st
}

func joinNote(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + "; " + b
}
