package logic

// Stepper advances the active animation on a non-blocking timer.
type Stepper struct {
	opts    AnimationOptions
	rng     Rand
	pattern Pattern
	anim    Animation
	speedMs uint32

	lastStep Millis
	started  bool
	steps    uint64
}

// NewStepper creates a stepper running p.
func NewStepper(p Pattern, speedMs uint32, opts AnimationOptions, rng Rand) *Stepper {
	return &Stepper{
		opts:    opts,
		rng:     rng,
		pattern: p,
		anim:    NewAnimation(p, opts),
		speedMs: speedMs,
	}
}

// Interval is the effective step interval. It never drops below the
// relay dwell time.
func (s *Stepper) Interval() uint32 {
	if s.speedMs < MinDwellMs {
		return MinDwellMs
	}
	return s.speedMs
}

// SetSpeed changes the configured step interval.
func (s *Stepper) SetSpeed(ms uint32) {
	s.speedMs = ms
}

// SetPattern switches to p from its initial state and resets the timer.
func (s *Stepper) SetPattern(p Pattern) {
	s.pattern = p
	s.Restart()
}

// Restart resets the current pattern's counters and the step timer.
func (s *Stepper) Restart() {
	s.anim = NewAnimation(s.pattern, s.opts)
	s.ResetTimer()
}

// ResetTimer makes the next step due immediately without touching the
// counters.
func (s *Stepper) ResetTimer() {
	s.started = false
}

// Pattern returns the active pattern.
func (s *Stepper) Pattern() Pattern {
	return s.pattern
}

// StepIfDue applies the next frame when the interval has elapsed.
func (s *Stepper) StepIfDue(now Millis, a *Actuator) (Frame, bool) {
	if s.started && now.Since(s.lastStep) < s.Interval() {
		return 0, false
	}
	f := s.anim.Next(s.rng)
	a.ApplyFrame(f, now)
	s.lastStep = now
	s.started = true
	s.steps++
	return f, true
}

// Steps returns the number of frames produced since startup.
func (s *Stepper) Steps() uint64 {
	return s.steps
}
