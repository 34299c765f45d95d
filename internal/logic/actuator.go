package logic

// SuppressReason explains why a channel write did not happen.
type SuppressReason string

const (
	ReasonNone        SuppressReason = ""
	ReasonDwell       SuppressReason = "dwell"
	ReasonWriteFailed SuppressReason = "write_failed"
)

// SetResult is the outcome of a single channel request.
// Applied is true when the channel now holds the effective requested state.
// Changed is true only when a physical write happened.
type SetResult struct {
	Applied bool
	Changed bool
	Reason  SuppressReason
}

// FrameResult summarises an ApplyFrame call.
type FrameResult struct {
	Changed    int
	Suppressed int
}

// Channel is the logical state of one relay output.
type Channel struct {
	Index int
	On    bool
	// LastChange is when the channel last transitioned.
	LastChange Millis
	// Touched is false until the first transition, so the first
	// toggle after boot is never held back by dwell.
	Touched bool
}

// Actuator owns the relay channels. All writes go through it so that the
// minimum dwell and the power/overheat gate are always enforced.
type Actuator struct {
	out       Output
	activeLow bool
	minDwell  uint32
	channels  [NumChannels]Channel

	powered    bool
	overheated bool

	toggles    uint64
	suppressed uint64
	writeErrs  uint64
}

// NewActuator creates an actuator writing through out. activeLow inverts
// the electrical level for boards whose relays energise on a low input.
func NewActuator(out Output, activeLow bool) *Actuator {
	a := &Actuator{
		out:       out,
		activeLow: activeLow,
		minDwell:  MinDwellMs,
	}
	for i := range a.channels {
		a.channels[i].Index = i
	}
	return a
}

// SetGate updates the global power and overheat inputs. It does not write.
func (a *Actuator) SetGate(powered, overheated bool) {
	a.powered = powered
	a.overheated = overheated
}

// SetChannel requests channel idx to be on or off.
func (a *Actuator) SetChannel(idx int, wantOn bool, now Millis) SetResult {
	if idx < 0 || idx >= NumChannels {
		return SetResult{}
	}
	if a.overheated || !a.powered {
		wantOn = false
	}

	ch := &a.channels[idx]
	if ch.On == wantOn {
		return SetResult{Applied: true}
	}

	if ch.Touched && now.Since(ch.LastChange) < a.minDwell {
		a.suppressed++
		return SetResult{Reason: ReasonDwell}
	}

	if err := a.out.Write(idx, a.level(wantOn)); err != nil {
		a.writeErrs++
		return SetResult{Reason: ReasonWriteFailed}
	}

	ch.On = wantOn
	ch.LastChange = now
	ch.Touched = true
	a.toggles++
	return SetResult{Applied: true, Changed: true}
}

// ApplyFrame requests every channel from the frame. Some channels may be
// held back by dwell; the caller re-requests them on a later tick.
func (a *Actuator) ApplyFrame(f Frame, now Millis) FrameResult {
	var r FrameResult
	for i := 0; i < NumChannels; i++ {
		res := a.SetChannel(i, f.On(i), now)
		if res.Changed {
			r.Changed++
		}
		if !res.Applied {
			r.Suppressed++
		}
	}
	return r
}

// ForceAllOff drives every channel off, ignoring dwell. Every line is
// written even if its logical state is already off.
func (a *Actuator) ForceAllOff(now Millis) {
	for i := range a.channels {
		ch := &a.channels[i]
		if err := a.out.Write(i, a.level(false)); err != nil {
			a.writeErrs++
		}
		if ch.On {
			ch.On = false
			ch.LastChange = now
			ch.Touched = true
			a.toggles++
		}
	}
}

// Frame returns the current logical state of all channels.
func (a *Actuator) Frame() Frame {
	var f Frame
	for i, ch := range a.channels {
		if ch.On {
			f |= 1 << uint(i)
		}
	}
	return f
}

// Channel returns a copy of channel idx.
func (a *Actuator) Channel(idx int) Channel {
	return a.channels[idx]
}

// Toggles returns the number of physical transitions since startup.
func (a *Actuator) Toggles() uint64 { return a.toggles }

// Suppressed returns the number of requests held back by dwell.
func (a *Actuator) Suppressed() uint64 { return a.suppressed }

// WriteErrors returns the number of failed hardware writes.
func (a *Actuator) WriteErrors() uint64 { return a.writeErrs }

func (a *Actuator) level(on bool) bool {
	return on != a.activeLow
}
