package logic

import "fmt"

// PlaylistOrder selects how the rotation order is built.
type PlaylistOrder string

const (
	OrderShuffle    PlaylistOrder = "shuffle"
	OrderSequential PlaylistOrder = "sequential"
)

// ParsePlaylistOrder validates an order name.
func ParsePlaylistOrder(s string) (PlaylistOrder, error) {
	switch PlaylistOrder(s) {
	case OrderShuffle, OrderSequential:
		return PlaylistOrder(s), nil
	}
	return "", fmt.Errorf("unknown playlist order %q", s)
}

// DefaultPlaylist is every animated pattern. all_on is never rotated.
func DefaultPlaylist() []Pattern {
	out := make([]Pattern, 0, len(Patterns)-1)
	for _, p := range Patterns {
		if p != PatternAllOn {
			out = append(out, p)
		}
	}
	return out
}

// Playlist rotates through a fixed subset of patterns. Within one cycle
// every member appears exactly once.
type Playlist struct {
	members []Pattern
	order   []int
	pos     int
	mode    PlaylistOrder
	enabled bool
	rng     Rand

	patternStart Millis
}

// NewPlaylist creates a playlist over members. all_on is dropped.
func NewPlaylist(members []Pattern, mode PlaylistOrder, rng Rand) *Playlist {
	p := &Playlist{mode: mode, rng: rng}
	for _, m := range members {
		if m != PatternAllOn {
			p.members = append(p.members, m)
		}
	}
	return p
}

// Members returns the rotation members.
func (p *Playlist) Members() []Pattern {
	return append([]Pattern(nil), p.members...)
}

// Enabled reports whether rotation is on.
func (p *Playlist) Enabled() bool {
	return p.enabled
}

// SetEnabled toggles rotation. A toggle regenerates the order on the next
// advance; disabling leaves whatever pattern is active.
func (p *Playlist) SetEnabled(on bool, now Millis) {
	if p.enabled == on {
		return
	}
	p.enabled = on
	p.order = nil
	p.pos = 0
	p.patternStart = now
}

// ResetHold restarts the hold timer for the current pattern.
func (p *Playlist) ResetHold(now Millis) {
	p.patternStart = now
}

// AdvanceIfDue returns the next pattern once current has been held for
// holdMs. It is a no-op unless rotation is enabled, power is on and all-on
// hold is not active. With more than one member it never returns current.
func (p *Playlist) AdvanceIfDue(now Millis, holdMs uint32, current Pattern, powered, held bool) (Pattern, bool) {
	if !p.enabled || !powered || held || len(p.members) == 0 {
		return "", false
	}
	if now.Since(p.patternStart) < holdMs {
		return "", false
	}
	if p.pos >= len(p.order) {
		p.rebuild(current)
	}
	if len(p.order) > 1 && p.members[p.order[p.pos]] == current {
		if p.pos+1 < len(p.order) {
			p.order[p.pos], p.order[p.pos+1] = p.order[p.pos+1], p.order[p.pos]
		} else {
			// current already covers the last slot of this cycle.
			p.rebuild(current)
		}
	}
	next := p.members[p.order[p.pos]]
	p.pos++
	p.patternStart = now
	return next, true
}

// rebuild starts a new cycle. A sequential cycle starts after current; a
// shuffled cycle never starts with current.
func (p *Playlist) rebuild(current Pattern) {
	n := len(p.members)
	p.order = make([]int, n)
	p.pos = 0
	if n == 0 {
		return
	}
	first := 0
	for i, m := range p.members {
		if m == current {
			first = (i + 1) % n
			break
		}
	}
	for i := range p.order {
		p.order[i] = (first + i) % n
	}
	if p.mode != OrderShuffle {
		return
	}
	// Fisher-Yates.
	for i := n - 1; i > 0; i-- {
		j := p.rng.IntN(i + 1)
		p.order[i], p.order[j] = p.order[j], p.order[i]
	}
	if n > 1 && p.members[p.order[0]] == current {
		p.order[0], p.order[n-1] = p.order[n-1], p.order[0]
	}
}
