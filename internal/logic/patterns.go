package logic

import (
	"fmt"
	"math/bits"
)

// Pattern names an animation. The string form is stable; it is persisted
// and accepted by the command surfaces.
type Pattern string

const (
	PatternChase        Pattern = "chase"
	PatternWave         Pattern = "wave"
	PatternRandom       Pattern = "random"
	PatternAltEvenOdd   Pattern = "alt_even_odd"
	PatternBounce       Pattern = "bounce"
	PatternChaseGap     Pattern = "chase_gap"
	PatternPairPingPong Pattern = "pair_pingpong"
	PatternBlockWipe    Pattern = "block_wipe"
	PatternOverlapWave  Pattern = "overlap_wave"
	PatternSparkle      Pattern = "sparkle_sparse"
	PatternBursts       Pattern = "random_bursts"
	PatternHalfSwap     Pattern = "half_swap"
	PatternBinaryCount  Pattern = "binary_count"
	PatternAllOn        Pattern = "all_on"
)

// Patterns lists every pattern in display order.
var Patterns = []Pattern{
	PatternChase,
	PatternWave,
	PatternRandom,
	PatternAltEvenOdd,
	PatternBounce,
	PatternChaseGap,
	PatternPairPingPong,
	PatternBlockWipe,
	PatternOverlapWave,
	PatternSparkle,
	PatternBursts,
	PatternHalfSwap,
	PatternBinaryCount,
	PatternAllOn,
}

// ParsePattern validates a pattern name.
func ParsePattern(s string) (Pattern, error) {
	for _, p := range Patterns {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

// Animation produces one frame per step and advances its own counters.
type Animation interface {
	Next(r Rand) Frame
}

// AnimationOptions parameterises animations.
type AnimationOptions struct {
	// ChaseGap is the stride of the chase_gap pattern.
	ChaseGap int
}

// DefaultChaseGap visits every channel because it is coprime with 8.
const DefaultChaseGap = 3

// NewAnimation returns p in its initial state.
func NewAnimation(p Pattern, opts AnimationOptions) Animation {
	switch p {
	case PatternChase:
		return &chase{}
	case PatternWave:
		return &wave{dir: 1}
	case PatternRandom:
		return randomSingle{}
	case PatternAltEvenOdd:
		return &alternate{a: 0x55, b: 0xAA}
	case PatternBounce:
		return &bounce{dir: 1, max: NumChannels - 1}
	case PatternChaseGap:
		gap := opts.ChaseGap
		if gap <= 0 {
			gap = DefaultChaseGap
		}
		return &chaseGap{gap: gap}
	case PatternPairPingPong:
		return &pairPingPong{bounce{dir: 1, max: NumChannels - 2}}
	case PatternBlockWipe:
		return &blockWipe{}
	case PatternOverlapWave:
		return &overlapWave{}
	case PatternSparkle:
		return &sparkle{}
	case PatternBursts:
		return &bursts{}
	case PatternHalfSwap:
		return &alternate{a: 0x0F, b: 0xF0}
	case PatternBinaryCount:
		return &binaryCount{}
	case PatternAllOn:
		return allOn{}
	}
	return allOff{}
}

type chase struct{ pos int }

func (c *chase) Next(Rand) Frame {
	f := Frame(1 << uint(c.pos))
	c.pos = (c.pos + 1) % NumChannels
	return f
}

// wave fills bits 0..level then drains back to 0.
type wave struct {
	level int
	dir   int
}

func (w *wave) Next(Rand) Frame {
	f := Frame(uint16(1)<<uint(w.level+1) - 1)
	w.level += w.dir
	if w.level >= NumChannels-1 {
		w.level = NumChannels - 1
		w.dir = -1
	} else if w.level <= 0 {
		w.level = 0
		w.dir = 1
	}
	return f
}

type randomSingle struct{}

func (randomSingle) Next(r Rand) Frame {
	return Frame(1 << uint(r.IntN(NumChannels)))
}

// alternate flips between two fixed masks.
type alternate struct {
	a, b  Frame
	phase bool
}

func (x *alternate) Next(Rand) Frame {
	f := x.a
	if x.phase {
		f = x.b
	}
	x.phase = !x.phase
	return f
}

// bounce ping-pongs a position between 0 and max.
type bounce struct {
	pos int
	dir int
	max int
}

func (b *bounce) advance() {
	b.pos += b.dir
	if b.pos >= b.max {
		b.pos = b.max
		b.dir = -1
	} else if b.pos <= 0 {
		b.pos = 0
		b.dir = 1
	}
}

func (b *bounce) Next(Rand) Frame {
	f := Frame(1 << uint(b.pos))
	b.advance()
	return f
}

type chaseGap struct {
	pos int
	gap int
}

func (c *chaseGap) Next(Rand) Frame {
	f := Frame(1 << uint(c.pos))
	c.pos = (c.pos + c.gap) % NumChannels
	return f
}

type pairPingPong struct{ bounce }

func (p *pairPingPong) Next(Rand) Frame {
	hi := p.pos + 1
	if hi > NumChannels-1 {
		hi = NumChannels - 1
	}
	f := Frame(1<<uint(p.pos) | 1<<uint(hi))
	p.advance()
	return f
}

// blockWipe grows a low block from width 0 to 8, then starts over.
type blockWipe struct{ width int }

func (b *blockWipe) Next(Rand) Frame {
	f := Frame(uint16(1)<<uint(b.width) - 1)
	b.width++
	if b.width > NumChannels {
		b.width = 0
	}
	return f
}

const overlapWaveSteps = 2*NumChannels + 1

// overlapWave grows a low block to full width over 9 steps, then clears
// it from the low end over 8 steps so the block leaves at the high end.
type overlapWave struct{ step int }

func (o *overlapWave) Next(Rand) Frame {
	var f Frame
	if o.step <= NumChannels {
		f = Frame(uint16(1)<<uint(o.step) - 1)
	} else {
		f = Frame(uint16(0xFF) << uint(o.step-NumChannels))
	}
	o.step = (o.step + 1) % overlapWaveSteps
	return f
}

const sparkleMaxLit = 3

type sparkle struct{ frame Frame }

func (s *sparkle) Next(r Rand) Frame {
	for i := 0; i < 2; i++ {
		s.frame ^= 1 << uint(r.IntN(NumChannels))
	}
	for bits.OnesCount8(uint8(s.frame)) > sparkleMaxLit {
		// Clear the n-th set bit.
		n := r.IntN(bits.OnesCount8(uint8(s.frame)))
		for i := 0; i < NumChannels; i++ {
			if s.frame.On(i) {
				if n == 0 {
					s.frame &^= 1 << uint(i)
					break
				}
				n--
			}
		}
	}
	return s.frame
}

// bursts stays dark and occasionally holds a random group of 2..5
// channels for 3..6 steps.
type bursts struct {
	mask      Frame
	remaining int
}

const burstChancePercent = 10

func (b *bursts) Next(r Rand) Frame {
	if b.remaining > 0 {
		b.remaining--
		return b.mask
	}
	b.mask = 0
	if r.IntN(100) >= burstChancePercent {
		return 0
	}
	count := 2 + r.IntN(4)
	for bits.OnesCount8(uint8(b.mask)) < count {
		b.mask |= 1 << uint(r.IntN(NumChannels))
	}
	hold := 3 + r.IntN(4)
	b.remaining = hold - 1
	return b.mask
}

type binaryCount struct{ n uint8 }

func (b *binaryCount) Next(Rand) Frame {
	f := Frame(b.n)
	b.n++
	return f
}

type allOn struct{}

func (allOn) Next(Rand) Frame { return AllOnFrame }

type allOff struct{}

func (allOff) Next(Rand) Frame { return 0 }
