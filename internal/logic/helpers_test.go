package logic

import "errors"

// recordingOutput records every hardware write with the time set by the test.
type recordingOutput struct {
	now    Millis
	levels [NumChannels]bool
	writes []write
	fail   map[int]bool
}

type write struct {
	channel int
	high    bool
	at      Millis
}

func (o *recordingOutput) Write(channel int, high bool) error {
	if o.fail[channel] {
		return errors.New("line busy")
	}
	o.levels[channel] = high
	o.writes = append(o.writes, write{channel: channel, high: high, at: o.now})
	return nil
}

// seqRand returns scripted values in order, reduced mod n. Exhausted, it
// returns 0.
type seqRand struct {
	vals []int
}

func (r *seqRand) IntN(n int) int {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[0]
	r.vals = r.vals[1:]
	return v % n
}

// fakeThermo returns queued readings; ok=false entries simulate failures.
type fakeThermo struct {
	readings []reading
}

type reading struct {
	c  float64
	ok bool
}

func (f *fakeThermo) ReadCelsius() (float64, bool) {
	if len(f.readings) == 0 {
		return 0, false
	}
	r := f.readings[0]
	if len(f.readings) > 1 {
		f.readings = f.readings[1:]
	}
	return r.c, r.ok
}

// memPersister records persisted values.
type memPersister struct {
	values map[string]any
	calls  int
	err    error
}

func newMemPersister() *memPersister {
	return &memPersister{values: make(map[string]any)}
}

func (p *memPersister) Persist(key string, value any) error {
	p.calls++
	if p.err != nil {
		return p.err
	}
	p.values[key] = value
	return nil
}

// mapLoader serves LoadSettings from a map.
type mapLoader map[string]any

func (m mapLoader) String(key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

func (m mapLoader) Int(key string, def int) int {
	if v, ok := m[key].(int); ok {
		return v
	}
	return def
}

func (m mapLoader) Bool(key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

func collect(a Animation, r Rand, n int) []Frame {
	out := make([]Frame, n)
	for i := range out {
		out[i] = a.Next(r)
	}
	return out
}
