package sunset

import (
	"context"
	"sync"
	"time"
)

// FakeFetcher returns scripted results.
type FakeFetcher struct {
	mu    sync.Mutex
	when  time.Time
	err   error
	calls int
}

// NewFakeFetcher creates a fetcher returning when.
func NewFakeFetcher(when time.Time) *FakeFetcher {
	return &FakeFetcher{when: when}
}

// Set changes the scripted result.
func (f *FakeFetcher) Set(when time.Time, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.when = when
	f.err = err
}

// FetchSunset implements Fetcher.
func (f *FakeFetcher) FetchSunset(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	return f.when, f.err
}

// Calls returns the number of fetches.
func (f *FakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
