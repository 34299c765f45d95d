package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cached polls a Source in the background and serves the latest reading.
// ReadCelsius never blocks, so Cached satisfies the controller's
// Thermometer port.
type Cached struct {
	src      Source
	interval time.Duration
	timeout  time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.RWMutex
	value  float64
	at     time.Time
	have   bool
	reads  uint64
	errors uint64
}

// NewCached wraps src. Readings older than maxAge are reported as failed.
func NewCached(src Source, interval, maxAge time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		src:      src,
		interval: interval,
		timeout:  interval / 2,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. The first poll is immediate.
func (c *Cached) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll takes one reading from the source.
func (c *Cached) Poll(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	v, err := c.src.Celsius(rctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errors++
		c.logger.Warn("temperature read failed", "error", err)
		return
	}
	c.reads++
	c.value = v
	c.at = c.now()
	c.have = true
	c.logger.Debug("temperature", "celsius", v)
}

// ReadCelsius returns the latest reading if it is fresh.
func (c *Cached) ReadCelsius() (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.have || c.now().Sub(c.at) > c.maxAge {
		return 0, false
	}
	return c.value, true
}

// Stats returns successful and failed read counts.
func (c *Cached) Stats() (reads, errors uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reads, c.errors
}
