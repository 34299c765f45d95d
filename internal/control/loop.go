// Package control runs the controller on a single goroutine. Commands from
// the web and MQTT surfaces are funnelled into it; blocking work such as the
// sunset fetch runs on helper goroutines and reports back over channels.
package control

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/events"
	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/status"
	"github.com/sweeney/relay-lights/internal/sunset"
)

// Config tunes the loop.
type Config struct {
	Heartbeat     time.Duration
	SunsetTimeout time.Duration
}

type sunsetResult struct {
	at  time.Time
	err error
}

// Loop owns a Controller. Only Run touches it.
type Loop struct {
	ctrl    *logic.Controller
	clock   *clock.Clock
	tracker *status.Tracker
	bus     *events.Bus
	fetcher sunset.Fetcher
	cfg     Config
	logger  *slog.Logger

	requests chan request
	sunsets  chan sunsetResult
	done     chan struct{}
	lastTick atomic.Int64
}

type request struct {
	Request
	reply chan Reply
}

// New creates a loop. fetcher may be nil to disable sunset lookups.
func New(ctrl *logic.Controller, clk *clock.Clock, tracker *status.Tracker, bus *events.Bus, fetcher sunset.Fetcher, cfg Config, logger *slog.Logger) *Loop {
	if cfg.SunsetTimeout <= 0 {
		cfg.SunsetTimeout = 30 * time.Second
	}
	return &Loop{
		ctrl:     ctrl,
		clock:    clk,
		tracker:  tracker,
		bus:      bus,
		fetcher:  fetcher,
		cfg:      cfg,
		logger:   logger,
		requests: make(chan request),
		sunsets:  make(chan sunsetResult, 1),
		done:     make(chan struct{}),
	}
}

// Run drives the controller on every tick until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time) error {
	defer close(l.done)

	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			l.step(fetchCtx)
		case req := <-l.requests:
			req.reply <- l.handle(req.Request)
		case res := <-l.sunsets:
			l.applySunset(res)
		}
	}
}

// Submit hands a command to the loop and waits for the outcome.
func (l *Loop) Submit(ctx context.Context, req Request) (logic.CommandResult, error) {
	r := request{Request: req, reply: make(chan Reply, 1)}
	select {
	case l.requests <- r:
	case <-l.done:
		return logic.CommandResult{}, ErrStopped
	case <-ctx.Done():
		return logic.CommandResult{}, ctx.Err()
	}
	select {
	case rep := <-r.reply:
		return rep.Result, rep.Err
	case <-ctx.Done():
		return logic.CommandResult{}, ctx.Err()
	}
}

// LastTick returns the wall time of the most recent tick.
func (l *Loop) LastTick() time.Time {
	ns := l.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (l *Loop) step(ctx context.Context) {
	now := l.clock.Millis()
	local := l.clock.Local()

	l.ctrl.Tick(now, local)

	if l.fetcher != nil && l.ctrl.SunsetFetchDue(now) {
		l.ctrl.SunsetFetchStarted(now)
		go l.fetchSunset(ctx)
	}

	if hb := l.ctrl.CheckHeartbeat(now, uint32(l.cfg.Heartbeat.Milliseconds())); hb != nil {
		l.logger.Info("Heartbeat", "uptime", time.Duration(hb.UptimeMs)*time.Millisecond, "counts", hb.Counts)
		l.bus.Publish(events.HeartbeatEvent{
			Uptime:    time.Duration(hb.UptimeMs) * time.Millisecond,
			Counts:    hb.Counts,
			Timestamp: l.clock.Now(),
		})
	}

	l.flush(local)
	l.lastTick.Store(l.clock.Now().UnixNano())
}

func (l *Loop) handle(req Request) Reply {
	now := l.clock.Millis()
	res, err := apply(l.ctrl, req, now)

	ev := events.CommandEvent{
		RequestID: req.ID,
		Source:    req.Source,
		Command:   req.Command,
		Value:     req.Value,
		Result:    res,
		Timestamp: l.clock.Now(),
	}
	if err != nil {
		ev.Err = err.Error()
		l.logger.Warn("Command rejected", "id", req.ID, "source", req.Source, "command", req.Command, "value", req.Value, "error", err)
	} else {
		l.logger.Info("Command applied", "id", req.ID, "source", req.Source, "command", req.Command, "applied", res.Applied, "clamped", res.Clamped, "note", res.Note)
	}
	l.bus.Publish(ev)

	l.flush(l.clock.Local())
	return Reply{Result: res, Err: err}
}

func (l *Loop) fetchSunset(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.SunsetTimeout)
	defer cancel()
	at, err := l.fetcher.FetchSunset(ctx)
	select {
	case l.sunsets <- sunsetResult{at: at, err: err}:
	case <-ctx.Done():
	}
}

func (l *Loop) applySunset(res sunsetResult) {
	now := l.clock.Millis()
	minute := 0
	if res.err != nil {
		l.logger.Warn("Sunset fetch failed", "error", res.err)
	} else {
		minute = sunset.MinuteOfDay(res.at, l.clock.Location())
		l.logger.Info("Sunset updated", "sunset", logic.FormatClock(minute))
	}
	l.ctrl.ApplySunset(minute, res.err, now)
	l.flush(l.clock.Local())
}

// flush publishes pending controller events and refreshes the tracker.
func (l *Loop) flush(local logic.LocalTime) {
	ts := l.clock.Now()
	for _, e := range l.ctrl.DrainEvents() {
		l.logger.Info("Event", "type", e.Type, "mode", e.Mode, "power", e.Power, "pattern", e.Pattern, "detail", e.Detail)
		l.bus.Publish(events.ControllerEvent{Event: e, Timestamp: ts})
	}
	if l.tracker != nil {
		l.tracker.Update(l.ctrl.Status(local))
	}
}
