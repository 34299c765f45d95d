package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/sweeney/relay-lights/internal/clock"
	"github.com/sweeney/relay-lights/internal/config"
	"github.com/sweeney/relay-lights/internal/control"
	"github.com/sweeney/relay-lights/internal/events"
	"github.com/sweeney/relay-lights/internal/gpio"
	"github.com/sweeney/relay-lights/internal/logging"
	"github.com/sweeney/relay-lights/internal/logic"
	"github.com/sweeney/relay-lights/internal/metrics"
	"github.com/sweeney/relay-lights/internal/mqtt"
	"github.com/sweeney/relay-lights/internal/sensor"
	"github.com/sweeney/relay-lights/internal/status"
	"github.com/sweeney/relay-lights/internal/store"
	"github.com/sweeney/relay-lights/internal/sunset"
	"github.com/sweeney/relay-lights/internal/web"
)

// edges are the hardware and network dependencies of the daemon.
type edges struct {
	output  logic.Output
	thermo  logic.Thermometer
	fetcher sunset.Fetcher
	store   *store.Store
	now     func() time.Time
	loc     *time.Location
	rand    logic.Rand

	// newPublisher connects to MQTT once the control loop exists. nil
	// disables MQTT.
	newPublisher func(mqtt.Commander) (mqtt.Publisher, error)
}

// lightsDaemon is the wired-up process.
type lightsDaemon struct {
	opts    *config.Options
	logger  *slog.Logger
	clock   *clock.Clock
	tracker *status.Tracker
	bus     *events.Bus
	metrics *metrics.Metrics
	loop    *control.Loop
	pub     mqtt.Publisher
	web     *web.Server
}

func run(opts *config.Options) error {
	logger := logging.GetLogger("main")

	st, err := store.Open(opts.StateFile, logging.GetLogger("store"))
	if err != nil {
		return err
	}

	writer, err := gpio.NewRealWriter(opts.GPIOChip, opts.GPIOPins, opts.GPIOActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer writer.Close()

	sensorCtx, stopSensor := context.WithCancel(context.Background())
	defer stopSensor()
	thermo, closeSensor, err := openSensor(sensorCtx, opts)
	if err != nil {
		logger.Warn("Enclosure sensor unavailable", "type", opts.SensorType, "error", err)
	}
	if closeSensor != nil {
		defer closeSensor()
	}

	var fetcher sunset.Fetcher
	if opts.SunsetAPIKey != "" {
		fetcher = sunset.NewClient(sunset.Config{
			APIKey:   opts.SunsetAPIKey,
			Lat:      opts.SunsetLat,
			Lon:      opts.SunsetLon,
			Timeout:  time.Duration(opts.SunsetTimeoutS) * time.Second,
			RetryMax: 2,
		}, logging.GetLogger("sunset"))
	}

	e := edges{
		output:  writer,
		fetcher: fetcher,
		store:   st,
		now:     time.Now,
		loc:     time.Local,
		rand:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	if thermo != nil {
		e.thermo = thermo
	}
	if opts.MQTTBroker != "" {
		e.newPublisher = func(cmd mqtt.Commander) (mqtt.Publisher, error) {
			return mqtt.NewRealPublisher(mqtt.Config{
				Broker:    opts.MQTTBroker,
				ClientID:  opts.MQTTClientID,
				Prefix:    opts.MQTTPrefix,
				Commander: cmd,
			}, logging.GetLogger("mqtt"))
		}
	}

	d, err := newDaemon(opts, e, logger)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(opts.ControlTickMs) * time.Millisecond)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return d.run(ticker.C, sigCh)
}

// openSensor starts background polling of the configured enclosure sensor.
func openSensor(ctx context.Context, opts *config.Options) (*sensor.Cached, func() error, error) {
	var src sensor.Source
	var closeFn func() error

	switch opts.SensorType {
	case "none":
		return nil, nil, nil
	case "cpu":
		src = sensor.ThermalZone{Path: opts.SensorThermalZone}
	default:
		bus, c, err := sensor.OpenI2C(byte(opts.SensorI2CBus))
		if err != nil {
			return nil, nil, err
		}
		sht := sensor.NewSHT31(bus, byte(opts.SensorI2CAddr))
		if err := sht.Reset(); err != nil {
			c()
			return nil, nil, fmt.Errorf("reset sht31: %w", err)
		}
		src, closeFn = sht, c
	}

	interval := time.Duration(opts.ThermalIntervalS) * time.Second
	cached := sensor.NewCached(src, interval, 3*interval, logging.GetLogger("sensor"))
	go cached.Run(ctx)
	return cached, closeFn, nil
}

func controllerConfig(opts *config.Options) (logic.Config, error) {
	cfg := logic.DefaultConfig()
	cfg.ActiveLow = opts.GPIOActiveLow
	cfg.TripC = opts.ThermalTripC
	cfg.RecoverC = opts.ThermalRecoverC
	cfg.ThermalIntervalMs = uint32(opts.ThermalIntervalS) * 1000
	cfg.ChaseGap = opts.ChaseGap

	order, err := logic.ParsePlaylistOrder(opts.PlaylistOrder)
	if err != nil {
		return cfg, err
	}
	cfg.PlaylistOrder = order

	if len(opts.PlaylistMembers) > 0 {
		members := make([]logic.Pattern, 0, len(opts.PlaylistMembers))
		for _, name := range opts.PlaylistMembers {
			p, err := logic.ParsePattern(name)
			if err != nil {
				return cfg, fmt.Errorf("playlist: %w", err)
			}
			members = append(members, p)
		}
		cfg.Playlist = members
	}
	return cfg, nil
}

func newDaemon(opts *config.Options, e edges, logger *slog.Logger) (*lightsDaemon, error) {
	cfg, err := controllerConfig(opts)
	if err != nil {
		return nil, err
	}

	clk := clock.New(e.now, e.loc)
	deps := logic.Deps{Output: e.output, Thermometer: e.thermo, Rand: e.rand}
	settings := logic.DefaultSettings()
	if e.store != nil {
		deps.Persister = e.store
		settings = logic.LoadSettings(e.store)
	}
	ctrl, err := logic.NewController(cfg, settings, deps, clk.Millis())
	if err != nil {
		return nil, fmt.Errorf("init controller: %w", err)
	}

	heartbeat := time.Duration(opts.MQTTHeartbeatS) * time.Second
	tracker := status.NewTracker(clk.Start(), status.Config{
		TickMs:        int64(opts.ControlTickMs),
		HeartbeatMs:   heartbeat.Milliseconds(),
		Broker:        opts.MQTTBroker,
		HTTPAddr:      opts.HTTPAddr,
		Sensor:        opts.SensorType,
		TripC:         opts.ThermalTripC,
		RecoverC:      opts.ThermalRecoverC,
		PlaylistOrder: opts.PlaylistOrder,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	bus := events.New()
	d := &lightsDaemon{
		opts:    opts,
		logger:  logger,
		clock:   clk,
		tracker: tracker,
		bus:     bus,
		metrics: metrics.New(tracker),
	}
	d.loop = control.New(ctrl, clk, tracker, bus, e.fetcher, control.Config{
		Heartbeat:     heartbeat,
		SunsetTimeout: 2 * time.Duration(opts.SunsetTimeoutS) * time.Second,
	}, logging.GetLogger("control"))

	if e.newPublisher != nil {
		pub, err := e.newPublisher(d.loop)
		if err != nil {
			logger.Warn("MQTT disabled", "broker", opts.MQTTBroker, "error", err)
		} else {
			d.pub = pub
		}
	}
	if opts.HTTPAddr != "" {
		d.web = web.New(opts.HTTPAddr, tracker, d.loop, d.metrics.Handler(), logging.GetLogger("web"))
	}
	return d, nil
}

// run drives the daemon until a signal arrives or the loop stops.
func (d *lightsDaemon) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	defer d.bus.Close()

	detachMetrics := d.metrics.Attach(d.bus)
	defer detachMetrics()

	// Refresh network info on each heartbeat.
	offNet := d.bus.Subscribe(func(events.HeartbeatEvent) {
		if net := readNetworkInfo(); net != nil {
			d.tracker.SetNetwork(net)
		}
	})
	defer offNet()

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- d.loop.Run(ctx, tick) }()

	if d.pub != nil {
		defer d.pub.Close()
		unforward := mqtt.Forward(d.bus, d.pub, d.tracker, logging.GetLogger("mqtt"))
		defer unforward()
		if err := mqtt.PublishLifecycle(d.pub, d.tracker, "STARTUP", ""); err != nil {
			d.logger.Warn("Failed to publish startup event", "error", err)
		} else {
			d.logger.Info("Published startup event")
		}
	}

	if d.web != nil {
		go func() {
			if err := d.web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error("HTTP server error", "error", err)
			}
		}()
		d.logger.Info("HTTP server listening", "addr", d.opts.HTTPAddr)
	}

	d.logger.Info("Started",
		"tick", time.Duration(d.opts.ControlTickMs)*time.Millisecond,
		"broker", d.opts.MQTTBroker,
		"sensor", d.opts.SensorType,
		"heartbeat", time.Duration(d.opts.MQTTHeartbeatS)*time.Second)

	daemon.SdNotify(false, daemon.SdNotifyReady)
	stopWatchdog := d.startWatchdog()
	defer stopWatchdog()

	var runErr error
	select {
	case s := <-sig:
		reason := signalName(s)
		d.logger.Info("Shutting down", "signal", reason)
		daemon.SdNotify(false, daemon.SdNotifyStopping)
		if d.pub != nil {
			if conn, ok := d.pub.(mqtt.ConnectionStatus); ok {
				d.tracker.SetMQTTConnected(conn.IsConnected())
			}
			if err := mqtt.PublishLifecycle(d.pub, d.tracker, "SHUTDOWN", reason); err != nil {
				d.logger.Warn("Failed to publish shutdown event", "error", err)
			} else {
				d.logger.Info("Published shutdown event")
			}
		}
	case err := <-loopDone:
		runErr = fmt.Errorf("control loop stopped: %w", err)
		loopDone <- err
	}

	if d.web != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		d.web.Shutdown(shutdownCtx)
		done()
	}
	cancel()
	<-loopDone
	return runErr
}

// startWatchdog pings systemd while the control loop keeps ticking.
func (d *lightsDaemon) startWatchdog() func() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if time.Since(d.loop.LastTick()) < interval {
					daemon.SdNotify(false, daemon.SdNotifyWatchdog)
				} else {
					d.logger.Warn("Control loop stalled, withholding watchdog ping", "last_tick", d.loop.LastTick())
				}
			}
		}
	}()
	return func() { close(stop) }
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
