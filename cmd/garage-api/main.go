// Command garage-api drives the garage door relays, samples the cistern level
// and serves both over HTTP, with optional MQTT and mDNS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/config"
	"github.com/sweeney/garage-controller/internal/discovery"
	"github.com/sweeney/garage-controller/internal/door"
	"github.com/sweeney/garage-controller/internal/gpio"
	"github.com/sweeney/garage-controller/internal/i2c"
	"github.com/sweeney/garage-controller/internal/logging"
	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/mqtt"
	"github.com/sweeney/garage-controller/internal/sampler"
	"github.com/sweeney/garage-controller/internal/status"
	"github.com/sweeney/garage-controller/internal/web"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Hardware constructors, replaced in tests.
var (
	openBank   = gpio.OpenBank
	openRanger = func(cfg i2c.Config) (rangeBus, error) { return i2c.Open(cfg) }
)

type rangeBus interface {
	cistern.Bus
	Close() error
}

type publisher interface {
	mqtt.Publisher
	mqtt.ConnectionStatus
}

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "garage-api: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Setup(os.Stderr, cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "garage-api: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(cfg, sigCh); err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}

// loadConfig reads the optional config file and applies explicitly set flags on top.
func loadConfig(args []string) (config.Config, error) {
	def := config.Default()

	fs := flag.NewFlagSet("garage-api", flag.ContinueOnError)
	path := fs.String("config", "", "YAML config file (optional)")
	httpAddr := fs.String("http", def.HTTP.Addr, "HTTP listen address")
	broker := fs.String("broker", def.MQTT.Broker, "MQTT broker address (empty disables MQTT)")
	device := fs.String("i2c-device", def.I2C.Device, "I2C device of the distance sensor (default from $"+config.EnvI2CDevice+")")
	chip := fs.String("chip", def.Chip, "GPIO chip")
	pinHalt := fs.Int("pin-halt", def.Pins.Halt, "BCM pin of the HALT relay")
	pinOpen := fs.Int("pin-open", def.Pins.Open, "BCM pin of the OPEN relay")
	pinClose := fs.Int("pin-close", def.Pins.Close, "BCM pin of the CLOSE relay")
	pinClosed := fs.Int("pin-closed", def.Pins.Closed, "BCM pin of the door-closed contact")
	settle := fs.Duration("settle", def.Timings.Settle, "Relay pulse length and interlock pause")
	sample := fs.Duration("sample-interval", def.Timings.SampleInterval, "Cistern sampling interval")
	readTimeout := fs.Duration("read-timeout", def.Timings.ReadTimeout, "Timeout for one cistern reading")
	watch := fs.Duration("watch-interval", def.Timings.WatchInterval, "Door contact polling interval")
	debounce := fs.Duration("debounce", def.Timings.Debounce, "Door contact debounce")
	heartbeat := fs.Duration("heartbeat", def.Timings.Heartbeat, "Heartbeat interval (0 to disable)")
	mdns := fs.Bool("mdns", def.MDNS.Enabled, "Advertise the HTTP API over mDNS")
	logLevel := fs.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}
	if *showVersion {
		fmt.Println(version)
		return config.Config{}, flag.ErrHelp
	}
	if fs.NArg() > 0 {
		return config.Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return config.Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "broker":
			cfg.MQTT.Broker = *broker
		case "i2c-device":
			cfg.I2C.Device = *device
		case "chip":
			cfg.Chip = *chip
		case "pin-halt":
			cfg.Pins.Halt = *pinHalt
		case "pin-open":
			cfg.Pins.Open = *pinOpen
		case "pin-close":
			cfg.Pins.Close = *pinClose
		case "pin-closed":
			cfg.Pins.Closed = *pinClosed
		case "settle":
			cfg.Timings.Settle = *settle
		case "sample-interval":
			cfg.Timings.SampleInterval = *sample
		case "read-timeout":
			cfg.Timings.ReadTimeout = *readTimeout
		case "watch-interval":
			cfg.Timings.WatchInterval = *watch
		case "debounce":
			cfg.Timings.Debounce = *debounce
		case "heartbeat":
			cfg.Timings.Heartbeat = *heartbeat
		case "mdns":
			cfg.MDNS.Enabled = *mdns
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		SampleMs:    cfg.Timings.SampleInterval.Milliseconds(),
		ReadTimeout: cfg.Timings.ReadTimeout.Milliseconds(),
		WatchMs:     cfg.Timings.WatchInterval.Milliseconds(),
		DebounceMs:  cfg.Timings.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Timings.Heartbeat.Milliseconds(),
		SettleMs:    cfg.Timings.Settle.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
		I2CDevice:   cfg.I2C.Device,
	}
}

func newPublisher(broker string) publisher {
	if broker == "" {
		log.Info().Msg("mqtt disabled")
		return mqtt.NopPublisher{}
	}
	return mqtt.NewRealPublisher(broker)
}

func levelOf(snap cistern.Snapshot) status.Level {
	return status.Level{
		Height:     snap.Height,
		Percentage: snap.Percentage,
		Volume:     snap.Volume,
		Time:       snap.Time,
	}
}

// run owns every resource for the life of the daemon. It returns nil after a
// signal-initiated shutdown and an error only when startup fails.
func run(cfg config.Config, sig <-chan os.Signal) error {
	bank, err := openBank(cfg.Chip, cfg.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := bank.Release(); err != nil {
			log.Error().Err(err).Msg("release gpio")
		}
	}()

	ranger, err := openRanger(cfg.I2C.Bus())
	if err != nil {
		return fmt.Errorf("init i2c: %w", err)
	}
	defer ranger.Close()

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
	}

	shared := door.NewShared(door.NewFromBank(bank, door.WithSettle(cfg.Timings.Settle)))
	monitor := cistern.NewMonitor(ranger, cfg.Cistern)

	pub := newPublisher(cfg.MQTT.Broker)
	defer pub.Close()

	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if info := readNetworkInfo(); info != nil {
		tracker.SetNetwork(info)
	}

	srv := web.New(cfg.HTTP.Addr, shared, monitor, tracker)
	hub := srv.Hub()

	audit := &auditTrail{pub: pub}
	shared.OnCommand(func(cmd door.Command, took time.Duration) {
		at := time.Now()
		tracker.RecordCommand(string(cmd), at)
		// Observers run under the door lock; don't hold it for a broker round trip.
		audit.record(mqtt.CommandEvent{Timestamp: at, Command: string(cmd), Took: took, Source: "http"})
	})

	smp := sampler.New(monitor, cfg.Timings.SampleInterval, cfg.Timings.ReadTimeout)
	smp.OnSample(func(snap cistern.Snapshot) {
		tracker.RecordSample(levelOf(snap))
		hub.BroadcastLevel(snap)
		if err := pub.PublishLevel(snap); err != nil {
			log.Warn().Err(err).Msg("publish level")
		}
	})
	smp.OnError(tracker.RecordSampleError)

	// Startup event with full status snapshot
	tracker.SetMQTTConnected(pub.IsConnected())
	snap := tracker.Snapshot()
	if err := pub.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}); err != nil {
		log.Warn().Err(err).Msg("failed to publish startup event")
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}()
	log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")

	adv := discovery.NewAdvertiser()
	if cfg.MDNS.Enabled {
		if err := advertise(adv, cfg, ln.Addr()); err != nil {
			log.Warn().Err(err).Msg("mdns advertisement disabled")
		}
	}
	defer adv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		smp.Run(ctx)
	}()

	log.Info().
		Str("version", version).
		Dur("settle", cfg.Timings.Settle).
		Dur("sample", cfg.Timings.SampleInterval).
		Dur("watch", cfg.Timings.WatchInterval).
		Dur("debounce", cfg.Timings.Debounce).
		Str("broker", cfg.MQTT.Broker).
		Str("i2c", cfg.I2C.Device).
		Msg("started")

	ticker := time.NewTicker(cfg.Timings.WatchInterval)
	s := runLoop(shared, pub, pub, tracker, hub, cfg.Timings.Debounce, cfg.Timings.Heartbeat, time.Now, ticker.C, sig)
	ticker.Stop()

	log.Info().Str("signal", signalName(s)).Msg("shutting down")
	cancel()
	wg.Wait()

	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Timings.ShutdownGrace)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}

	audit.wait()
	publishShutdown(pub, pub, tracker, signalName(s))
	return nil
}

func advertise(adv *discovery.Advertiser, cfg config.Config, addr net.Addr) error {
	port, err := discovery.PortFromAddr(addr.String())
	if err != nil {
		return err
	}
	if err := adv.Start(discovery.Info{Instance: cfg.MDNS.Instance, Port: port, Version: version}); err != nil {
		return err
	}
	log.Info().Str("service", discovery.ServiceType).Int("port", port).Msg("mdns advertising")
	return nil
}

type doorReader interface {
	State() door.State
}

type doorFeed interface {
	BroadcastDoor(logic.Event)
}

// runLoop polls the door contact on every tick, debounces it into door events
// and emits heartbeats, until a signal arrives. It returns that signal.
func runLoop(d doorReader, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, feed doorFeed, debounce, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) os.Signal {
	detector := logic.NewDetector(debounce, now())

	for {
		select {
		case s := <-sig:
			return s

		case <-tick:
			t := now()
			event := detector.Process(logic.Input{
				Closed: d.State() == door.StateClosed,
				Time:   t,
			})

			if tracker != nil {
				tracker.UpdateDoor(detector.CurrentState(), detector.IsBaselined(), detector.Counts())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if event != nil {
				log.Info().Str("event", string(event.Type)).Str("state", string(event.State)).Msg("door")
				if feed != nil {
					feed.BroadcastDoor(*event)
				}
				if err := publisher.PublishDoor(*event); err != nil {
					log.Warn().Err(err).Msg("publish door event")
				}
			}

			if !detector.IsBaselined() {
				continue
			}

			if hb := detector.CheckHeartbeat(t, heartbeat); hb != nil {
				log.Info().
					Dur("uptime", hb.Uptime).
					Str("state", string(hb.State)).
					Int("opened", hb.Counts.Opened).
					Int("closed", hb.Counts.Closed).
					Msg("heartbeat")

				hbEvent := mqtt.SystemEvent{Timestamp: hb.Timestamp, Event: "HEARTBEAT"}
				if tracker != nil {
					if info := readNetworkInfo(); info != nil {
						tracker.SetNetwork(info)
					}
					hbEvent.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Warn().Err(err).Msg("heartbeat publish error")
				}
			}
		}
	}
}

// auditTrail publishes command events off the caller's goroutine and lets
// shutdown wait for the ones still in flight.
type auditTrail struct {
	pub mqtt.Publisher
	wg  sync.WaitGroup
}

func (a *auditTrail) record(ev mqtt.CommandEvent) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.pub.PublishCommand(ev); err != nil {
			log.Warn().Err(err).Str("command", ev.Command).Msg("publish command")
		}
	}()
}

// wait blocks until every recorded event has been handed to the broker.
func (a *auditTrail) wait() { a.wg.Wait() }

func publishShutdown(publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, reason string) {
	event := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		snap := tracker.Snapshot()
		event.Timestamp = snap.Now
		event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Warn().Err(err).Msg("failed to publish shutdown event")
	} else {
		log.Info().Msg("published shutdown event")
	}
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
