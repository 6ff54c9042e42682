// Package config loads the daemon configuration from an optional YAML file
// layered over built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/door"
	"github.com/sweeney/garage-controller/internal/gpio"
	"github.com/sweeney/garage-controller/internal/i2c"
	"github.com/sweeney/garage-controller/internal/sampler"
)

// EnvI2CDevice names the environment variable holding the default I2C device.
const EnvI2CDevice = "I2C_DEVICE"

// DefaultI2CDevice is used when neither the file nor the environment names one.
const DefaultI2CDevice = "/dev/i2c-1"

// Config is the full daemon configuration.
type Config struct {
	Chip     string              `yaml:"chip"`
	Pins     gpio.Pins           `yaml:"pins"`
	I2C      I2C                 `yaml:"i2c"`
	Cistern  cistern.Calibration `yaml:"cistern"`
	MQTT     MQTT                `yaml:"mqtt"`
	HTTP     HTTP                `yaml:"http"`
	MDNS     MDNS                `yaml:"mdns"`
	Timings  Timings             `yaml:"timings"`
	LogLevel string              `yaml:"log_level"`
}

// I2C selects the distance sensor.
type I2C struct {
	Device  string        `yaml:"device"`
	Address uint16        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

// Bus converts to the i2c package's config.
func (c I2C) Bus() i2c.Config {
	return i2c.Config{Device: c.Device, Address: c.Address, Timeout: c.Timeout}
}

// MQTT configures the optional broker connection. An empty broker disables MQTT.
type MQTT struct {
	Broker string `yaml:"broker"`
}

// HTTP configures the API listener.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// MDNS configures service advertisement.
type MDNS struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// Timings holds every interval the daemon uses.
type Timings struct {
	Settle         time.Duration `yaml:"settle"`
	SampleInterval time.Duration `yaml:"sample_interval"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WatchInterval  time.Duration `yaml:"watch_interval"`
	Debounce       time.Duration `yaml:"debounce"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
	ShutdownGrace  time.Duration `yaml:"shutdown_grace"`
}

// Error describes a configuration problem in a file or a field.
type Error struct {
	File  string
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.File != "" && e.Field != "":
		return fmt.Sprintf("config %s: %s: %v", e.File, e.Field, e.Err)
	case e.File != "":
		return fmt.Sprintf("config %s: %v", e.File, e.Err)
	case e.Field != "":
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Default returns the built-in configuration. The I2C device honours I2C_DEVICE.
func Default() Config {
	dev := os.Getenv(EnvI2CDevice)
	if dev == "" {
		dev = DefaultI2CDevice
	}
	return Config{
		Chip: gpio.DefaultChip,
		Pins: gpio.DefaultPins(),
		I2C: I2C{
			Device:  dev,
			Address: i2c.DefaultAddress,
			Timeout: i2c.DefaultTimeout,
		},
		Cistern: cistern.DefaultCalibration(),
		HTTP:    HTTP{Addr: ":80"},
		MDNS:    MDNS{Enabled: true, Instance: "garage"},
		Timings: Timings{
			Settle:         door.DefaultSettle,
			SampleInterval: sampler.DefaultInterval,
			ReadTimeout:    sampler.DefaultReadTimeout,
			WatchInterval:  250 * time.Millisecond,
			Debounce:       500 * time.Millisecond,
			Heartbeat:      15 * time.Minute,
			ShutdownGrace:  5 * time.Second,
		},
		LogLevel: "info",
	}
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, &Error{Err: err}
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path, or returns the validated defaults when path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &Error{File: path, Err: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			ce.File = path
			return Config{}, ce
		}
		return Config{}, &Error{File: path, Err: err}
	}
	return cfg, nil
}

// Validate checks the whole configuration and returns the first problem.
func (c Config) Validate() error {
	if c.Chip == "" {
		return &Error{Field: "chip", Err: errors.New("must not be empty")}
	}
	if err := validatePins(c.Pins); err != nil {
		return &Error{Field: "pins", Err: err}
	}
	if c.I2C.Device == "" {
		return &Error{Field: "i2c.device", Err: errors.New("must not be empty")}
	}
	if c.I2C.Address == 0 || c.I2C.Address > 0x7f {
		return &Error{Field: "i2c.address", Err: fmt.Errorf("0x%x is not a 7-bit address", c.I2C.Address)}
	}
	if err := c.Cistern.Validate(); err != nil {
		return &Error{Field: "cistern", Err: err}
	}

	positive := []struct {
		field string
		d     time.Duration
	}{
		{"i2c.timeout", c.I2C.Timeout},
		{"timings.settle", c.Timings.Settle},
		{"timings.sample_interval", c.Timings.SampleInterval},
		{"timings.read_timeout", c.Timings.ReadTimeout},
		{"timings.watch_interval", c.Timings.WatchInterval},
		{"timings.shutdown_grace", c.Timings.ShutdownGrace},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return &Error{Field: p.field, Err: fmt.Errorf("must be positive, got %v", p.d)}
		}
	}
	if c.Timings.Debounce < 0 {
		return &Error{Field: "timings.debounce", Err: fmt.Errorf("must not be negative, got %v", c.Timings.Debounce)}
	}
	if c.Timings.Heartbeat < 0 {
		return &Error{Field: "timings.heartbeat", Err: fmt.Errorf("must not be negative, got %v", c.Timings.Heartbeat)}
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return &Error{Field: "log_level", Err: err}
	}
	return nil
}

func validatePins(p gpio.Pins) error {
	seen := map[int]string{}
	for _, pin := range []struct {
		name string
		n    int
	}{{"halt", p.Halt}, {"open", p.Open}, {"close", p.Close}, {"closed", p.Closed}, {"speakers", p.Speakers}} {
		if pin.n < 0 {
			return fmt.Errorf("%s: pin %d is negative", pin.name, pin.n)
		}
		if other, dup := seen[pin.n]; dup {
			return fmt.Errorf("%s and %s both use pin %d", other, pin.name, pin.n)
		}
		seen[pin.n] = pin.name
	}
	return nil
}
