package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/gpio"
)

func TestDefaultIsValid(t *testing.T) {
	t.Setenv(EnvI2CDevice, "")
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, gpio.DefaultPins(), cfg.Pins)
	assert.Equal(t, DefaultI2CDevice, cfg.I2C.Device)
	assert.Equal(t, uint16(0x70), cfg.I2C.Address)
	assert.Equal(t, 500*time.Millisecond, cfg.Timings.Settle)
	assert.Empty(t, cfg.MQTT.Broker)
}

func TestDefaultHonoursI2CDeviceEnv(t *testing.T) {
	t.Setenv(EnvI2CDevice, "/dev/i2c-3")

	assert.Equal(t, "/dev/i2c-3", Default().I2C.Device)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Setenv(EnvI2CDevice, "")
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
pins:
  halt: 5
  open: 6
  close: 13
  closed: 19
i2c:
  address: 0x71
cistern:
  sensor_height: 2.5
  empty_height: 0.2
  full_height: 2.2
  tank:
    shape: cuboid
    length: 3
    width: 2
mqtt:
  broker: tcp://192.168.1.200:1883
timings:
  settle: 750ms
  heartbeat: 0s
log_level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, gpio.Pins{Halt: 5, Open: 6, Close: 13, Closed: 19, Speakers: gpio.DefaultPinSpeakers}, cfg.Pins)
	assert.Equal(t, uint16(0x71), cfg.I2C.Address)
	assert.Equal(t, cistern.ShapeCuboid, cfg.Cistern.Tank.Shape)
	assert.Equal(t, 3.0, cfg.Cistern.Tank.Length)
	assert.Equal(t, "tcp://192.168.1.200:1883", cfg.MQTT.Broker)
	assert.Equal(t, 750*time.Millisecond, cfg.Timings.Settle)
	assert.Equal(t, time.Duration(0), cfg.Timings.Heartbeat)
	assert.Equal(t, "debug", cfg.LogLevel)

	// untouched keys keep their defaults
	assert.Equal(t, Default().Timings.SampleInterval, cfg.Timings.SampleInterval)
	assert.Equal(t, ":80", cfg.HTTP.Addr)
}

func TestParseCommentOnlyFile(t *testing.T) {
	cfg, err := Parse([]byte("# nothing configured yet\n"))

	require.NoError(t, err)
	assert.Equal(t, Default().Pins, cfg.Pins)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("pinz:\n  halt: 3\n"))

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Empty(t, ce.Field)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"duplicate pin", func(c *Config) { c.Pins.Close = c.Pins.Open }, "pins"},
		{"negative pin", func(c *Config) { c.Pins.Closed = -1 }, "pins"},
		{"speakers on a door relay", func(c *Config) { c.Pins.Speakers = c.Pins.Halt }, "pins"},
		{"empty chip", func(c *Config) { c.Chip = "" }, "chip"},
		{"empty device", func(c *Config) { c.I2C.Device = "" }, "i2c.device"},
		{"8-bit address", func(c *Config) { c.I2C.Address = 0xE0 }, "i2c.address"},
		{"full below empty", func(c *Config) { c.Cistern.FullHeight = 0.1 }, "cistern"},
		{"zero settle", func(c *Config) { c.Timings.Settle = 0 }, "timings.settle"},
		{"zero sample interval", func(c *Config) { c.Timings.SampleInterval = 0 }, "timings.sample_interval"},
		{"zero read timeout", func(c *Config) { c.Timings.ReadTimeout = 0 }, "timings.read_timeout"},
		{"negative debounce", func(c *Config) { c.Timings.Debounce = -time.Second }, "timings.debounce"},
		{"negative heartbeat", func(c *Config) { c.Timings.Heartbeat = -time.Second }, "timings.heartbeat"},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.edit(&cfg)

			var ce *Error
			require.ErrorAs(t, cfg.Validate(), &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":8080\"\n"), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Load(path)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, path, ce.File)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadInvalidFileNamesFileAndField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timings:\n  settle: 0s\n"), 0o644))

	_, err := Load(path)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, path, ce.File)
	assert.Equal(t, "timings.settle", ce.Field)
	assert.Contains(t, err.Error(), "garage.yaml")
}

func TestI2CBus(t *testing.T) {
	c := I2C{Device: "/dev/i2c-1", Address: 0x70, Timeout: time.Second}
	bus := c.Bus()

	assert.Equal(t, "/dev/i2c-1", bus.Device)
	assert.Equal(t, uint16(0x70), bus.Address)
	assert.Equal(t, time.Second, bus.Timeout)
}
