//go:build linux

package i2c

import (
	"fmt"

	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/sysfs"
)

// Open initialises the periph host drivers and opens the ranger on the
// configured bus.
func Open(cfg Config) (*Ranger, error) {
	n, err := busNumber(cfg.Device)
	if err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := sysfs.NewI2C(n)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}

	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}

	r := NewRanger(&periphi2c.Dev{Bus: bus, Addr: addr}, cfg.Timeout)
	r.closer = bus.Close
	return r, nil
}
