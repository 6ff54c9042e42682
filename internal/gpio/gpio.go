// Package gpio provides the relay outputs and the door contact input with
// hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
)

// RelayLine drives one momentary switch through a relay.
type RelayLine interface {
	// SetActive closes the switch.
	SetActive() error

	// SetInactive releases the switch.
	SetInactive() error

	// Close releases GPIO resources.
	Close() error
}

// SensorLine reads the "door fully closed" contact.
type SensorLine interface {
	// IsActive returns true while the contact reports the door fully closed.
	IsActive() (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pins holds the BCM offsets of the door lines and the speaker relay.
type Pins struct {
	Halt     int `yaml:"halt"`
	Open     int `yaml:"open"`
	Close    int `yaml:"close"`
	Closed   int `yaml:"closed"`
	Speakers int `yaml:"speakers"`
}

// Default pin definitions (BCM numbering)
const (
	DefaultPinHalt   = 3  // relay IN2, S0 HALT (normally closed)
	DefaultPinOpen   = 2  // relay IN1, S2 OPEN
	DefaultPinClose  = 4  // relay IN3, S4 CLOSE
	DefaultPinClosed = 17 // reed contact to ground

	DefaultPinSpeakers = 14 // relay IN4, amplifier supply
)

// DefaultPins returns the wiring of the reference installation.
func DefaultPins() Pins {
	return Pins{
		Halt:     DefaultPinHalt,
		Open:     DefaultPinOpen,
		Close:    DefaultPinClose,
		Closed:   DefaultPinClosed,
		Speakers: DefaultPinSpeakers,
	}
}

// DefaultChip is the GPIO character device of the Raspberry Pi header.
const DefaultChip = "gpiochip0"

// Bank groups the lines owned by the door controller.
type Bank struct {
	Halt   RelayLine
	Open   RelayLine
	Close  RelayLine
	Closed SensorLine
}

// Release closes every line in the bank. Relays are closed first so the
// switches are released before the contact goes away.
func (b *Bank) Release() error {
	var errs []error
	for _, l := range []interface{ Close() error }{b.Halt, b.Open, b.Close, b.Closed} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("release bank: %w", errors.Join(errs...))
	}
	return nil
}
