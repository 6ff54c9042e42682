//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "garage-controller"

// Relay is a relay output on the GPIO character device.
// The relay board switches on a low level, so the line is requested active-low
// and logical 1 means the switch is closed.
type Relay struct {
	name string
	line *gpiocdev.Line
}

func requestRelay(chip *gpiocdev.Chip, name string, offset int) (*Relay, error) {
	line, err := chip.RequestLine(offset,
		gpiocdev.AsActiveLow,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request %s pin %d: %w", name, offset, err)
	}
	return &Relay{name: name, line: line}, nil
}

// SetActive closes the switch.
func (r *Relay) SetActive() error {
	if err := r.line.SetValue(1); err != nil {
		return fmt.Errorf("activate %s: %w", r.name, err)
	}
	return nil
}

// SetInactive releases the switch.
func (r *Relay) SetInactive() error {
	if err := r.line.SetValue(0); err != nil {
		return fmt.Errorf("deactivate %s: %w", r.name, err)
	}
	return nil
}

// Close releases the switch and then the line.
func (r *Relay) Close() error {
	var errs []error
	if err := r.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("deactivate %s: %w", r.name, err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close %s pin: %w", r.name, err))
	}
	return errors.Join(errs...)
}

// Contact is the door-closed input on the GPIO character device.
// The reed switch pulls the pin to ground when the door is closed.
type Contact struct {
	line *gpiocdev.Line
}

func requestContact(chip *gpiocdev.Chip, offset int) (*Contact, error) {
	line, err := chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request closed pin %d: %w", offset, err)
	}
	return &Contact{line: line}, nil
}

// IsActive returns true while the contact is closed.
func (c *Contact) IsActive() (bool, error) {
	v, err := c.line.Value()
	if err != nil {
		return false, fmt.Errorf("read closed pin: %w", err)
	}
	return v == 1, nil
}

// Close reconfigures the pin to input with pull-down (matching Pi boot
// defaults) before releasing it.
func (c *Contact) Close() error {
	var errs []error
	if err := c.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure closed pin: %w", err))
	}
	if err := c.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close closed pin: %w", err))
	}
	return errors.Join(errs...)
}

// OpenBank requests all door lines from the named chip. The relays come up
// inactive. On failure every line acquired so far is released again.
func OpenBank(chipName string, pins Pins) (*Bank, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	// Requested lines stay valid after the chip handle is closed.
	defer chip.Close()

	b := &Bank{}
	fail := func(err error) (*Bank, error) {
		b.Release()
		return nil, err
	}

	halt, err := requestRelay(chip, "HALT", pins.Halt)
	if err != nil {
		return fail(err)
	}
	b.Halt = halt

	open, err := requestRelay(chip, "OPEN", pins.Open)
	if err != nil {
		return fail(err)
	}
	b.Open = open

	cls, err := requestRelay(chip, "CLOSE", pins.Close)
	if err != nil {
		return fail(err)
	}
	b.Close = cls

	contact, err := requestContact(chip, pins.Closed)
	if err != nil {
		return fail(err)
	}
	b.Closed = contact

	return b, nil
}

// Latch is a relay line that is left at its level when released.
type Latch struct {
	name string
	line *gpiocdev.Line
}

// OpenLatch requests the line without changing its direction or level, so
// State can report what a previous process left behind.
func OpenLatch(chipName, name string, offset int) (LatchLine, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	defer chip.Close()

	line, err := chip.RequestLine(offset,
		gpiocdev.AsIs,
		gpiocdev.AsActiveLow,
		gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("request %s pin %d: %w", name, offset, err)
	}
	return &Latch{name: name, line: line}, nil
}

// Set drives the relay. Active-low wiring: on pulls the pin low.
func (l *Latch) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := l.line.Reconfigure(gpiocdev.AsOutput(v)); err != nil {
		return fmt.Errorf("set %s: %w", l.name, err)
	}
	return nil
}

// State reports on or off for an output line, unknown otherwise.
func (l *Latch) State() (LatchState, error) {
	info, err := l.line.Info()
	if err != nil {
		return LatchUnknown, fmt.Errorf("read %s line info: %w", l.name, err)
	}
	if info.Config.Direction != gpiocdev.LineDirectionOutput {
		return LatchUnknown, nil
	}
	v, err := l.line.Value()
	if err != nil {
		return LatchUnknown, fmt.Errorf("read %s: %w", l.name, err)
	}
	if v == 1 {
		return LatchOn, nil
	}
	return LatchOff, nil
}

// Close releases the line and leaves the level as set.
func (l *Latch) Close() error {
	if err := l.line.Close(); err != nil {
		return fmt.Errorf("close %s pin: %w", l.name, err)
	}
	return nil
}
