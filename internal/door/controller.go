package door

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/gpio"
)

// Controller owns the door relays and contact. It is not safe for concurrent
// use; share it through Shared.
type Controller struct {
	haltRelay  gpio.RelayLine // S0, normally closed stop button
	openRelay  gpio.RelayLine // S2
	closeRelay gpio.RelayLine // S4
	contact    gpio.SensorLine

	settle time.Duration
	sleep  func(time.Duration)
}

// Option configures a Controller.
type Option func(*Controller)

// WithSettle overrides the pulse width and interlock pause.
func WithSettle(d time.Duration) Option {
	return func(c *Controller) { c.settle = d }
}

// WithSleep replaces time.Sleep, for tests driving a fake clock.
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = fn }
}

// New creates a Controller and drives all relays inactive.
func New(halt, open, close gpio.RelayLine, contact gpio.SensorLine, opts ...Option) *Controller {
	c := &Controller{
		haltRelay:  halt,
		openRelay:  open,
		closeRelay: close,
		contact:    contact,
		settle:     DefaultSettle,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.release(c.haltRelay, c.openRelay, c.closeRelay)
	return c
}

// NewFromBank creates a Controller from the lines of a gpio.Bank.
func NewFromBank(b *gpio.Bank, opts ...Option) *Controller {
	return New(b.Halt, b.Open, b.Close, b.Closed, opts...)
}

// Open starts the door moving up.
func (c *Controller) Open() {
	c.interlock()
	c.release(c.haltRelay, c.closeRelay)
	c.pulse(c.openRelay)
}

// Close starts the door moving down.
func (c *Controller) Close() {
	c.interlock()
	c.release(c.haltRelay, c.openRelay)
	c.pulse(c.closeRelay)
}

// Stop halts the motor. It never interlocks.
func (c *Controller) Stop() {
	c.release(c.openRelay, c.closeRelay)
	c.pulse(c.haltRelay)
}

// Execute runs cmd.
func (c *Controller) Execute(cmd Command) error {
	switch cmd {
	case CommandOpen:
		c.Open()
	case CommandStop:
		c.Stop()
	case CommandClose:
		c.Close()
	default:
		return ErrUnknownCommand
	}
	return nil
}

// IsClosed reads the contact. A failed read counts as not closed so that the
// next movement command interlocks.
func (c *Controller) IsClosed() bool {
	closed, err := c.contact.IsActive()
	if err != nil {
		log.Error().Err(err).Msg("door contact read failed")
		return false
	}
	return closed
}

// IsOpen is the negation of IsClosed.
func (c *Controller) IsOpen() bool {
	return !c.IsClosed()
}

// State returns CLOSED or OPEN.
func (c *Controller) State() State {
	return stateFor(c.IsClosed())
}

// interlock stops a possibly moving door and waits for it to settle.
func (c *Controller) interlock() {
	if c.IsClosed() {
		return
	}
	log.Debug().Msg("door not closed, stopping before reversing")
	c.Stop()
	c.sleep(c.settle)
}

func (c *Controller) pulse(r gpio.RelayLine) {
	if err := r.SetActive(); err != nil {
		log.Error().Err(err).Msg("relay activate failed")
	}
	c.sleep(c.settle)
	c.release(r)
}

func (c *Controller) release(relays ...gpio.RelayLine) {
	for _, r := range relays {
		if err := r.SetInactive(); err != nil {
			log.Error().Err(err).Msg("relay deactivate failed")
		}
	}
}
