package i2c

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Conn is one I2C device: a combined write-then-read transaction.
type Conn interface {
	Tx(w, r []byte) error
}

// Ranger implements cistern.Bus on top of a Conn.
type Ranger struct {
	conn    Conn
	timeout time.Duration
	pending atomic.Bool
	closer  func() error
}

// NewRanger wraps conn. A zero timeout uses DefaultTimeout.
func NewRanger(conn Conn, timeout time.Duration) *Ranger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ranger{conn: conn, timeout: timeout}
}

// ReadDistance runs one ranging cycle and returns millimetres.
func (r *Ranger) ReadDistance(ctx context.Context) (uint16, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.tx(ctx, []byte{regCommand, cmdRangeCM}, nil); err != nil {
		return 0, fmt.Errorf("start ranging: %w", err)
	}
	if err := sleepCtx(ctx, rangingTime); err != nil {
		return 0, err
	}

	buf := make([]byte, 2)
	if err := r.tx(ctx, []byte{regRangeHigh}, buf); err != nil {
		return 0, fmt.Errorf("read range: %w", err)
	}
	return decodeCM(buf)
}

// tx runs one transaction in its own goroutine so that a hung kernel call
// cannot outlive ctx for the caller. Until that goroutine returns, further
// transactions fail fast with ErrBusy.
func (r *Ranger) tx(ctx context.Context, w, rd []byte) error {
	if !r.pending.CompareAndSwap(false, true) {
		return ErrBusy
	}

	done := make(chan error, 1)
	go func() {
		defer r.pending.Store(false)
		done <- r.conn.Tx(w, rd)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the underlying bus, if any.
func (r *Ranger) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
