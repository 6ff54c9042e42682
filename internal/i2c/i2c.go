// Package i2c reads the cistern distance sensor, an SRF02-style ultrasonic
// ranger, over a Linux I2C bus.
//
// A ranging cycle is: write the range command to register 0, wait for the
// echo, then read the two result bytes (big-endian centimetres) from
// register 2. Every cycle runs under a deadline; a bus that stops answering
// yields context.DeadlineExceeded instead of blocking the caller.
package i2c

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddress is the factory address of the ranger (0xE0 in 8-bit form).
	DefaultAddress uint16 = 0x70

	regCommand     = 0x00
	regRangeHigh   = 0x02
	cmdRangeCM     = 0x51
	rangingTime    = 70 * time.Millisecond
	DefaultTimeout = 500 * time.Millisecond
)

// ErrBusy is returned when a previous transaction that timed out has still
// not returned from the kernel.
var ErrBusy = errors.New("i2c: previous transaction still pending")

// ErrNoEcho is returned when the ranger reports a range of zero, which it
// does when no echo came back within the ranging window.
var ErrNoEcho = errors.New("i2c: ranger detected no echo")

// Config selects the bus and device.
type Config struct {
	Device  string        // e.g. /dev/i2c-1
	Address uint16        // 7-bit address
	Timeout time.Duration // per ranging cycle
}

// busNumber extracts N from /dev/i2c-N.
func busNumber(device string) (int, error) {
	i := strings.LastIndex(device, "i2c-")
	if i < 0 {
		return 0, fmt.Errorf("i2c: device %q is not of the form /dev/i2c-N", device)
	}
	n, err := strconv.Atoi(device[i+len("i2c-"):])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("i2c: device %q is not of the form /dev/i2c-N", device)
	}
	return n, nil
}

// decodeCM converts the big-endian range bytes into millimetres.
func decodeCM(b []byte) (uint16, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("i2c: expected 2 range bytes, got %d", len(b))
	}
	cm := uint32(b[0])<<8 | uint32(b[1])
	if cm == 0 {
		return 0, ErrNoEcho
	}
	mm := cm * 10
	if mm > 0xFFFF {
		mm = 0xFFFF
	}
	return uint16(mm), nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
