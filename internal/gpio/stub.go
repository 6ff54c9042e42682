//go:build !linux

package gpio

import "errors"

// OpenBank returns an error on non-Linux platforms.
func OpenBank(chipName string, pins Pins) (*Bank, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// OpenLatch returns an error on non-Linux platforms.
func OpenLatch(chipName, name string, offset int) (LatchLine, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}
