//go:build !linux

package i2c

import "errors"

// Open returns an error on non-Linux platforms.
func Open(cfg Config) (*Ranger, error) {
	return nil, errors.New("i2c: not supported on this platform (requires Linux)")
}
