package cistern

import (
	"context"
	"errors"
	"sync"
	"time"
)

// FakeBus is a test double that returns scripted samples.
// Safe for concurrent use.
type FakeBus struct {
	mu sync.Mutex

	// Samples are returned in order; the last one repeats.
	Samples []uint16

	// Errors, if set at an index, is returned instead of the sample at that
	// call index.
	Errors map[int]error

	// Delay blocks each read for this long, or until ctx is done.
	Delay time.Duration

	index int
	calls int
}

// NewFakeBus creates a FakeBus returning samples.
func NewFakeBus(samples ...uint16) *FakeBus {
	return &FakeBus{Samples: samples, Errors: map[int]error{}}
}

// FailAt makes the call with the given index fail with err.
func (f *FakeBus) FailAt(call int, err error) {
	f.mu.Lock()
	f.Errors[call] = err
	f.mu.Unlock()
}

// ReadDistance returns the next scripted sample.
func (f *FakeBus) ReadDistance(ctx context.Context) (uint16, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	delay := f.Delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors[call]; err != nil {
		return 0, err
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}
	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s, nil
}

// Calls returns how many reads were attempted.
func (f *FakeBus) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
