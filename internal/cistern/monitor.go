// Package cistern converts raw distance samples from a sensor mounted above
// the water into a fill level, and keeps the last good reading for status
// queries.
package cistern

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bus supplies one raw sample per call: the distance in millimetres from the
// sensor face down to the water surface.
type Bus interface {
	ReadDistance(ctx context.Context) (uint16, error)
}

// Snapshot is the most recent level reading.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Height     float64 // metres above the tank floor
	Percentage float64 // usable fill fraction, 0..1
	Volume     float64 // usable litres
	Raw        uint16  // millimetres, as read
	Time       time.Time
}

// SensorReadError wraps a failed bus read.
type SensorReadError struct {
	Err error
}

func (e *SensorReadError) Error() string {
	return fmt.Sprintf("cistern sensor read: %v", e.Err)
}

func (e *SensorReadError) Unwrap() error {
	return e.Err
}

// Monitor holds the calibration and the last snapshot behind an RWMutex.
type Monitor struct {
	bus Bus
	cal Calibration
	now func() time.Time

	// readMu serializes Measure calls without holding up readers of the
	// snapshot.
	readMu sync.Mutex

	mu      sync.RWMutex
	snap    Snapshot
	hasSnap bool
}

// NewMonitor creates a Monitor with no snapshot.
func NewMonitor(bus Bus, cal Calibration) *Monitor {
	return &Monitor{bus: bus, cal: cal, now: time.Now}
}

// Calibration returns the calibration in use.
func (m *Monitor) Calibration() Calibration {
	return m.cal
}

// Measure takes one sample and replaces the snapshot. On a bus failure it
// returns a *SensorReadError and the previous snapshot stays in place.
func (m *Monitor) Measure(ctx context.Context) (Snapshot, error) {
	// Held until the store so snapshots land in the order they were read.
	m.readMu.Lock()
	defer m.readMu.Unlock()

	raw, err := m.bus.ReadDistance(ctx)
	if err != nil {
		return Snapshot{}, &SensorReadError{Err: err}
	}

	snap := m.cal.Convert(raw, m.now())

	m.mu.Lock()
	m.snap = snap
	m.hasSnap = true
	m.mu.Unlock()

	return snap, nil
}

// Level returns the last snapshot, or false if there is none.
func (m *Monitor) Level() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, m.hasSnap
}
