package gpio

import (
	"sync"
	"time"
)

// Transition is one recorded relay level change.
type Transition struct {
	Line   string
	Active bool
	Time   time.Time
}

// Timeline is a test double shared by fake relays. It records every level
// change and tracks how many relays were active at the same time.
// Safe for concurrent use.
type Timeline struct {
	mu          sync.Mutex
	now         func() time.Time
	transitions []Transition
	active      map[string]bool
	maxActive   int
}

// NewTimeline creates a Timeline stamping transitions with now.
// A nil now uses time.Now.
func NewTimeline(now func() time.Time) *Timeline {
	if now == nil {
		now = time.Now
	}
	return &Timeline{now: now, active: make(map[string]bool)}
}

func (t *Timeline) record(line string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transitions = append(t.transitions, Transition{Line: line, Active: active, Time: t.now()})
	t.active[line] = active

	n := 0
	for _, a := range t.active {
		if a {
			n++
		}
	}
	if n > t.maxActive {
		t.maxActive = n
	}
}

// Transitions returns a copy of the recorded transitions.
func (t *Timeline) Transitions() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.transitions))
	copy(out, t.transitions)
	return out
}

// Activations returns only the transitions that activated a line.
func (t *Timeline) Activations() []Transition {
	var out []Transition
	for _, tr := range t.Transitions() {
		if tr.Active {
			out = append(out, tr)
		}
	}
	return out
}

// MaxActive returns the highest number of simultaneously active relays seen.
func (t *Timeline) MaxActive() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxActive
}

// IsActive reports the current level of the named relay.
func (t *Timeline) IsActive(line string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active[line]
}

// Reset clears recorded transitions but keeps current levels.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transitions = nil
	t.maxActive = 0
}

// FakeRelay records its level changes on a Timeline.
type FakeRelay struct {
	Name     string
	timeline *Timeline

	mu     sync.Mutex
	closed bool
}

// NewFakeRelay creates a relay named name recording on tl.
func NewFakeRelay(name string, tl *Timeline) *FakeRelay {
	return &FakeRelay{Name: name, timeline: tl}
}

// SetActive records an activation.
func (r *FakeRelay) SetActive() error {
	r.timeline.record(r.Name, true)
	return nil
}

// SetInactive records a deactivation.
func (r *FakeRelay) SetInactive() error {
	r.timeline.record(r.Name, false)
	return nil
}

// Close marks the relay as closed.
func (r *FakeRelay) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (r *FakeRelay) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// FakeSensor is a scripted door contact.
type FakeSensor struct {
	mu        sync.Mutex
	active    bool
	reads     int
	readError error
	closed    bool
}

// NewFakeSensor creates a contact reporting closed (active) or not.
func NewFakeSensor(closed bool) *FakeSensor {
	return &FakeSensor{active: closed}
}

// Set changes the reported level.
func (s *FakeSensor) Set(closed bool) {
	s.mu.Lock()
	s.active = closed
	s.mu.Unlock()
}

// SetError makes subsequent reads fail with err (nil clears it).
func (s *FakeSensor) SetError(err error) {
	s.mu.Lock()
	s.readError = err
	s.mu.Unlock()
}

// IsActive returns the scripted level.
func (s *FakeSensor) IsActive() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if s.readError != nil {
		return false, s.readError
	}
	return s.active, nil
}

// Reads returns the number of IsActive calls.
func (s *FakeSensor) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Close marks the sensor as closed.
func (s *FakeSensor) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSensor) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// FakeLatch models a latched relay whose level survives Close, the way the
// real line keeps its level after the process exits.
type FakeLatch struct {
	Name     string
	timeline *Timeline

	mu       sync.Mutex
	output   bool
	on       bool
	setError error
	closes   int
}

// NewFakeLatch creates a latch recording on tl. It starts as an input, so
// State reports LatchUnknown until Set is called.
func NewFakeLatch(name string, tl *Timeline) *FakeLatch {
	return &FakeLatch{Name: name, timeline: tl}
}

// SetError makes subsequent Set calls fail with err (nil clears it).
func (l *FakeLatch) SetError(err error) {
	l.mu.Lock()
	l.setError = err
	l.mu.Unlock()
}

// Set records the new level.
func (l *FakeLatch) Set(on bool) error {
	l.mu.Lock()
	if l.setError != nil {
		err := l.setError
		l.mu.Unlock()
		return err
	}
	l.output = true
	l.on = on
	l.mu.Unlock()

	l.timeline.record(l.Name, on)
	return nil
}

// State returns the last level set, or LatchUnknown if never set.
func (l *FakeLatch) State() (LatchState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case !l.output:
		return LatchUnknown, nil
	case l.on:
		return LatchOn, nil
	}
	return LatchOff, nil
}

// Close counts releases; the level is kept.
func (l *FakeLatch) Close() error {
	l.mu.Lock()
	l.closes++
	l.mu.Unlock()
	return nil
}

// Closes returns how many times Close was called.
func (l *FakeLatch) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// NewFakeBank wires three fake relays named HALT, OPEN and CLOSE to tl and
// uses sensor as the contact.
func NewFakeBank(tl *Timeline, sensor *FakeSensor) *Bank {
	return &Bank{
		Halt:   NewFakeRelay("HALT", tl),
		Open:   NewFakeRelay("OPEN", tl),
		Close:  NewFakeRelay("CLOSE", tl),
		Closed: sensor,
	}
}
