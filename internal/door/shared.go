package door

import (
	"sync"
	"time"
)

// Observer is told about every completed command.
type Observer func(cmd Command, took time.Duration)

// Shared serializes all access to a Controller. The relays cannot carry two
// commands at once, so actuations and status reads all go through one mutex;
// a status read may wait behind an actuation of up to three settle intervals.
type Shared struct {
	mu        sync.Mutex
	ctrl      *Controller
	observers []Observer
}

// NewShared wraps ctrl.
func NewShared(ctrl *Controller) *Shared {
	return &Shared{ctrl: ctrl}
}

// OnCommand registers fn. Observers run while the lock is held and must not
// call back into Shared.
func (s *Shared) OnCommand(fn Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Do executes cmd under the lock. Unknown commands return ErrUnknownCommand
// without touching the relays.
func (s *Shared) Do(cmd Command) error {
	if _, err := ParseCommand(string(cmd)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.ctrl.Execute(cmd); err != nil {
		return err
	}
	took := time.Since(start)
	for _, fn := range s.observers {
		fn(cmd, took)
	}
	return nil
}

// State reads the contact under the lock.
func (s *Shared) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.State()
}

// IsClosed reads the contact under the lock.
func (s *Shared) IsClosed() bool {
	return s.State() == StateClosed
}
