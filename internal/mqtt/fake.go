package mqtt

import (
	"sync"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/logic"
)

// FakePublisher records published events for test assertions.
// Safe for concurrent use; read fields directly only once publishers have stopped.
type FakePublisher struct {
	mu sync.Mutex

	// DoorEvents contains all door events that were published.
	DoorEvents []logic.Event

	// Commands contains all command audit records that were published.
	Commands []CommandEvent

	// Levels contains all cistern readings that were published.
	Levels []cistern.Snapshot

	// Payloads contains the JSON payloads for door, command and level messages, keyed by topic.
	Payloads map[string][][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, is returned by PublishDoor, PublishCommand and PublishLevel.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Payloads: make(map[string][][]byte)}
}

func (f *FakePublisher) record(topic string, payload []byte, err error) error {
	if err != nil {
		return err
	}
	f.Payloads[topic] = append(f.Payloads[topic], payload)
	return nil
}

// PublishDoor records the door event.
func (f *FakePublisher) PublishDoor(event logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.DoorEvents = append(f.DoorEvents, event)
	payload, err := FormatDoorPayload(event)
	return f.record(TopicDoor, payload, err)
}

// PublishCommand records the command audit event.
func (f *FakePublisher) PublishCommand(event CommandEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Commands = append(f.Commands, event)
	payload, err := FormatCommandPayload(event)
	return f.record(TopicCommands, payload, err)
}

// PublishLevel records the cistern reading.
func (f *FakePublisher) PublishLevel(snap cistern.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Levels = append(f.Levels, snap)
	payload, err := FormatLevelPayload(snap)
	return f.record(TopicLevel, payload, err)
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Counts returns the number of door, command and level messages recorded so far.
func (f *FakePublisher) Counts() (doors, commands, levels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.DoorEvents), len(f.Commands), len(f.Levels)
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DoorEvents = nil
	f.Commands = nil
	f.Levels = nil
	f.Payloads = make(map[string][][]byte)
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
