// Package logic contains the pure debounce logic for the door contact.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is the debounced door position.
type State string

const (
	StateClosed State = "CLOSED"
	StateOpen   State = "OPEN"
)

// EventType is a debounced door transition.
type EventType string

const (
	EventOpened EventType = "DOOR_OPENED"
	EventClosed EventType = "DOOR_CLOSED"
)

// Event is a door transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
}

// Input is one sample of the contact.
type Input struct {
	Closed bool
	Time   time.Time
}

// EventCounts tracks transitions since startup.
type EventCounts struct {
	Opened int
	Closed int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	State     State
	Counts    EventCounts
}
