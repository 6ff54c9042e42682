// Package mqtt publishes door events, cistern levels and system lifecycle
// events, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/logic"
)

// Topics used by the daemon.
const (
	TopicDoor     = "home/garage/door/events"
	TopicCommands = "home/garage/door/commands"
	TopicLevel    = "home/garage/cistern/level"
	TopicSystem   = "home/garage/system"
)

// BufferCapacity is the number of messages kept while disconnected.
const BufferCapacity = 100

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishDoor sends a debounced door transition.
	// Returns error if publishing fails (should not crash the process).
	PublishDoor(event logic.Event) error

	// PublishCommand sends an audit record of an executed door command.
	PublishCommand(event CommandEvent) error

	// PublishLevel sends the latest cistern reading (retained).
	PublishLevel(snap cistern.Snapshot) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandEvent records a door command that was executed.
type CommandEvent struct {
	Timestamp time.Time
	Command   string
	Took      time.Duration
	Source    string // "http", "cli"
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// DoorPayload is the message published on TopicDoor.
type DoorPayload struct {
	Door DoorPayloadInner `json:"door"`
}

// DoorPayloadInner contains the door event details.
type DoorPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	State     string `json:"state"`
}

// FormatDoorPayload creates the JSON payload for a door event.
func FormatDoorPayload(event logic.Event) ([]byte, error) {
	return json.Marshal(DoorPayload{
		Door: DoorPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			State:     string(event.State),
		},
	})
}

// CommandPayload is the message published on TopicCommands.
type CommandPayload struct {
	Command CommandPayloadInner `json:"command"`
}

// CommandPayloadInner contains the command audit details.
type CommandPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Command   string `json:"command"`
	TookMs    int64  `json:"took_ms"`
	Source    string `json:"source,omitempty"`
}

// FormatCommandPayload creates the JSON payload for a command audit record.
func FormatCommandPayload(event CommandEvent) ([]byte, error) {
	return json.Marshal(CommandPayload{
		Command: CommandPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Command:   event.Command,
			TookMs:    event.Took.Milliseconds(),
			Source:    event.Source,
		},
	})
}

// LevelPayload is the message published on TopicLevel.
type LevelPayload struct {
	Cistern LevelPayloadInner `json:"cistern"`
}

// LevelPayloadInner mirrors the GET /cistern body plus a timestamp and raw reading.
type LevelPayloadInner struct {
	Timestamp  string  `json:"timestamp"`
	FillHeight float64 `json:"fill_height"`
	Percentage float64 `json:"percentage"`
	Volume     float64 `json:"volume"`
	RawMM      uint16  `json:"raw_mm"`
}

// FormatLevelPayload creates the JSON payload for a cistern reading.
// Percentage is scaled to 0..100.
func FormatLevelPayload(snap cistern.Snapshot) ([]byte, error) {
	return json.Marshal(LevelPayload{
		Cistern: LevelPayloadInner{
			Timestamp:  snap.Time.UTC().Format(time.RFC3339),
			FillHeight: snap.Height,
			Percentage: snap.Percentage * 100,
			Volume:     snap.Volume,
			RawMM:      snap.Raw,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishDoor(logic.Event) error { return nil }
func (NopPublisher) PublishCommand(CommandEvent) error { return nil }
func (NopPublisher) PublishLevel(cistern.Snapshot) error { return nil }
func (NopPublisher) PublishSystem(SystemEvent) error { return nil }
func (NopPublisher) Close() error { return nil }
func (NopPublisher) IsConnected() bool { return false }
