package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/logic"
)

func TestFormatDoorPayloadExactJSON(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventOpened,
		State:     logic.StateOpen,
	}

	payload, err := FormatDoorPayload(event)
	require.NoError(t, err)

	expected := `{"door":{"timestamp":"2026-02-02T22:18:12Z","event":"DOOR_OPENED","state":"OPEN"}}`
	assert.Equal(t, expected, string(payload))
}

func TestFormatDoorPayloadAllEventTypes(t *testing.T) {
	tests := []struct {
		eventType logic.EventType
		state     logic.State
		wantEvent string
		wantState string
	}{
		{logic.EventOpened, logic.StateOpen, "DOOR_OPENED", "OPEN"},
		{logic.EventClosed, logic.StateClosed, "DOOR_CLOSED", "CLOSED"},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			payload, err := FormatDoorPayload(logic.Event{Timestamp: time.Now(), Type: tt.eventType, State: tt.state})
			require.NoError(t, err)

			var parsed DoorPayload
			require.NoError(t, json.Unmarshal(payload, &parsed))
			assert.Equal(t, tt.wantEvent, parsed.Door.Event)
			assert.Equal(t, tt.wantState, parsed.Door.State)
		})
	}
}

func TestFormatCommandPayload(t *testing.T) {
	event := CommandEvent{
		Timestamp: time.Date(2026, 2, 3, 7, 45, 0, 0, time.UTC),
		Command:   "CLOSE",
		Took:      1004 * time.Millisecond,
		Source:    "http",
	}

	payload, err := FormatCommandPayload(event)
	require.NoError(t, err)

	expected := `{"command":{"timestamp":"2026-02-03T07:45:00Z","command":"CLOSE","took_ms":1004,"source":"http"}}`
	assert.Equal(t, expected, string(payload))
}

func TestFormatLevelPayloadScalesPercentage(t *testing.T) {
	snap := cistern.Snapshot{
		Height:     0.75,
		Percentage: 0.375,
		Volume:     1178.1,
		Raw:        1250,
		Time:       time.Date(2026, 2, 3, 7, 45, 0, 0, time.UTC),
	}

	payload, err := FormatLevelPayload(snap)
	require.NoError(t, err)

	var parsed LevelPayload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, 37.5, parsed.Cistern.Percentage)
	assert.Equal(t, 0.75, parsed.Cistern.FillHeight)
	assert.Equal(t, uint16(1250), parsed.Cistern.RawMM)
	assert.Equal(t, "2026-02-03T07:45:00Z", parsed.Cistern.Timestamp)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "home/garage/door/events", TopicDoor)
	assert.Equal(t, "home/garage/door/commands", TopicCommands)
	assert.Equal(t, "home/garage/cistern/level", TopicLevel)
	assert.Equal(t, "home/garage/system", TopicSystem)
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	event := SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	}

	payload, err := FormatSystemPayload(event)
	require.NoError(t, err)

	expected := `{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	assert.Equal(t, expected, string(payload))
}

func TestFormatSystemPayloadOmitsReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &parsed))
	system := parsed["system"].(map[string]interface{})
	assert.NotContains(t, system, "reason", "reason field should be omitted when empty")
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, string(raw), string(payload), "raw payload passes through")
}

func TestClientIDUnique(t *testing.T) {
	a, b := ClientID(), ClientID()
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^garage-controller-`, a)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.PublishDoor(logic.Event{}))
	assert.NoError(t, p.PublishLevel(cistern.Snapshot{}))
	assert.NoError(t, p.PublishSystem(SystemEvent{}))
	assert.False(t, NopPublisher{}.IsConnected(), "NopPublisher should never report connected")
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	require.NoError(t, f.PublishDoor(logic.Event{Timestamp: time.Now(), Type: logic.EventClosed, State: logic.StateClosed}))
	require.NoError(t, f.PublishCommand(CommandEvent{Timestamp: time.Now(), Command: "STOP"}))
	require.NoError(t, f.PublishLevel(cistern.Snapshot{Percentage: 0.5}))

	doors, commands, levels := f.Counts()
	require.Equal(t, []int{1, 1, 1}, []int{doors, commands, levels})
	assert.Equal(t, logic.EventClosed, f.DoorEvents[0].Type)
	assert.Len(t, f.Payloads[TopicLevel], 1)
}

func TestFakePublisherError(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated error")

	assert.Error(t, f.PublishDoor(logic.Event{Timestamp: time.Now()}))
	assert.Empty(t, f.DoorEvents, "no events recorded on error")
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.PublishDoor(logic.Event{Timestamp: time.Now()})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.PublishError = errors.New("error")

	f.Reset()

	assert.Empty(t, f.DoorEvents)
	assert.Empty(t, f.SystemEvents)
	assert.Empty(t, f.Payloads)
	assert.False(t, f.Closed)
	assert.NoError(t, f.PublishError)
}
