// Package status provides a thread-safe status tracker for the garage daemon.
// It is written by the sampler, the door watcher and the HTTP command handler,
// and read by the status page and MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/garage-controller/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SampleMs    int64
	ReadTimeout int64 // ms
	WatchMs     int64
	DebounceMs  int64
	HeartbeatMs int64
	SettleMs    int64
	Broker      string
	HTTPAddr    string
	I2CDevice   string
}

// Level is a copy of the last cistern reading.
type Level struct {
	Height     float64
	Percentage float64
	Volume     float64
	Time       time.Time
}

// Commands counts accepted and rejected door commands.
type Commands struct {
	Open     int
	Stop     int
	Close    int
	Rejected int
}

// Samples counts cistern sampler outcomes.
type Samples struct {
	OK        uint64
	Failed    uint64
	LastError string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Door          logic.State
	DoorBaselined bool
	DoorCounts    logic.EventCounts
	Commands      Commands
	LastCommand   string
	LastCommandAt time.Time
	Level         *Level
	Samples       Samples
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// UpdateDoor sets the debounced door state and transition counts.
func (t *Tracker) UpdateDoor(state logic.State, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Door = state
	t.snap.DoorBaselined = baselined
	t.snap.DoorCounts = counts
	t.mu.Unlock()
}

// RecordCommand counts an executed door command ("OPEN", "STOP", "CLOSE").
func (t *Tracker) RecordCommand(cmd string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch cmd {
	case "OPEN":
		t.snap.Commands.Open++
	case "STOP":
		t.snap.Commands.Stop++
	case "CLOSE":
		t.snap.Commands.Close++
	default:
		return
	}
	t.snap.LastCommand = cmd
	t.snap.LastCommandAt = at
}

// RecordRejected counts a malformed door command.
func (t *Tracker) RecordRejected() {
	t.mu.Lock()
	t.snap.Commands.Rejected++
	t.mu.Unlock()
}

// RecordSample stores a successful cistern reading.
func (t *Tracker) RecordSample(l Level) {
	t.mu.Lock()
	t.snap.Level = &l
	t.snap.Samples.OK++
	t.mu.Unlock()
}

// RecordSampleError counts a failed cistern reading.
func (t *Tracker) RecordSampleError(err error) {
	t.mu.Lock()
	t.snap.Samples.Failed++
	if err != nil {
		t.snap.Samples.LastError = err.Error()
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Level != nil {
		l := *s.Level
		s.Level = &l
	}
	if s.Network != nil {
		n := *s.Network
		s.Network = &n
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
