package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Door          DoorJSON     `json:"door"`
	Cistern       *LevelJSON   `json:"cistern"`
	Samples       SamplesJSON  `json:"samples"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DoorJSON reports the debounced door state and command history.
type DoorJSON struct {
	State         string       `json:"state"`
	Ready         bool         `json:"ready"`
	Opened        int          `json:"opened"`
	Closed        int          `json:"closed"`
	Commands      CommandsJSON `json:"commands"`
	LastCommand   string       `json:"last_command,omitempty"`
	LastCommandAt string       `json:"last_command_at,omitempty"`
}

// CommandsJSON counts door commands.
type CommandsJSON struct {
	Open     int `json:"open"`
	Stop     int `json:"stop"`
	Close    int `json:"close"`
	Rejected int `json:"rejected"`
}

// LevelJSON is the last cistern reading, percentage scaled to 0..100.
type LevelJSON struct {
	FillHeight float64 `json:"fill_height"`
	Percentage float64 `json:"percentage"`
	Volume     float64 `json:"volume"`
	Timestamp  string  `json:"timestamp"`
}

// SamplesJSON counts sampler outcomes.
type SamplesJSON struct {
	OK        uint64 `json:"ok"`
	Failed    uint64 `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleMs      int64  `json:"sample_ms"`
	ReadTimeoutMs int64  `json:"read_timeout_ms"`
	WatchMs       int64  `json:"watch_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	SettleMs      int64  `json:"settle_ms"`
	Broker        string `json:"broker"`
	HTTPAddr      string `json:"http_addr"`
	I2CDevice     string `json:"i2c_device"`
}

// LevelToJSON converts a reading, scaling percentage to 0..100.
func LevelToJSON(l Level) *LevelJSON {
	return &LevelJSON{
		FillHeight: l.Height,
		Percentage: l.Percentage * 100,
		Volume:     l.Volume,
		Timestamp:  l.Time.UTC().Format(time.RFC3339),
	}
}

// DoorState returns the door state or UNKNOWN before the watcher has a baseline.
func (s Snapshot) DoorState() string {
	if s.Door == "" {
		return "UNKNOWN"
	}
	return string(s.Door)
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Door: DoorJSON{
			State:  snap.DoorState(),
			Ready:  snap.DoorBaselined,
			Opened: snap.DoorCounts.Opened,
			Closed: snap.DoorCounts.Closed,
			Commands: CommandsJSON{
				Open:     snap.Commands.Open,
				Stop:     snap.Commands.Stop,
				Close:    snap.Commands.Close,
				Rejected: snap.Commands.Rejected,
			},
			LastCommand: snap.LastCommand,
		},
		Samples: SamplesJSON{
			OK:        snap.Samples.OK,
			Failed:    snap.Samples.Failed,
			LastError: snap.Samples.LastError,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			SampleMs:      snap.Config.SampleMs,
			ReadTimeoutMs: snap.Config.ReadTimeout,
			WatchMs:       snap.Config.WatchMs,
			DebounceMs:    snap.Config.DebounceMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			SettleMs:      snap.Config.SettleMs,
			Broker:        snap.Config.Broker,
			HTTPAddr:      snap.Config.HTTPAddr,
			I2CDevice:     snap.Config.I2CDevice,
		},
	}
	if !snap.LastCommandAt.IsZero() {
		inner.Door.LastCommandAt = snap.LastCommandAt.UTC().Format(time.RFC3339)
	}
	if snap.Level != nil {
		inner.Cistern = LevelToJSON(*snap.Level)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
