package logic

import "time"

// Detector debounces the door contact and reports transitions.
type Detector struct {
	debounce      time.Duration
	stable        State
	pending       State
	pendingSince  time.Time
	baselined     bool
	startTime     time.Time
	counts        EventCounts
	lastHeartbeat time.Time
}

// NewDetector creates a detector with the given debounce duration.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(debounce time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounce:      debounce,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Process takes a new sample and returns the transition it completes, if any.
// The first stable state only establishes the baseline and emits nothing.
func (d *Detector) Process(in Input) *Event {
	s := stateFor(in.Closed)

	if !d.baselined {
		if d.pending != s {
			d.pending = s
			d.pendingSince = in.Time
		}
		if in.Time.Sub(d.pendingSince) >= d.debounce {
			d.stable = s
			d.baselined = true
			d.pending = ""
		}
		return nil
	}

	if s == d.stable {
		// Bounced back before the debounce completed.
		d.pending = ""
		return nil
	}

	if d.pending != s {
		d.pending = s
		d.pendingSince = in.Time
		return nil
	}

	if in.Time.Sub(d.pendingSince) < d.debounce {
		return nil
	}

	d.stable = s
	d.pending = ""

	e := &Event{Timestamp: in.Time, State: s}
	if s == StateClosed {
		e.Type = EventClosed
		d.counts.Closed++
	} else {
		e.Type = EventOpened
		d.counts.Opened++
	}
	return e
}

func stateFor(closed bool) State {
	if closed {
		return StateClosed
	}
	return StateOpen
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// CurrentState returns the debounced state, or "" before the baseline.
func (d *Detector) CurrentState() State {
	return d.stable
}

// Counts returns the transition counters.
func (d *Detector) Counts() EventCounts {
	return d.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 || !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		State:     d.stable,
		Counts:    d.counts,
	}
}
