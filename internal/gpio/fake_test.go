package gpio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineRecordsTransitions(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	tl := NewTimeline(func() time.Time { return now })
	r := NewFakeRelay("OPEN", tl)

	r.SetActive()
	now = now.Add(500 * time.Millisecond)
	r.SetInactive()

	got := tl.Transitions()
	require.Len(t, got, 2)
	assert.Equal(t, "OPEN", got[0].Line)
	assert.True(t, got[0].Active)
	assert.True(t, got[0].Time.Equal(start))
	assert.False(t, got[1].Active, "transition 1 should be a deactivation")
	assert.Equal(t, 500*time.Millisecond, got[1].Time.Sub(got[0].Time), "pulse width")
}

func TestTimelineMaxActive(t *testing.T) {
	tl := NewTimeline(nil)
	a := NewFakeRelay("A", tl)
	b := NewFakeRelay("B", tl)

	a.SetActive()
	a.SetInactive()
	b.SetActive()
	assert.Equal(t, 1, tl.MaxActive())

	a.SetActive()
	assert.Equal(t, 2, tl.MaxActive())
	assert.True(t, tl.IsActive("A"))
	assert.True(t, tl.IsActive("B"))
}

func TestTimelineActivations(t *testing.T) {
	tl := NewTimeline(nil)
	r := NewFakeRelay("HALT", tl)
	r.SetInactive()
	r.SetActive()
	r.SetInactive()

	acts := tl.Activations()
	require.Len(t, acts, 1)
	assert.Equal(t, "HALT", acts[0].Line)

	tl.Reset()
	assert.Empty(t, tl.Transitions())
}

func TestTimelineConcurrentRecord(t *testing.T) {
	tl := NewTimeline(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := NewFakeRelay("R", tl)
			for j := 0; j < 100; j++ {
				r.SetActive()
				r.SetInactive()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, tl.Transitions(), 1600)
}

func TestFakeSensor(t *testing.T) {
	s := NewFakeSensor(true)

	closed, err := s.IsActive()
	require.NoError(t, err)
	assert.True(t, closed)

	s.Set(false)
	closed, _ = s.IsActive()
	assert.False(t, closed, "expected not closed after Set(false)")

	s.SetError(errors.New("simulated error"))
	_, err = s.IsActive()
	assert.EqualError(t, err, "simulated error")

	assert.Equal(t, 3, s.Reads())
}

func TestFakeBankRelease(t *testing.T) {
	tl := NewTimeline(nil)
	sensor := NewFakeSensor(false)
	b := NewFakeBank(tl, sensor)

	require.NoError(t, b.Release())
	for _, r := range []RelayLine{b.Halt, b.Open, b.Close} {
		fr := r.(*FakeRelay)
		assert.True(t, fr.Closed(), "%s: expected closed after Release", fr.Name)
	}
	assert.True(t, sensor.Closed(), "sensor: expected closed after Release")
}

func TestBankReleaseSkipsMissingLines(t *testing.T) {
	tl := NewTimeline(nil)
	b := &Bank{Halt: NewFakeRelay("HALT", tl)}

	assert.NoError(t, b.Release())
}

func TestDefaultPins(t *testing.T) {
	assert.Equal(t, Pins{Halt: 3, Open: 2, Close: 4, Closed: 17, Speakers: 14}, DefaultPins())
}

func TestFakeLatch(t *testing.T) {
	tl := NewTimeline(nil)
	l := NewFakeLatch("SPEAKERS", tl)

	st, err := l.State()
	require.NoError(t, err)
	assert.Equal(t, LatchUnknown, st, "never driven")

	require.NoError(t, l.Set(true))
	st, _ = l.State()
	assert.Equal(t, LatchOn, st)

	// the level outlives Close
	require.NoError(t, l.Close())
	st, _ = l.State()
	assert.Equal(t, LatchOn, st)
	assert.Equal(t, 1, l.Closes())
	assert.True(t, tl.IsActive("SPEAKERS"))

	require.NoError(t, l.Set(false))
	st, _ = l.State()
	assert.Equal(t, LatchOff, st)
	assert.False(t, tl.IsActive("SPEAKERS"))

	l.SetError(errors.New("line busy"))
	assert.EqualError(t, l.Set(true), "line busy")
	st, _ = l.State()
	assert.Equal(t, LatchOff, st, "failed Set keeps the level")
}
