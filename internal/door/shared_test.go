package door

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/garage-controller/internal/gpio"
)

func TestSharedDoRunsCommand(t *testing.T) {
	r := newRig(t, true)
	s := NewShared(r.ctrl)

	require.NoError(t, s.Do(CommandOpen))

	ps := pulses(t, r.timeline)
	require.Len(t, ps, 1)
	assert.Equal(t, "OPEN", ps[0].Line)
}

func TestSharedDoUnknownCommandHasNoEffect(t *testing.T) {
	r := newRig(t, false)
	s := NewShared(r.ctrl)
	called := false
	s.OnCommand(func(Command, time.Duration) { called = true })

	err := s.Do(Command("FOO"))

	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Empty(t, r.timeline.Transitions())
	assert.False(t, called)
	assert.Equal(t, 0, r.sensor.Reads())
}

func TestSharedObserver(t *testing.T) {
	r := newRig(t, true)
	s := NewShared(r.ctrl)

	var got []Command
	s.OnCommand(func(cmd Command, _ time.Duration) { got = append(got, cmd) })

	require.NoError(t, s.Do(CommandOpen))
	require.NoError(t, s.Do(CommandStop))

	assert.Equal(t, []Command{CommandOpen, CommandStop}, got)
}

func TestSharedState(t *testing.T) {
	r := newRig(t, true)
	s := NewShared(r.ctrl)

	assert.Equal(t, StateClosed, s.State())
	assert.True(t, s.IsClosed())

	r.sensor.Set(false)
	assert.Equal(t, StateOpen, s.State())
	assert.False(t, s.IsClosed())
}

// Two commands issued at the same moment must never have overlapping relay
// windows: the second one starts only after the first has fully finished.
func TestSharedSerializesConcurrentCommands(t *testing.T) {
	const settle = 20 * time.Millisecond

	tl := gpio.NewTimeline(nil)
	sensor := gpio.NewFakeSensor(false)
	s := NewShared(NewFromBank(gpio.NewFakeBank(tl, sensor), WithSettle(settle)))
	tl.Reset()

	var wg sync.WaitGroup
	startGate := make(chan struct{})
	for _, cmd := range []Command{CommandOpen, CommandClose} {
		wg.Add(1)
		go func(cmd Command) {
			defer wg.Done()
			<-startGate
			assert.NoError(t, s.Do(cmd))
		}(cmd)
	}
	close(startGate)
	wg.Wait()

	assert.Equal(t, 1, tl.MaxActive())

	ps := pulses(t, tl)
	// Each command interlocks: HALT then its own movement pulse.
	require.Len(t, ps, 4)
	assert.Equal(t, "HALT", ps[0].Line)
	assert.Equal(t, "HALT", ps[2].Line)
	first, second := ps[1], ps[3]
	assert.ElementsMatch(t, []string{"OPEN", "CLOSE"}, []string{first.Line, second.Line})

	firstEnd := first.Start.Add(first.Width)
	assert.False(t, ps[2].Start.Before(firstEnd), "second command began before the first finished")
	for _, p := range ps {
		assert.GreaterOrEqual(t, p.Width, settle)
	}
}

func TestSharedStateWaitsForActuation(t *testing.T) {
	const settle = 30 * time.Millisecond

	tl := gpio.NewTimeline(nil)
	s := NewShared(NewFromBank(gpio.NewFakeBank(tl, gpio.NewFakeSensor(true)), WithSettle(settle)))

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		s.Do(CommandStop)
		close(done)
	}()
	<-started
	// Give the actuation time to take the lock.
	time.Sleep(5 * time.Millisecond)

	begin := time.Now()
	s.State()
	waited := time.Since(begin)
	<-done

	assert.GreaterOrEqual(t, waited, settle/2)
}
