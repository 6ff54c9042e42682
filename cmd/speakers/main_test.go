package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/garage-controller/internal/gpio"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "garage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pins:\n  speakers: 21\nlog_level: error\n"), 0o644))
	return path
}

// withFakeLatch swaps in one latch shared by every run in the test, standing
// in for the kernel keeping the line level between processes.
func withFakeLatch(t *testing.T) (*gpio.FakeLatch, *gpio.Timeline, *[]int) {
	t.Helper()
	tl := gpio.NewTimeline(nil)
	latch := gpio.NewFakeLatch("SPEAKERS", tl)
	var offsets []int
	prev := openLatch
	openLatch = func(_ string, _ string, offset int) (gpio.LatchLine, error) {
		offsets = append(offsets, offset)
		return latch, nil
	}
	t.Cleanup(func() { openLatch = prev })
	return latch, tl, &offsets
}

func TestRunSequence(t *testing.T) {
	latch, tl, offsets := withFakeLatch(t)
	cfg := writeConfig(t)

	steps := []struct {
		arg        string
		wantStatus string
		wantActive bool
	}{
		{"status", "unknown\n", false},
		{"on", "", true},
		{"status", "on\n", true},
		{"off", "", false},
		{"status", "off\n", false},
		{"on", "", true},
		{"on", "", true},
		{"status", "on\n", true},
	}
	for i, st := range steps {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run([]string{"-config", cfg, st.arg}, &stdout, &stderr), "step %d (%s)", i, st.arg)
		assert.Equal(t, st.wantStatus, stdout.String(), "step %d (%s) output", i, st.arg)
		assert.Equal(t, st.wantActive, tl.IsActive("SPEAKERS"), "step %d (%s) level", i, st.arg)
	}

	assert.Equal(t, len(steps), latch.Closes(), "every run releases the line")
	for _, off := range *offsets {
		assert.Equal(t, 21, off)
	}
}

func TestRunStatusDoesNotDrive(t *testing.T) {
	_, tl, _ := withFakeLatch(t)

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-config", writeConfig(t), "status"}, &stdout, &bytes.Buffer{}))
	assert.Equal(t, "unknown\n", stdout.String())
	assert.Empty(t, tl.Transitions())
}

func TestRunDefaultPin(t *testing.T) {
	_, _, offsets := withFakeLatch(t)

	path := filepath.Join(t.TempDir(), "garage.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: error\n"), 0o644))

	require.NoError(t, run([]string{"-config", path, "off"}, &bytes.Buffer{}, &bytes.Buffer{}))
	assert.Equal(t, []int{gpio.DefaultPinSpeakers}, *offsets)
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"ON"},
		{"toggle"},
		{"on", "off"},
	} {
		_, tl, offsets := withFakeLatch(t)

		err := run(args, &bytes.Buffer{}, &bytes.Buffer{})
		assert.ErrorIs(t, err, errUsage, "run(%v)", args)
		assert.Empty(t, *offsets, "run(%v) opened the line", args)
		assert.Empty(t, tl.Transitions(), "run(%v)", args)
	}
}

func TestRunGPIOError(t *testing.T) {
	prev := openLatch
	openLatch = func(string, string, int) (gpio.LatchLine, error) { return nil, errors.New("no chip") }
	t.Cleanup(func() { openLatch = prev })

	err := run([]string{"-config", writeConfig(t), "on"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "init gpio")
}

func TestRunSetError(t *testing.T) {
	latch, _, _ := withFakeLatch(t)
	latch.SetError(errors.New("line busy"))

	err := run([]string{"-config", writeConfig(t), "on"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "switch speakers on")
	assert.Equal(t, 1, latch.Closes())
}
