package mqtt

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloads(msgs []bufferedMsg) []byte {
	var out []byte
	for _, m := range msgs {
		out = append(out, m.payload[0])
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	require.Len(t, got, 5)
	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloads(got))

	// Second drain should be empty
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferFillToCapacity(t *testing.T) {
	cap := 10
	rb := newRingBuffer(cap)
	for i := 0; i < cap; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	require.Len(t, got, cap)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, payloads(got))
}

func TestRingBufferOverflow(t *testing.T) {
	cap := 5
	rb := newRingBuffer(cap)

	// Push cap+3 items (0..7), buffer should keep the most recent 5 (3..7)
	for i := 0; i < cap+3; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	got := rb.drainAll()
	require.Len(t, got, cap)
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloads(got), "oldest 3 were dropped")
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	// Cycle 1: push 3, drain
	for i := 0; i < 3; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	require.Len(t, rb.drainAll(), 3, "cycle 1")

	// Cycle 2: push 4, drain
	for i := 10; i < 14; i++ {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}
	got := rb.drainAll()
	require.Len(t, got, 4, "cycle 2")
	assert.Equal(t, []byte{10, 11, 12, 13}, payloads(got))
}

func TestRingBufferLen(t *testing.T) {
	rb := newRingBuffer(10)
	assert.Equal(t, 0, rb.len())

	rb.push(bufferedMsg{topic: "t"})
	rb.push(bufferedMsg{topic: "t"})
	assert.Equal(t, 2, rb.len())

	rb.drainAll()
	assert.Equal(t, 0, rb.len(), "after drain")
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	msg := bufferedMsg{
		topic:    "home/garage/test",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	}
	rb.push(msg)

	assert.Equal(t, []bufferedMsg{msg}, rb.drainAll())
}

func TestOutboxFlushInOrder(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 3; i++ {
		o.hold(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	var sent []byte
	n, err := o.flush(func(m bufferedMsg) error {
		sent = append(sent, m.payload[0])
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0, 1, 2}, sent)
	assert.Equal(t, 0, o.len())
}

func TestOutboxFlushRequeuesOnError(t *testing.T) {
	o := newOutbox(10)
	for i := 0; i < 4; i++ {
		o.hold(bufferedMsg{topic: "t", payload: []byte{byte(i)}})
	}

	n, err := o.flush(func(m bufferedMsg) error {
		if m.payload[0] == 2 {
			// a publish arriving mid-flush must stay behind the requeued ones
			o.hold(bufferedMsg{topic: "t", payload: []byte{9}})
			return errors.New("broker gone")
		}
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, 2, n)

	o.mu.Lock()
	left := o.buf.drainAll()
	o.mu.Unlock()
	assert.Equal(t, []byte{2, 3, 9}, payloads(left))
}

func TestOutboxConcurrentHold(t *testing.T) {
	o := newOutbox(BufferCapacity)
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				o.hold(bufferedMsg{topic: "t"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, BufferCapacity, o.len())
}
