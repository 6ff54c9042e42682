package mqtt

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO that stores messages while disconnected.
// Not safe for concurrent use; see outbox.
type ringBuffer struct {
	buf      []bufferedMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
	}
}

func (r *ringBuffer) push(msg bufferedMsg) {
	if r.count == r.capacity {
		if !r.overflow {
			log.Warn().Int("capacity", r.capacity).Msg("mqtt buffer full, dropping oldest")
			r.overflow = true
		}
		// head already points at the oldest entry
		r.buf[r.head] = msg
		r.head = (r.head + 1) % r.capacity
		return
	}
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	r.count++
}

func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.count == 0 {
		return nil
	}

	result := make([]bufferedMsg, r.count)
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		result[i] = r.buf[(start+i)%r.capacity]
	}

	r.count = 0
	r.head = 0
	r.overflow = false
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}

// outbox guards a ringBuffer shared by publishers and the reconnect handler.
type outbox struct {
	mu  sync.Mutex
	buf *ringBuffer
}

func newOutbox(capacity int) *outbox {
	return &outbox{buf: newRingBuffer(capacity)}
}

func (o *outbox) hold(msg bufferedMsg) {
	o.mu.Lock()
	o.buf.push(msg)
	o.mu.Unlock()
}

func (o *outbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.len()
}

// flush sends held messages oldest first. On the first send error the unsent
// messages are put back and the error returned with the count sent so far.
func (o *outbox) flush(send func(bufferedMsg) error) (int, error) {
	o.mu.Lock()
	msgs := o.buf.drainAll()
	o.mu.Unlock()

	for i, m := range msgs {
		if err := send(m); err != nil {
			o.mu.Lock()
			// anything held during the flush is newer than msgs[i:]
			newer := o.buf.drainAll()
			for _, r := range msgs[i:] {
				o.buf.push(r)
			}
			for _, r := range newer {
				o.buf.push(r)
			}
			o.mu.Unlock()
			return i, err
		}
	}
	return len(msgs), nil
}
