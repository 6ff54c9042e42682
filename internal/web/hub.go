package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/logic"
	"github.com/sweeney/garage-controller/internal/status"
)

const (
	wsSendBuffer   = 16
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// Message is a live update pushed to websocket clients.
type Message struct {
	Type    string            `json:"type"` // "hello", "door", "level"
	Door    *DoorMessage      `json:"door,omitempty"`
	Cistern *status.LevelJSON `json:"cistern,omitempty"`
}

// DoorMessage carries the debounced door state.
type DoorMessage struct {
	State     string `json:"state"`
	Event     string `json:"event,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func levelOf(snap cistern.Snapshot) status.Level {
	return status.Level{
		Height:     snap.Height,
		Percentage: snap.Percentage,
		Volume:     snap.Volume,
		Time:       snap.Time,
	}
}

// Hub fans live updates out to every connected websocket client.
type Hub struct {
	upgrader websocket.Upgrader
	tracker  *status.Tracker

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates a Hub. The tracker supplies the greeting sent on connect.
func NewHub(tracker *status.Tracker) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		tracker: tracker,
		clients: make(map[*wsClient]struct{}),
	}
}

// BroadcastDoor pushes a door transition.
func (h *Hub) BroadcastDoor(e logic.Event) {
	h.Broadcast(Message{Type: "door", Door: &DoorMessage{
		State:     string(e.State),
		Event:     string(e.Type),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}})
}

// BroadcastLevel pushes a cistern reading.
func (h *Hub) BroadcastLevel(snap cistern.Snapshot) {
	h.Broadcast(Message{Type: "level", Cistern: status.LevelToJSON(levelOf(snap))})
}

// Broadcast queues msg for every client. Clients whose queue is full miss it.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.send(msg)
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) hello() Message {
	msg := Message{Type: "hello", Door: &DoorMessage{State: "UNKNOWN"}}
	if h.tracker == nil {
		return msg
	}
	snap := h.tracker.Snapshot()
	msg.Door.State = snap.DoorState()
	if snap.Level != nil {
		msg.Cistern = status.LevelToJSON(*snap.Level)
	}
	return msg
}

// ServeHTTP upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("request_id", requestID(r)).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{
		conn:   conn,
		sendCh: make(chan Message, wsSendBuffer),
		done:   make(chan struct{}),
	}
	c.send(h.hello())

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	c.readPump()

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

type wsClient struct {
	conn   *websocket.Conn
	sendCh chan Message
	done   chan struct{}
	once   sync.Once
}

func (c *wsClient) send(msg Message) {
	select {
	case c.sendCh <- msg:
	case <-c.done:
	default:
		log.Debug().Str("type", msg.Type).Msg("websocket client slow, dropping message")
	}
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client input; it exists to process pongs and notice disconnects.
func (c *wsClient) readPump() {
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case msg := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
