// Package web provides the HTTP surface of the garage daemon: door commands,
// door state, cistern level, a status page and a websocket live feed.
package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/cistern"
	"github.com/sweeney/garage-controller/internal/door"
	"github.com/sweeney/garage-controller/internal/status"
)

// maxCommandBody bounds the POST /door body; valid commands are at most 5 bytes.
const maxCommandBody = 64

// Door is the serialized door handle (door.Shared).
type Door interface {
	Do(cmd door.Command) error
	State() door.State
}

// Levels supplies the last cistern reading (cistern.Monitor).
type Levels interface {
	Level() (cistern.Snapshot, bool)
}

// Server serves the HTTP API and status page.
type Server struct {
	httpServer *http.Server
	door       Door
	levels     Levels
	tracker    *status.Tracker
	hub        *Hub
}

// New creates a Server. The tracker backs the status page and counts
// rejected commands.
func New(addr string, d Door, levels Levels, tracker *status.Tracker) *Server {
	s := &Server{
		door:    d,
		levels:  levels,
		tracker: tracker,
		hub:     NewHub(tracker),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /door", s.handleCommand)
	mux.HandleFunc("GET /door", s.handleDoorState)
	mux.HandleFunc("GET /cistern", s.handleCistern)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.Handle("GET /ws", s.hub)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Hub returns the websocket hub for pushing live updates.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the root handler, request-ID middleware included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and disconnects websocket clients,
// which http.Server.Shutdown does not track.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	logger := log.With().Str("request_id", requestID(r)).Logger()

	cmd, err := door.ParseCommand(string(body))
	if err != nil {
		s.tracker.RecordRejected()
		logger.Warn().Str("body", string(body)).Msg("rejected door command")
		w.WriteHeader(http.StatusNotImplemented)
		return
	}

	if err := s.door.Do(cmd); err != nil {
		logger.Error().Err(err).Str("command", string(cmd)).Msg("door command failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Info().Str("command", string(cmd)).Msg("door command")
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDoorState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, string(s.door.State()))
}

// CisternJSON is the GET /cistern body; percentage is 0..100.
type CisternJSON struct {
	FillHeight float64 `json:"fill_height"`
	Percentage float64 `json:"percentage"`
	Volume     float64 `json:"volume"`
}

func (s *Server) handleCistern(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap, ok := s.levels.Level()
	if !ok {
		io.WriteString(w, "null")
		return
	}
	json.NewEncoder(w).Encode(CisternJSON{
		FillHeight: snap.Height,
		Percentage: snap.Percentage * 100,
		Volume:     snap.Volume,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Warn().Err(err).Str("request_id", requestID(r)).Msg("render status page")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
