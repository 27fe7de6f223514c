package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/theoremus-urban-solutions/circuit-led/internal"
	"github.com/theoremus-urban-solutions/circuit-led/playback"
	"github.com/theoremus-urban-solutions/circuit-led/track"
)

var log = internal.Logger(internal.LogServer)

// Controller is the playback surface the server drives. *playback.Scheduler
// implements it.
type Controller interface {
	Start()
	Stop()
	Toggle()
	Reset()
	Snapshot() playback.Snapshot
}

// Layout describes the marker table. *track.LinearIndex implements it.
type Layout interface {
	Markers() []track.Marker
	Bounds() track.Bounds
}

// Server is the renderer-facing HTTP server.
type Server struct {
	ctl    Controller
	layout Layout
	hub    *Broadcaster
	http   *http.Server
}

// New creates a server listening on port. hub receives the snapshots the
// controller publishes.
func New(port int, ctl Controller, layout Layout, hub *Broadcaster) *Server {
	s := &Server{ctl: ctl, layout: layout, hub: hub}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// no WriteTimeout: it would cut hijacked websocket connections
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/playback", s.handlePlayback)
	mux.HandleFunc("/api/track", s.handleTrack)
	mux.HandleFunc("/api/playback/start", s.command("start", s.ctl.Start))
	mux.HandleFunc("/api/playback/stop", s.command("stop", s.ctl.Stop))
	mux.HandleFunc("/api/playback/toggle", s.command("toggle", s.ctl.Toggle))
	mux.HandleFunc("/api/playback/reset", s.command("reset", s.ctl.Reset))
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start listens in the background. Listen errors are returned; serve errors
// after that are logged.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server error: %v", err)
		}
	}()
	log.Infof("server listening on %s", s.http.Addr)
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.ctl.Snapshot()
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		State:  snap.StateName(),
		Frames: snap.FrameCount,
	})
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	writeJSON(w, http.StatusOK, newPlaybackView(s.ctl.Snapshot()))
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, trackView{
		Markers: s.layout.Markers(),
		Bounds:  s.layout.Bounds(),
	})
}

// command wraps a playback command. Commands are asynchronous, so the
// response only acknowledges them.
func (s *Server) command(name string, do func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "use POST")
			return
		}
		log.Debugf("command %s from %s", name, r.RemoteAddr)
		do()
		writeJSON(w, http.StatusAccepted, commandResponse{Accepted: name})
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	initial, err := json.Marshal(newPlaybackView(s.ctl.Snapshot()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.hub.HandleConnections(w, r, initial)
}
