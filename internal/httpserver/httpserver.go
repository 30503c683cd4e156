// Package httpserver exposes the station's external surface: the WebSocket
// upgrade endpoint charge points connect to, a liveness health check, and
// the Prometheus scrape endpoint.
package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ocpp-central/station/internal/dispatch"
	"github.com/ocpp-central/station/internal/events"
	"github.com/ocpp-central/station/internal/session"
)

const ocppSubprotocol = "ocpp1.6"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	Subprotocols:    []string{ocppSubprotocol},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires the upgrade handler, health check, and metrics endpoint onto
// one http.Handler.
type Server struct {
	dispatcher *dispatch.Dispatcher
	events     events.Publisher
	log        zerolog.Logger

	mu        sync.RWMutex
	startedAt *time.Time
}

// New builds a Server. Call MarkStarted once the listener is actually bound
// so the health check can start reporting 200.
func New(dispatcher *dispatch.Dispatcher, publisher events.Publisher, log zerolog.Logger) *Server {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Server{dispatcher: dispatcher, events: publisher, log: log}
}

// MarkStarted records the moment the server became ready to serve traffic.
// It is idempotent; only the first call has any effect.
func (s *Server) MarkStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt == nil {
		now := time.Now().UTC()
		s.startedAt = &now
	}
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// handleRoot serves the health check at the bare path and the WebSocket
// upgrade at /<station_id>.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	stationID := strings.Trim(r.URL.Path, "/")
	if stationID == "" {
		s.handleHealth(w, r)
		return
	}
	s.handleUpgrade(w, r, stationID)
}

type healthOK struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

type healthUnavailable struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	if startedAt == nil {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(healthUnavailable{
			Status:  "unavailable",
			Message: "Server has not started yet",
		})
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthOK{Status: "ok", StartedAt: *startedAt})
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, stationID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("stationId", stationID).Msg("websocket upgrade failed")
		return
	}

	sess := session.New(conn, stationID, r.RemoteAddr, s.dispatcher, s.events, s.log)
	s.log.Info().Str("stationId", stationID).Str("remoteAddr", r.RemoteAddr).Msg("session opened")
	sess.Serve()
	s.log.Info().Str("stationId", stationID).Msg("session closed")
}
