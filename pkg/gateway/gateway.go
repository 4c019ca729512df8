// Package gateway exposes open diagnostic sessions over HTTP. It serves a
// small JSON API for sending requests, a websocket stream of raw CAN
// traffic and the prometheus metrics of the stack.
package gateway

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"

	"github.com/samsamfire/godiag/internal/metrics"
	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/session"
)

type sessionEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	sess     *session.Session
}

// Server is the HTTP diagnostic gateway.
type Server struct {
	logger   *slog.Logger
	router   *mux.Router
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	trace    channel.PacketChannel

	registry *prometheus.Registry
	regOnce  sync.Once
}

// NewServer creates a gateway with no sessions attached.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:   logger.With("service", "[GATEWAY]"),
		router:   mux.NewRouter(),
		sessions: make(map[string]*sessionEntry),
		registry: prometheus.NewRegistry(),
	}
	s.regOnce.Do(func() { metrics.Register(s.registry) })

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/request", s.handleRequest).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/mode", s.handleMode).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/trace", s.handleTrace)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return s
}

// AddSession registers an open session under a generated id and returns it.
func (s *Server) AddSession(name string, protocolName string, sess *session.Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := xid.New().String()
	s.sessions[id] = &sessionEntry{ID: id, Name: name, Protocol: protocolName, sess: sess}
	s.logger.Info("session registered", "id", id, "name", name)
	return id
}

// RemoveSession unregisters a session. The session itself is not closed.
func (s *Server) RemoveSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// SetTraceSource attaches the passthrough CAN facade streamed on /ws/trace.
func (s *Server) SetTraceSource(trace channel.PacketChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trace = trace
}

func (s *Server) lookup(id string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[id]
	return entry, ok
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks serving the gateway on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http gateway listening", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}
