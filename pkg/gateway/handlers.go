package gateway

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	godiag "github.com/samsamfire/godiag"
	"github.com/samsamfire/godiag/pkg/channel"
)

// How often the trace websocket polls the passthrough CAN facade
const tracePollTimeoutMs = 100

type requestSchema struct {
	// Request payload as a hex string, e.g. "22F190"
	Payload string `json:"payload"`
	// Await and return the ECU response
	Response bool `json:"response"`
}

type responseSchema struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Nrc      *uint8 `json:"nrc,omitempty"`
}

type modeSchema struct {
	ID             *uint8 `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	TesterPresent  bool   `json:"testerPresent"`
	SessionControl bool   `json:"sessionControl"`
	EcuConnected   bool   `json:"ecuConnected"`
}

type traceFrameSchema struct {
	Time     time.Time `json:"time"`
	ID       uint32    `json:"id"`
	Extended bool      `json:"extended"`
	Data     string    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, responseSchema{Error: "unknown session"})
		return
	}
	var req requestSchema
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, responseSchema{Error: "invalid request body"})
		return
	}
	payload, err := hex.DecodeString(req.Payload)
	if err != nil || len(payload) == 0 {
		writeJSON(w, http.StatusBadRequest, responseSchema{Error: "payload must be a non empty hex string"})
		return
	}
	if !req.Response {
		if err := entry.sess.SendBytes(payload); err != nil {
			writeJSON(w, http.StatusBadGateway, responseSchema{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, responseSchema{})
		return
	}
	resp, err := entry.sess.SendBytesWithResponse(payload)
	if err != nil {
		var ecuErr *godiag.EcuError
		if errors.As(err, &ecuErr) {
			code := ecuErr.Code
			writeJSON(w, http.StatusOK, responseSchema{Error: ecuErr.Description, Nrc: &code})
			return
		}
		writeJSON(w, http.StatusBadGateway, responseSchema{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, responseSchema{Response: hex.EncodeToString(resp)})
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookup(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, responseSchema{Error: "unknown session"})
		return
	}
	out := modeSchema{EcuConnected: entry.sess.IsEcuConnected()}
	if mode, hasMode := entry.sess.CurrentMode(); hasMode {
		id := mode.ID
		out.ID = &id
		out.Name = mode.Name
		out.TesterPresent = mode.TesterPresentRequired
		out.SessionControl = true
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTrace streams raw CAN frames from the passthrough facade.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	trace := s.trace
	s.mu.RUnlock()
	if trace == nil {
		http.Error(w, "no trace source configured", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	s.logger.Info("trace client connected", "remote", conn.RemoteAddr())
	for {
		frames, err := trace.ReadPackets(32, tracePollTimeoutMs)
		if err != nil {
			if errors.Is(err, channel.ErrInterfaceNotOpen) {
				return
			}
			continue
		}
		for _, f := range frames {
			out := traceFrameSchema{
				Time:     time.Now(),
				ID:       f.ID(),
				Extended: f.IsExtended(),
				Data:     hex.EncodeToString(f.Data()),
			}
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}
}
