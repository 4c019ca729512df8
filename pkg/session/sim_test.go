package session_test

import (
	"sync"
	"time"

	"github.com/samsamfire/godiag/pkg/channel"
)

// simEcu is a scripted ECU implementing [channel.IsoTpChannel] directly,
// bypassing the transport layer. The onRequest callback decides which
// responses get queued for each written payload.
type simEcu struct {
	mu        sync.Mutex
	onRequest func(req []byte) [][]byte
	pending   [][]byte
	writes    [][]byte
	unplugged bool
	closed    bool
}

func newSimEcu(onRequest func(req []byte) [][]byte) *simEcu {
	return &simEcu{onRequest: onRequest}
}

func (s *simEcu) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

func (s *simEcu) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.writes)
}

// Unplug makes every subsequent call fail like a lost adapter.
func (s *simEcu) Unplug() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unplugged = true
}

func (s *simEcu) Open() error {
	return nil
}

func (s *simEcu) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *simEcu) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *simEcu) SetIds(send uint32, recv uint32) error {
	return nil
}

func (s *simEcu) SetIsoTpCfg(cfg channel.IsoTpSettings) error {
	return nil
}

func (s *simEcu) WriteBytes(addr uint32, extID *uint8, payload []byte, timeoutMs uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unplugged {
		return &channel.HardwareError{Code: 1, Desc: "sim adapter unplugged"}
	}
	s.writes = append(s.writes, append([]byte{}, payload...))
	if s.onRequest != nil {
		if responses := s.onRequest(payload); responses != nil {
			s.pending = append(s.pending, responses...)
		}
	}
	return nil
}

func (s *simEcu) ReadBytes(timeoutMs uint32) ([]byte, error) {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		s.mu.Lock()
		if s.unplugged {
			s.mu.Unlock()
			return nil, &channel.HardwareError{Code: 1, Desc: "sim adapter unplugged"}
		}
		if len(s.pending) > 0 {
			resp := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return resp, nil
		}
		s.mu.Unlock()
		if timeoutMs == 0 {
			return nil, channel.ErrBufferEmpty
		}
		if time.Now().After(deadline) {
			return nil, channel.ErrReadTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *simEcu) ClearRx() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	return nil
}

func (s *simEcu) ClearTx() error {
	return nil
}

var _ channel.IsoTpChannel = (*simEcu)(nil)
