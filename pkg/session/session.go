// Package session implements the dynamic diagnostic session: a background
// worker that owns an ISO-TP channel, serializes requests to one ECU, keeps
// the ECU in its diagnostic mode with tester present messages and decodes
// negative response handling per protocol.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"

	godiag "github.com/samsamfire/godiag"
	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/protocol"
)

// Session is a dynamic diagnostic session over one ISO-TP channel.
//
// All requests are serialized through a single background worker which holds
// the only reference to the channel. A Session is safe for use from multiple
// goroutines, requests are strictly FIFO.
type Session struct {
	logger   *slog.Logger
	proto    protocol.Protocol
	basic    BasicOptions
	advanced *AdvancedOptions

	// Serializes callers so one request's responses cannot be stolen by
	// another caller
	callMu    sync.Mutex
	requests  chan txPayload
	responses chan serverResponse
	running   atomic.Bool
	connected atomic.Bool
	wg        sync.WaitGroup

	modeMu      sync.RWMutex
	currentMode *protocol.SessionMode

	hookMu           sync.Mutex
	waitingHook      func()
	sendCompleteHook func()
}

// New opens a dynamic diagnostic session. The session takes ownership of the
// channel: it configures it, opens it, and closes it when the session is
// closed. advanced may be nil.
func New(proto protocol.Protocol, ch channel.IsoTpChannel, cfg channel.IsoTpSettings,
	basic BasicOptions, advanced *AdvancedOptions, logger *slog.Logger) (*Session, error) {

	if logger == nil {
		logger = slog.Default()
	}
	if err := ch.SetIsoTpCfg(cfg); err != nil {
		return nil, err
	}
	if err := ch.SetIds(basic.SendID, basic.RecvID); err != nil {
		return nil, err
	}
	if err := ch.Open(); err != nil {
		return nil, err
	}

	s := &Session{
		logger:    logger.With("service", "[SESSION]", "protocol", proto.Name()),
		proto:     proto,
		basic:     basic,
		advanced:  advanced,
		requests:  make(chan txPayload, 1),
		responses: make(chan serverResponse, 16),
	}
	basicMode, hasMode := proto.BasicSessionMode()
	if hasMode {
		mode := basicMode
		s.currentMode = &mode
	} else if advanced != nil {
		s.logger.Warn("protocol has no session control, ignoring advanced session options")
	}
	s.running.Store(true)
	s.connected.Store(true)
	s.wg.Add(1)
	go s.run(ch)
	return s, nil
}

// Close signals the worker to exit and waits for it. The worker closes the
// channel on exit. In flight callers observe [godiag.ErrServerNotRunning].
func (s *Session) Close() {
	if s.running.CompareAndSwap(true, false) {
		s.wg.Wait()
	}
}

// IsRunning reports whether the background worker is still alive.
func (s *Session) IsRunning() bool {
	return s.running.Load()
}

// IsEcuConnected is false once a channel level failure made the ECU
// unreachable, and true again after any successful exchange.
func (s *Session) IsEcuConnected() bool {
	return s.connected.Load()
}

// CurrentMode returns the tracked session mode of the ECU. ok is false for
// protocols without session control.
func (s *Session) CurrentMode() (protocol.SessionMode, bool) {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	if s.currentMode == nil {
		return protocol.SessionMode{}, false
	}
	return *s.currentMode, true
}

// OnWaiting registers a hook invoked every time the ECU answers response
// pending while a caller awaits a response.
func (s *Session) OnWaiting(hook func()) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.waitingHook = hook
}

// OnSendComplete registers a hook invoked once the write leg of a request
// with response succeeded.
func (s *Session) OnSendComplete(hook func()) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.sendCompleteHook = hook
}

// SendCommand sends a service id with arguments without awaiting an ECU
// response.
func (s *Session) SendCommand(sid uint8, args ...byte) error {
	return s.SendBytes(append([]byte{sid}, args...))
}

// SendCommandWithResponse sends a service id with arguments and awaits the
// decoded ECU response.
func (s *Session) SendCommandWithResponse(sid uint8, args ...byte) ([]byte, error) {
	return s.SendBytesWithResponse(append([]byte{sid}, args...))
}

// SendBytes queues a raw request and returns once the write leg finished.
func (s *Session) SendBytes(payload []byte) error {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	return s.send(payload, false)
}

// SendBytesWithResponse queues a raw request and blocks until the ECU
// produced a terminal answer. Response pending and repeat request responses
// are recovered internally and never surface.
func (s *Session) SendBytesWithResponse(payload []byte) ([]byte, error) {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	if err := s.send(payload, true); err != nil {
		return nil, err
	}
	s.callHook(&s.sendCompleteHook)
	for {
		resp, ok := <-s.responses
		if !ok {
			return nil, godiag.ErrServerNotRunning
		}
		switch resp.kind {
		case kindEcuResponse:
			return resp.data, nil
		case kindEcuNegative:
			return nil, &godiag.EcuError{Code: resp.nrc.Code, Description: resp.nrc.Description}
		case kindEcuBusy:
			s.callHook(&s.waitingHook)
		case kindRecvError:
			return nil, resp.err
		case kindSendState:
			s.logger.Error("unexpected extra send state", "err", resp.err)
		}
	}
}

// send queues the payload and consumes responses until the send state
// arrives.
func (s *Session) send(payload []byte, responseRequired bool) error {
	if !s.running.Load() {
		return godiag.ErrServerNotRunning
	}
	s.clearResponses()
	s.requests <- txPayload{payload: append([]byte{}, payload...), responseRequired: responseRequired}
	for {
		resp, ok := <-s.responses
		if !ok {
			return godiag.ErrServerNotRunning
		}
		if resp.kind == kindSendState {
			return resp.err
		}
	}
}

// A new request invalidates whatever the previous caller left unread.
func (s *Session) clearResponses() {
	for {
		select {
		case <-s.responses:
		default:
			return
		}
	}
}

func (s *Session) callHook(hook *func()) {
	s.hookMu.Lock()
	h := *hook
	s.hookMu.Unlock()
	if h != nil {
		h()
	}
}

func (s *Session) setCurrentMode(mode *protocol.SessionMode) {
	s.modeMu.Lock()
	s.currentMode = mode
	s.modeMu.Unlock()
}
