package session

import (
	"time"

	godiag "github.com/samsamfire/godiag"
	"github.com/samsamfire/godiag/internal/metrics"
	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/protocol"
)

// How long the worker waits on its request queue before checking the tester
// present schedule. Also bounds the shutdown latency.
const requestPollInterval = 100 * time.Millisecond

func (s *Session) run(ch channel.IsoTpChannel) {
	defer s.wg.Done()
	defer close(s.responses)
	defer func() {
		if err := ch.Close(); err != nil {
			s.logger.Error("closing channel on shutdown", "err", err)
		}
	}()

	lastActivity := time.Now()
	timer := time.NewTimer(requestPollInterval)
	defer timer.Stop()
	for s.running.Load() {
		timer.Reset(requestPollInterval)
		select {
		case req := <-s.requests:
			s.handleRequest(ch, req)
			lastActivity = time.Now()
		case <-timer.C:
			if s.maybeTesterPresent(ch, lastActivity) {
				lastActivity = time.Now()
			}
		}
	}
}

func (s *Session) handleRequest(ch channel.IsoTpChannel, req txPayload) {
	metrics.Requests.WithLabelValues(s.proto.Name()).Inc()
	cooldown := uint32(0)
	if s.advanced != nil {
		cooldown = s.advanced.CommandCooldownMs
	}
	switch action := s.proto.ClassifyRequest(req.payload).(type) {
	case protocol.SetSessionMode:
		txAddr := s.basic.SendID
		var extID *uint8
		needsResponse := true
		if s.advanced != nil && s.advanced.GlobalSessionControl {
			if s.advanced.GlobalTpID != 0 {
				txAddr = s.advanced.GlobalTpID
				extID = s.advanced.TpExtID
				needsResponse = false
			} else {
				s.logger.Warn("global session control enabled but global tp id is not set")
			}
		}
		res := s.sendRecv(ch, txAddr, extID, req.payload, needsResponse, true, cooldown)
		if !isErrResponse(res) {
			// The ECU accepted the change, track the new mode
			mode := action.Mode
			s.setCurrentMode(&mode)
			s.logger.Info("session mode changed", "mode", mode.Name, "id", mode.ID)
		}
		s.responses <- res
		if !needsResponse && req.responseRequired && !isErrResponse(res) {
			// The response was suppressed by global session control but the
			// caller still awaits a terminal answer
			s.responses <- serverResponse{kind: kindEcuResponse}
		}
	default:
		res := s.sendRecv(ch, s.basic.SendID, nil, req.payload, req.responseRequired, true, cooldown)
		s.responses <- res
	}
}

// sendRecv performs one request exchange with the ECU. When emit is set the
// intermediate send state and busy notifications are pushed onto the
// response stream, the terminal response is always returned to the caller.
// Busy and repeat request NRCs are recovered here and never returned.
func (s *Session) sendRecv(ch channel.IsoTpChannel, txAddr uint32, extID *uint8,
	payload []byte, needsResponse bool, emit bool, cooldownMs uint32) serverResponse {

	if len(payload) > 0 {
		s.logger.Debug("sending request", "addr", txAddr, "payload", payload)
		if err := s.writeRequest(ch, txAddr, extID, payload); err != nil {
			s.logger.Error("channel send error", "err", err)
			s.connected.Store(false)
			metrics.ChannelErrors.Inc()
			return serverResponse{kind: kindSendState, err: &godiag.ChannelError{Err: err}}
		}
	}
	if !needsResponse {
		s.connected.Store(true)
		return serverResponse{kind: kindSendState}
	}
	if emit {
		s.responses <- serverResponse{kind: kindSendState}
	}
	for {
		raw, err := ch.ReadBytes(s.basic.Timeouts.ReadTimeoutMs)
		if err != nil {
			s.logger.Error("error reading from channel", "err", err)
			s.connected.Store(false)
			metrics.ChannelErrors.Inc()
			return serverResponse{kind: kindRecvError, err: &godiag.ChannelError{Err: err}}
		}
		s.connected.Store(true)
		if len(raw) == 0 {
			return serverResponse{kind: kindRecvError, err: godiag.ErrEmptyResponse}
		}
		s.logger.Debug("ECU response", "payload", raw)
		data, nrc := s.proto.ParseResponse(raw)
		if nrc == nil {
			return serverResponse{kind: kindEcuResponse, data: data}
		}
		metrics.NegativeResponses.WithLabelValues(s.proto.Name()).Inc()
		switch {
		case s.proto.IsEcuBusy(nrc.Code):
			// ECU accepted the request but needs time, poll again without
			// sending anything new
			s.logger.Debug("ECU is busy, awaiting real response")
			if emit {
				s.responses <- serverResponse{kind: kindEcuBusy}
			}
		case s.proto.IsRepeatRequest(nrc.Code) && len(payload) > 0:
			s.logger.Debug("ECU asked for a repeat of the request", "cooldownMs", cooldownMs)
			time.Sleep(time.Duration(cooldownMs) * time.Millisecond)
			if err := s.writeRequest(ch, txAddr, extID, payload); err != nil {
				s.connected.Store(false)
				metrics.ChannelErrors.Inc()
				return serverResponse{kind: kindRecvError, err: &godiag.ChannelError{Err: err}}
			}
		default:
			if s.proto.IsWrongMode(nrc.Code) {
				s.logger.Warn("service not available in active session mode", "nrc", nrc.Code)
			} else {
				s.logger.Warn("ECU negative response", "nrc", nrc.Code, "desc", nrc.Description)
			}
			return serverResponse{kind: kindEcuNegative, nrc: nrc}
		}
	}
}

func (s *Session) writeRequest(ch channel.IsoTpChannel, txAddr uint32, extID *uint8, payload []byte) error {
	if err := ch.ClearTx(); err != nil {
		return err
	}
	if err := ch.ClearRx(); err != nil {
		return err
	}
	return ch.WriteBytes(txAddr, extID, payload, s.basic.Timeouts.WriteTimeoutMs)
}

// maybeTesterPresent sends a keepalive when the tracked mode needs one and
// the interval has elapsed. Returns true when a keepalive went out
// successfully.
func (s *Session) maybeTesterPresent(ch channel.IsoTpChannel, lastActivity time.Time) bool {
	if s.advanced == nil {
		return false
	}
	mode, ok := s.CurrentMode()
	if !ok || !mode.TesterPresentRequired {
		return false
	}
	if time.Since(lastActivity) < time.Duration(s.advanced.TesterPresentIntervalMs)*time.Millisecond {
		return false
	}
	msg, ok := s.proto.BuildTesterPresent(s.advanced.TesterPresentRequireResponse)
	if !ok {
		return false
	}
	txAddr := s.basic.SendID
	if s.advanced.GlobalTpID != 0 {
		txAddr = s.advanced.GlobalTpID
	}
	res := s.sendRecv(ch, txAddr, s.advanced.TpExtID, msg, s.advanced.TesterPresentRequireResponse, false, 0)
	metrics.TesterPresent.Inc()
	if isErrResponse(res) {
		// The ECU likely dropped back into its boot mode
		s.logger.Warn("tester present failed, assuming default session state")
		if basicMode, hasMode := s.proto.BasicSessionMode(); hasMode {
			mode := basicMode
			s.setCurrentMode(&mode)
		}
		return false
	}
	return true
}

func isErrResponse(r serverResponse) bool {
	switch r.kind {
	case kindEcuResponse:
		return false
	case kindSendState:
		return r.err != nil
	default:
		return true
	}
}
