// Package protocol defines the contract between a diagnostic protocol
// (KWP2000, UDS, OBD-II) and the dynamic diagnostic session worker.
package protocol

// SessionMode describes one diagnostic session mode of an ECU.
type SessionMode struct {
	// Standard session id byte, e.g. 0x81 for KWP2000 normal mode
	ID uint8
	// TesterPresentRequired indicates the ECU drops out of this mode unless
	// periodic tester present messages are sent
	TesterPresentRequired bool
	// Name of the mode, for logging
	Name string
}

// Action is the session worker's classification of an outgoing request.
// It is either a [SetSessionMode] or an [Other].
type Action interface {
	isAction()
}

// SetSessionMode marks a request that changes the ECU session mode,
// which the session worker treats specially.
type SetSessionMode struct {
	Mode SessionMode
}

// Other is any request without special handling.
type Other struct {
	SID  uint8
	Data []byte
}

func (SetSessionMode) isAction() {}
func (Other) isAction()          {}

// NegativeResponse is a decoded ECU negative response.
type NegativeResponse struct {
	Code        uint8
	Description string
}

// Protocol is implemented once per diagnostic protocol. Implementations are
// small value types whose only state is their mutable session mode table,
// and must be safe for use from the session worker while callers register
// custom session modes.
type Protocol interface {
	// BasicSessionMode returns the mode an ECU boots into. ok is false for
	// protocols without session control (OBD-II).
	BasicSessionMode() (mode SessionMode, ok bool)
	// Name of the protocol
	Name() string
	// ClassifyRequest inspects a raw request payload and tells the session
	// worker whether it changes the session mode.
	ClassifyRequest(payload []byte) Action
	// BuildTesterPresent returns the keepalive message. ok is false for
	// protocols without tester present.
	BuildTesterPresent(responseRequired bool) (msg []byte, ok bool)
	// ParseResponse splits an ECU response into payload or negative response.
	ParseResponse(resp []byte) (data []byte, nrc *NegativeResponse)
	// SessionModes returns a copy of the known session mode table.
	SessionModes() map[uint8]SessionMode
	// RegisterSessionMode adds a custom mode to the table.
	RegisterSessionMode(mode SessionMode)
	// LookupSessionMode resolves a session id byte.
	LookupSessionMode(id uint8) (SessionMode, bool)
	// IsEcuBusy reports whether the NRC means the ECU accepted the request
	// but needs more time (response pending).
	IsEcuBusy(nrc uint8) bool
	// IsWrongMode reports whether the NRC means the service is unavailable
	// in the active session mode.
	IsWrongMode(nrc uint8) bool
	// IsRepeatRequest reports whether the NRC asks the tester to send the
	// request again.
	IsRepeatRequest(nrc uint8) bool
}

// Negative responses start with this byte for every supported protocol
const NegativeResponseSID uint8 = 0x7F

// PositiveResponseOffset is added to the request SID in positive responses
const PositiveResponseOffset uint8 = 0x40

// DecodeNegative extracts the NRC byte out of a raw response if it is a
// negative response frame [0x7F, sid, nrc].
func DecodeNegative(resp []byte) (nrc uint8, ok bool) {
	if len(resp) >= 3 && resp[0] == NegativeResponseSID {
		return resp[2], true
	}
	return 0, false
}
