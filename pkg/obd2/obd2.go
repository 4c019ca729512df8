// Package obd2 implements the OBD-II (ISO 15031-5) diagnostic protocol.
//
// OBD-II has no session control and no tester present keepalive, the
// protocol is stateless from the session worker's point of view.
package obd2

import (
	"fmt"

	"github.com/samsamfire/godiag/pkg/protocol"
)

// OBD-II service ids
const (
	SidShowCurrentData     uint8 = 0x01
	SidShowFreezeFrameData uint8 = 0x02
	SidShowStoredDTCs      uint8 = 0x03
	SidClearStoredDTCs     uint8 = 0x04
	SidO2SensorTestResults uint8 = 0x05
	SidTestResultsCan      uint8 = 0x06
	SidShowPendingDTCs     uint8 = 0x07
	SidControlOperation    uint8 = 0x08
	SidRequestVehicleInfo  uint8 = 0x09
	SidShowPermanentDTCs   uint8 = 0x0A
)

// NRC values OBD-II shares with ISO 14229
const (
	nrcBusyRepeatRequest uint8 = 0x21
	nrcResponsePending   uint8 = 0x78
)

// Protocol implements [protocol.Protocol] for OBD-II.
type Protocol struct{}

// New creates an OBD-II protocol.
func New() *Protocol {
	return &Protocol{}
}

func (p *Protocol) Name() string {
	return "OBD2"
}

// BasicSessionMode always reports no session mode, OBD-II has no session
// control.
func (p *Protocol) BasicSessionMode() (protocol.SessionMode, bool) {
	return protocol.SessionMode{}, false
}

func (p *Protocol) ClassifyRequest(payload []byte) protocol.Action {
	if len(payload) == 0 {
		return protocol.Other{}
	}
	return protocol.Other{SID: payload[0], Data: payload[1:]}
}

// BuildTesterPresent always reports not applicable.
func (p *Protocol) BuildTesterPresent(responseRequired bool) ([]byte, bool) {
	return nil, false
}

func (p *Protocol) ParseResponse(resp []byte) ([]byte, *protocol.NegativeResponse) {
	if len(resp) > 0 && resp[0] == protocol.NegativeResponseSID {
		nrc, ok := protocol.DecodeNegative(resp)
		if !ok {
			return nil, &protocol.NegativeResponse{Description: "truncated negative response"}
		}
		return nil, &protocol.NegativeResponse{Code: nrc, Description: NrcDescription(nrc)}
	}
	return resp, nil
}

func (p *Protocol) SessionModes() map[uint8]protocol.SessionMode {
	return map[uint8]protocol.SessionMode{}
}

func (p *Protocol) RegisterSessionMode(mode protocol.SessionMode) {
	// OBD-II has no session modes to register
}

func (p *Protocol) LookupSessionMode(id uint8) (protocol.SessionMode, bool) {
	return protocol.SessionMode{}, false
}

func (p *Protocol) IsEcuBusy(nrc uint8) bool {
	return nrc == nrcResponsePending
}

func (p *Protocol) IsWrongMode(nrc uint8) bool {
	return false
}

func (p *Protocol) IsRepeatRequest(nrc uint8) bool {
	return nrc == nrcBusyRepeatRequest
}

// NrcDescription renders an OBD-II negative response code. Outside the codes
// shared with ISO 14229 the meaning is OEM specific.
func NrcDescription(nrc uint8) string {
	switch nrc {
	case nrcBusyRepeatRequest:
		return "BusyRepeatRequest"
	case nrcResponsePending:
		return "RequestCorrectlyReceivedResponsePending"
	default:
		return fmt.Sprintf("OEM specific (0x%02X)", nrc)
	}
}
