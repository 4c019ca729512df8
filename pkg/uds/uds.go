// Package uds implements the UDS (ISO 14229) diagnostic protocol.
package uds

import (
	"sync"

	"github.com/samsamfire/godiag/pkg/protocol"
)

// UDS service ids
const (
	SidDiagnosticSessionControl        uint8 = 0x10
	SidEcuReset                        uint8 = 0x11
	SidClearDiagnosticInformation      uint8 = 0x14
	SidReadDTCInformation              uint8 = 0x19
	SidReadDataByIdentifier            uint8 = 0x22
	SidReadMemoryByAddress             uint8 = 0x23
	SidReadScalingDataByIdentifier     uint8 = 0x24
	SidSecurityAccess                  uint8 = 0x27
	SidCommunicationControl            uint8 = 0x28
	SidReadDataByPeriodicIdentifier    uint8 = 0x2A
	SidDynamicallyDefineDataIdentifier uint8 = 0x2C
	SidWriteDataByIdentifier           uint8 = 0x2E
	SidInputOutputControlByIdentifier  uint8 = 0x2F
	SidRoutineControl                  uint8 = 0x31
	SidRequestDownload                 uint8 = 0x34
	SidRequestUpload                   uint8 = 0x35
	SidTransferData                    uint8 = 0x36
	SidRequestTransferExit             uint8 = 0x37
	SidWriteMemoryByAddress            uint8 = 0x3D
	SidTesterPresent                   uint8 = 0x3E
	SidAccessTimingParameters          uint8 = 0x83
	SidSecuredDataTransmission         uint8 = 0x84
	SidControlDTCSettings              uint8 = 0x85
	SidResponseOnEvent                 uint8 = 0x86
	SidLinkControl                     uint8 = 0x87
)

// Session mode ids defined by ISO 14229-1
const (
	SessionDefault      uint8 = 0x01
	SessionProgramming  uint8 = 0x02
	SessionExtended     uint8 = 0x03
	SessionSafetySystem uint8 = 0x04
)

// Negative response codes with special meaning to the session worker
const (
	nrcBusyRepeatRequest                      uint8 = 0x21
	nrcResponsePending                        uint8 = 0x78
	nrcSubFunctionNotSupportedInActiveSession uint8 = 0x7E
	nrcServiceNotSupportedInActiveSession     uint8 = 0x7F
)

// Protocol implements [protocol.Protocol] for UDS.
type Protocol struct {
	mu       sync.RWMutex
	sessions map[uint8]protocol.SessionMode
}

// New creates a UDS protocol with the standard session mode table.
func New() *Protocol {
	return &Protocol{
		sessions: map[uint8]protocol.SessionMode{
			SessionDefault:      {ID: SessionDefault, TesterPresentRequired: false, Name: "Default"},
			SessionProgramming:  {ID: SessionProgramming, TesterPresentRequired: true, Name: "Programming"},
			SessionExtended:     {ID: SessionExtended, TesterPresentRequired: true, Name: "Extended"},
			SessionSafetySystem: {ID: SessionSafetySystem, TesterPresentRequired: true, Name: "SafetySystem"},
		},
	}
}

func (p *Protocol) Name() string {
	return "UDS"
}

func (p *Protocol) BasicSessionMode() (protocol.SessionMode, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[SessionDefault], true
}

func (p *Protocol) ClassifyRequest(payload []byte) protocol.Action {
	if len(payload) >= 2 && payload[0] == SidDiagnosticSessionControl {
		// Bit 7 of the sub function suppresses the positive response
		id := payload[1] & 0x7F
		mode, ok := p.LookupSessionMode(id)
		if !ok {
			mode = protocol.SessionMode{ID: id, TesterPresentRequired: true, Name: "Custom"}
		}
		return protocol.SetSessionMode{Mode: mode}
	}
	if len(payload) == 0 {
		return protocol.Other{}
	}
	return protocol.Other{SID: payload[0], Data: payload[1:]}
}

func (p *Protocol) BuildTesterPresent(responseRequired bool) ([]byte, bool) {
	if responseRequired {
		return []byte{SidTesterPresent, 0x00}, true
	}
	return []byte{SidTesterPresent, 0x80}, true
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
	p.mu.RLock()
	defer p.mu.RUnlock()
	modes := make(map[uint8]protocol.SessionMode, len(p.sessions))
	for id, mode := range p.sessions {
		modes[id] = mode
	}
	return modes
}

func (p *Protocol) RegisterSessionMode(mode protocol.SessionMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[mode.ID] = mode
}

func (p *Protocol) LookupSessionMode(id uint8) (protocol.SessionMode, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mode, ok := p.sessions[id]
	return mode, ok
}

func (p *Protocol) IsEcuBusy(nrc uint8) bool {
	return nrc == nrcResponsePending
}

func (p *Protocol) IsWrongMode(nrc uint8) bool {
	return nrc == nrcSubFunctionNotSupportedInActiveSession ||
		nrc == nrcServiceNotSupportedInActiveSession
}

func (p *Protocol) IsRepeatRequest(nrc uint8) bool {
	return nrc == nrcBusyRepeatRequest
}
