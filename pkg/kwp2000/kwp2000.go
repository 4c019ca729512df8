// Package kwp2000 implements the KWP2000 (ISO 14230) diagnostic protocol.
//
// Written against KWP2000 v2.2 (05/08/02). Known to match the dialects used
// by Daimler, Chrysler, Dodge, Jeep and Mitsubishi ECUs, others are untested.
package kwp2000

import (
	"sync"

	"github.com/samsamfire/godiag/pkg/protocol"
)

// KWP2000 service ids. The 'Reserved' (0x87-0xB9) and 'System supplier
// specific' (0xBA-0xBF) ranges are not listed.
const (
	SidStartDiagnosticSession                 uint8 = 0x10
	SidEcuReset                               uint8 = 0x11
	SidClearDiagnosticInformation             uint8 = 0x14
	SidReadStatusOfDiagnosticTroubleCodes     uint8 = 0x17
	SidReadDiagnosticTroubleCodesByStatus     uint8 = 0x18
	SidReadEcuIdentification                  uint8 = 0x1A
	SidReadDataByLocalIdentifier              uint8 = 0x21
	SidReadDataByIdentifier                   uint8 = 0x22
	SidReadMemoryByAddress                    uint8 = 0x23
	SidSecurityAccess                         uint8 = 0x27
	SidDisableNormalMessageTransmission       uint8 = 0x28
	SidEnableNormalMessageTransmission        uint8 = 0x29
	SidDynamicallyDefineLocalIdentifier       uint8 = 0x2C
	SidWriteDataByIdentifier                  uint8 = 0x2E
	SidInputOutputControlByLocalIdentifier    uint8 = 0x30
	SidStartRoutineByLocalIdentifier          uint8 = 0x31
	SidStopRoutineByLocalIdentifier           uint8 = 0x32
	SidRequestRoutineResultsByLocalIdentifier uint8 = 0x33
	SidRequestDownload                        uint8 = 0x34
	SidRequestUpload                          uint8 = 0x35
	SidTransferData                           uint8 = 0x36
	SidRequestTransferExit                    uint8 = 0x37
	SidWriteDataByLocalIdentifier             uint8 = 0x3B
	SidWriteMemoryByAddress                   uint8 = 0x3D
	SidTesterPresent                          uint8 = 0x3E
	SidControlDTCSettings                     uint8 = 0x85
	SidResponseOnEvent                        uint8 = 0x86
)

// Session mode ids defined by KWP2000
const (
	SessionNormal              uint8 = 0x81
	SessionReprogramming       uint8 = 0x85
	SessionStandby             uint8 = 0x89
	SessionPassive             uint8 = 0x90
	SessionExtendedDiagnostics uint8 = 0x92
)

// Negative response codes with special meaning to the session worker
const (
	nrcBusyRepeatRequest                  uint8 = 0x21
	nrcResponsePending                    uint8 = 0x78
	nrcServiceNotSupportedInActiveSession uint8 = 0x80
)

// Protocol implements [protocol.Protocol] for KWP2000.
type Protocol struct {
	mu       sync.RWMutex
	sessions map[uint8]protocol.SessionMode
}

// New creates a KWP2000 protocol with the standard session mode table.
func New() *Protocol {
	return &Protocol{
		sessions: map[uint8]protocol.SessionMode{
			SessionNormal:              {ID: SessionNormal, TesterPresentRequired: false, Name: "Normal"},
			SessionReprogramming:       {ID: SessionReprogramming, TesterPresentRequired: true, Name: "Reprogramming"},
			SessionStandby:             {ID: SessionStandby, TesterPresentRequired: true, Name: "Standby"},
			SessionPassive:             {ID: SessionPassive, TesterPresentRequired: false, Name: "Passive"},
			SessionExtendedDiagnostics: {ID: SessionExtendedDiagnostics, TesterPresentRequired: true, Name: "ExtendedDiagnostics"},
		},
	}
}

func (p *Protocol) Name() string {
	return "KWP2000"
}

func (p *Protocol) BasicSessionMode() (protocol.SessionMode, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[SessionNormal], true
}

func (p *Protocol) ClassifyRequest(payload []byte) protocol.Action {
	if len(payload) >= 2 && payload[0] == SidStartDiagnosticSession {
		mode, ok := p.LookupSessionMode(payload[1])
		if !ok {
			// Unknown modes are assumed to need a keepalive
			mode = protocol.SessionMode{ID: payload[1], TesterPresentRequired: true, Name: "Custom"}
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
	return nrc == nrcServiceNotSupportedInActiveSession
}

func (p *Protocol) IsRepeatRequest(nrc uint8) bool {
	return nrc == nrcBusyRepeatRequest
}
