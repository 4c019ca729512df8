// Package config loads diagnostic session profiles from ini files.
//
// A profile bundles everything needed to open a session against one ECU:
//
//	[isotp]
//	block_size = 8
//	st_min = 20
//	pad_frame = true
//	can_speed = 500000
//	can_ext_addr = false
//	ext_addr_tx = 0x00    ; optional, both must be set
//	ext_addr_rx = 0x00
//
//	[ecu]
//	send_id = 0x7E0
//	recv_id = 0x7E8
//	read_timeout_ms = 2500
//	write_timeout_ms = 2500
//
//	[advanced]            ; optional section
//	global_tp_id = 0
//	tester_present_interval_ms = 2000
//	tester_present_require_response = true
//	global_session_control = false
//	command_cooldown_ms = 100
package config

import (
	"fmt"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/session"
	"gopkg.in/ini.v1"
)

// Profile is one parsed session profile.
type Profile struct {
	IsoTp    channel.IsoTpSettings
	Basic    session.BasicOptions
	Advanced *session.AdvancedOptions
}

// LoadProfile reads a profile from an ini file.
func LoadProfile(path string) (*Profile, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return parseProfile(file)
}

// LoadProfileFromBytes reads a profile from in-memory ini data.
func LoadProfileFromBytes(data []byte) (*Profile, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return parseProfile(file)
}

func parseProfile(file *ini.File) (*Profile, error) {
	p := &Profile{IsoTp: channel.DefaultIsoTpSettings()}

	isotp := file.Section("isotp")
	if key, err := isotp.GetKey("block_size"); err == nil {
		v, err := key.Uint()
		if err != nil || v > 0xFF {
			return nil, fmt.Errorf("invalid block_size: %v", key.Value())
		}
		p.IsoTp.BlockSize = uint8(v)
	}
	if key, err := isotp.GetKey("st_min"); err == nil {
		v, err := parseByte(key)
		if err != nil {
			return nil, err
		}
		p.IsoTp.StMin = v
	}
	p.IsoTp.PadFrame = isotp.Key("pad_frame").MustBool(p.IsoTp.PadFrame)
	p.IsoTp.CanSpeed = uint32(isotp.Key("can_speed").MustUint(uint(p.IsoTp.CanSpeed)))
	p.IsoTp.CanUseExtAddr = isotp.Key("can_ext_addr").MustBool(false)
	if isotp.HasKey("ext_addr_tx") != isotp.HasKey("ext_addr_rx") {
		return nil, fmt.Errorf("ext_addr_tx and ext_addr_rx must be set together")
	}
	if isotp.HasKey("ext_addr_tx") {
		tx, err := parseByte(isotp.Key("ext_addr_tx"))
		if err != nil {
			return nil, err
		}
		rx, err := parseByte(isotp.Key("ext_addr_rx"))
		if err != nil {
			return nil, err
		}
		p.IsoTp.ExtAddresses = &channel.ExtAddress{Tx: tx, Rx: rx}
	}

	ecu := file.Section("ecu")
	if !ecu.HasKey("send_id") || !ecu.HasKey("recv_id") {
		return nil, fmt.Errorf("profile must set ecu.send_id and ecu.recv_id")
	}
	sendID, err := parseCanID(ecu.Key("send_id"))
	if err != nil {
		return nil, err
	}
	recvID, err := parseCanID(ecu.Key("recv_id"))
	if err != nil {
		return nil, err
	}
	p.Basic = session.BasicOptions{
		SendID:   sendID,
		RecvID:   recvID,
		Timeouts: session.DefaultTimeouts(),
	}
	if key, err := ecu.GetKey("read_timeout_ms"); err == nil {
		v, err := key.Uint()
		if err != nil {
			return nil, fmt.Errorf("invalid read_timeout_ms: %v", key.Value())
		}
		p.Basic.Timeouts.ReadTimeoutMs = uint32(v)
	}
	if key, err := ecu.GetKey("write_timeout_ms"); err == nil {
		v, err := key.Uint()
		if err != nil {
			return nil, fmt.Errorf("invalid write_timeout_ms: %v", key.Value())
		}
		p.Basic.Timeouts.WriteTimeoutMs = uint32(v)
	}

	if adv, err := file.GetSection("advanced"); err == nil {
		opts := &session.AdvancedOptions{
			TesterPresentIntervalMs:      uint32(adv.Key("tester_present_interval_ms").MustUint(2000)),
			TesterPresentRequireResponse: adv.Key("tester_present_require_response").MustBool(true),
			GlobalSessionControl:         adv.Key("global_session_control").MustBool(false),
			CommandCooldownMs:            uint32(adv.Key("command_cooldown_ms").MustUint(0)),
		}
		if adv.HasKey("global_tp_id") {
			id, err := parseCanID(adv.Key("global_tp_id"))
			if err != nil {
				return nil, err
			}
			opts.GlobalTpID = id
		}
		if adv.HasKey("tp_ext_id") {
			v, err := parseByte(adv.Key("tp_ext_id"))
			if err != nil {
				return nil, err
			}
			opts.TpExtID = &v
		}
		p.Advanced = opts
	}
	return p, nil
}

func parseByte(key *ini.Key) (uint8, error) {
	v, err := parseNumber(key.Value())
	if err != nil || v > 0xFF {
		return 0, fmt.Errorf("invalid byte value for %s: %v", key.Name(), key.Value())
	}
	return uint8(v), nil
}

func parseCanID(key *ini.Key) (uint32, error) {
	v, err := parseNumber(key.Value())
	if err != nil || v > 0x1FFFFFFF {
		return 0, fmt.Errorf("invalid CAN id for %s: %v", key.Name(), key.Value())
	}
	return uint32(v), nil
}

// parseNumber accepts decimal or 0x prefixed hex.
func parseNumber(s string) (uint64, error) {
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		var v uint64
		_, err := fmt.Sscanf(s[2:], "%x", &v)
		return v, err
	}
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return v, err
}
