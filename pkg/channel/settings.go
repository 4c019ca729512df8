package channel

import "time"

// Padding byte used to fill CAN frames up to 8 bytes when padding is enabled
const PadByte uint8 = 0xCC

// Largest payload a single ISO-TP transfer can carry (12 bit length field)
const MaxIsoTpPayload = 4095

// ExtAddress holds the extended addressing bytes of an ISO-TP channel,
// transmit side first.
type ExtAddress struct {
	Tx uint8
	Rx uint8
}

// IsoTpSettings is the ISO 15765-2 configuration of a channel.
type IsoTpSettings struct {
	// BlockSize is the number of consecutive frames the peer may send before
	// the next flow control message. 0 means no flow control handshake after
	// the first.
	//
	// Note: this value might be overridden by a device native ISO-TP stack.
	BlockSize uint8
	// StMin is the minimum separation time between consecutive frames.
	// 0x00 sends as fast as the bus allows, 0x01-0x7F is a delay in
	// milliseconds, 0xF1-0xF9 a delay of 100-900 microseconds.
	StMin uint8
	// ExtAddresses enables extended addressing when non nil.
	ExtAddresses *ExtAddress
	// PadFrame pads every frame to 8 bytes with [PadByte].
	PadFrame bool
	// CanSpeed is the baud rate of the CAN network.
	CanSpeed uint32
	// CanUseExtAddr selects 29bit CAN identifiers instead of 11bit.
	CanUseExtAddr bool
}

// DefaultIsoTpSettings returns the settings most OBD port ECUs expect.
func DefaultIsoTpSettings() IsoTpSettings {
	return IsoTpSettings{
		BlockSize: 8,
		StMin:     20,
		PadFrame:  true,
		CanSpeed:  500_000,
	}
}

// StMinDelay converts an STmin byte into a duration.
// Values outside the ranges defined by ISO 15765-2 are treated as 0.
func StMinDelay(st uint8) time.Duration {
	switch {
	case st >= 0x01 && st <= 0x7F:
		return time.Duration(st) * time.Millisecond
	case st >= 0xF1 && st <= 0xF9:
		return time.Duration(st-0xF0) * 100 * time.Microsecond
	default:
		return 0
	}
}
