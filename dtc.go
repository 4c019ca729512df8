package godiag

import "fmt"

// DTCFormat describes how the raw value of a trouble code should be
// interpreted when rendering its name.
type DTCFormat uint8

const (
	DTCFormatIso15031_6 DTCFormat = iota
	DTCFormatIso14229_1
	DTCFormatSaeJ1939_73
	DTCFormatIso11992_4
	DTCFormatKwpTwoByteHex
	DTCFormatUnknown
)

// DTCFormatFromUds maps the DTCFormatIdentifier byte of a UDS
// ReadDTCInformation response to a [DTCFormat].
func DTCFormatFromUds(fmtByte uint8) DTCFormat {
	switch fmtByte {
	case 0x00:
		return DTCFormatIso15031_6
	case 0x01:
		return DTCFormatIso14229_1
	case 0x02:
		return DTCFormatSaeJ1939_73
	case 0x03:
		return DTCFormatIso11992_4
	default:
		return DTCFormatUnknown
	}
}

// DTC status byte bits according to appendix D.2 of ISO 14229
const (
	DTCStatusTestFailed                 uint8 = 0x01
	DTCStatusTestFailedThisCycle        uint8 = 0x02
	DTCStatusPending                    uint8 = 0x04
	DTCStatusConfirmed                  uint8 = 0x08
	DTCStatusTestNotCompletedSinceClear uint8 = 0x10
	DTCStatusTestFailedSinceClear       uint8 = 0x20
	DTCStatusTestNotCompletedThisCycle  uint8 = 0x40
	DTCStatusWarningIndicatorRequested  uint8 = 0x80
)

// DTC is a diagnostic trouble code as stored by an ECU.
type DTC struct {
	// Format used to interpret Raw when rendering the name
	Format DTCFormat
	// Raw value of the code as reported by the ECU
	Raw uint32
	// Status bitmask, see the DTCStatus constants
	Status uint8
}

var dtcComponentPrefix = [4]string{"P", "C", "B", "U"}

// Name renders the trouble code in its conventional textual form,
// e.g. a raw value of 0x0105 in ISO 15031-6 format becomes "P0105".
// Formats without a defined rendering return the raw value in decimal.
func (d DTC) Name() string {
	switch d.Format {
	case DTCFormatIso15031_6:
		b0 := uint8(d.Raw >> 8)
		b1 := uint8(d.Raw)
		return fmt.Sprintf("%s%01X%01X%01X%01X",
			dtcComponentPrefix[b0>>6],
			(b0&0x30)>>4,
			b0&0x0F,
			b1>>4,
			b1&0x0F)
	case DTCFormatKwpTwoByteHex:
		return fmt.Sprintf("%s%04X", dtcComponentPrefix[(d.Raw>>14)&0x03], d.Raw&0x3FFF)
	default:
		return fmt.Sprintf("%d", d.Raw)
	}
}

// Pending reports whether the pendingDTC bit of the status byte is set.
func (d DTC) Pending() bool {
	return d.Status&DTCStatusPending != 0
}

// Confirmed reports whether the confirmedDTC bit of the status byte is set.
func (d DTC) Confirmed() bool {
	return d.Status&DTCStatusConfirmed != 0
}

// MilOn reports whether the ECU requested the warning indicator for this code.
func (d DTC) MilOn() bool {
	return d.Status&DTCStatusWarningIndicatorRequested != 0
}
