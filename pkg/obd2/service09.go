package obd2

import (
	godiag "github.com/samsamfire/godiag"
)

// Service 09 info type ids
const (
	InfoVinMessageCount uint8 = 0x01
	InfoVin             uint8 = 0x02
	InfoCalibrationID   uint8 = 0x04
	InfoCvn             uint8 = 0x06
	InfoEcuName         uint8 = 0x0A
)

// DecodeVIN extracts the 17 character vehicle identification number from a
// positive service 09 PID 02 response. The response includes the echoed
// service id (0x49), the info type and a message count byte before the
// ASCII payload.
func DecodeVIN(resp []byte) (string, error) {
	if len(resp) < 3 || resp[0] != SidRequestVehicleInfo+0x40 {
		return "", godiag.ErrWrongMessage
	}
	if resp[1] != InfoVin {
		return "", &godiag.MismatchedIdentError{Want: uint16(InfoVin), Received: uint16(resp[1])}
	}
	vin := resp[3:]
	if len(vin) < 17 {
		return "", godiag.ErrInvalidResponseLength
	}
	return string(vin[:17]), nil
}

// DecodeSupportedPids decodes the 4 byte PID support bitmap of a service 01
// PID 0x00/0x20/... response. base is the PID the bitmap was requested with.
func DecodeSupportedPids(resp []byte, base uint8) ([]uint8, error) {
	if len(resp) < 2 || resp[0] != SidShowCurrentData+0x40 {
		return nil, godiag.ErrWrongMessage
	}
	if resp[1] != base {
		return nil, godiag.ErrWrongMessage
	}
	if len(resp) < 6 {
		return nil, godiag.ErrInvalidResponseLength
	}
	var pids []uint8
	for i, b := range resp[2:6] {
		for bit := 0; bit < 8; bit++ {
			if b&(0x80>>bit) != 0 {
				pids = append(pids, base+uint8(i*8+bit)+1)
			}
		}
	}
	return pids, nil
}
