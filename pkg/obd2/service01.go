package obd2

import (
	"fmt"

	godiag "github.com/samsamfire/godiag"
)

// PidValue is one decoded service 01 measurement.
type PidValue struct {
	Pid   uint8
	Name  string
	Value float64
	Unit  string
}

func (v PidValue) String() string {
	if v.Unit == "" {
		return fmt.Sprintf("%s: %g", v.Name, v.Value)
	}
	return fmt.Sprintf("%s: %g %s", v.Name, v.Value, v.Unit)
}

type pidSpec struct {
	name   string
	unit   string
	length int
	decode func(data []byte) float64
}

func scaled(factor float64, offset float64) func([]byte) float64 {
	return func(data []byte) float64 {
		return float64(data[0])*factor + offset
	}
}

func scaled16(divisor float64) func([]byte) float64 {
	return func(data []byte) float64 {
		return float64(uint16(data[0])<<8|uint16(data[1])) / divisor
	}
}

func percent(data []byte) float64 {
	return float64(data[0]) * 100.0 / 255.0
}

func fuelTrim(data []byte) float64 {
	return float64(data[0])/1.28 - 100.0
}

// Decode formulas for the service 01 PIDs defined by SAE J1979. PIDs whose
// payload is a packed bitfield (monitor status, fuel system status, OBD
// standard) are not listed, their raw bytes pass through untouched.
var dataPids = map[uint8]pidSpec{
	0x04: {"Calculated engine load", "%", 1, percent},
	0x05: {"Engine coolant temperature", "°C", 1, scaled(1, -40)},
	0x06: {"Short term fuel trim bank 1", "%", 1, fuelTrim},
	0x07: {"Long term fuel trim bank 1", "%", 1, fuelTrim},
	0x08: {"Short term fuel trim bank 2", "%", 1, fuelTrim},
	0x09: {"Long term fuel trim bank 2", "%", 1, fuelTrim},
	0x0A: {"Fuel pressure", "kPa", 1, scaled(3, 0)},
	0x0B: {"Intake manifold absolute pressure", "kPa", 1, scaled(1, 0)},
	0x0C: {"Engine speed", "rpm", 2, scaled16(4)},
	0x0D: {"Vehicle speed", "km/h", 1, scaled(1, 0)},
	0x0E: {"Timing advance", "°", 1, scaled(0.5, -64)},
	0x0F: {"Intake air temperature", "°C", 1, scaled(1, -40)},
	0x10: {"Mass air flow rate", "g/s", 2, scaled16(100)},
	0x11: {"Throttle position", "%", 1, percent},
	0x1F: {"Run time since engine start", "s", 2, scaled16(1)},
	0x21: {"Distance traveled with MIL on", "km", 2, scaled16(1)},
	0x22: {"Fuel rail pressure", "kPa", 2, scaled16(1.0 / 0.079)},
	0x23: {"Fuel rail gauge pressure", "kPa", 2, func(d []byte) float64 {
		return float64(uint16(d[0])<<8|uint16(d[1])) * 10
	}},
	0x2C: {"Commanded EGR", "%", 1, percent},
	0x2D: {"EGR error", "%", 1, fuelTrim},
	0x2F: {"Fuel tank level input", "%", 1, percent},
	0x30: {"Warm-ups since codes cleared", "", 1, scaled(1, 0)},
	0x31: {"Distance traveled since codes cleared", "km", 2, scaled16(1)},
	0x33: {"Absolute barometric pressure", "kPa", 1, scaled(1, 0)},
	0x42: {"Control module voltage", "V", 2, scaled16(1000)},
	0x43: {"Absolute load value", "%", 2, func(d []byte) float64 {
		return float64(uint16(d[0])<<8|uint16(d[1])) * 100.0 / 255.0
	}},
	0x45: {"Relative throttle position", "%", 1, percent},
	0x46: {"Ambient air temperature", "°C", 1, scaled(1, -40)},
	0x4C: {"Commanded throttle actuator", "%", 1, percent},
	0x4D: {"Time run with MIL on", "min", 2, scaled16(1)},
	0x4E: {"Time since trouble codes cleared", "min", 2, scaled16(1)},
	0x52: {"Ethanol fuel percentage", "%", 1, percent},
	0x5C: {"Engine oil temperature", "°C", 1, scaled(1, -40)},
	0x5E: {"Engine fuel rate", "L/h", 2, scaled16(20)},
}

// PidName returns the SAE J1979 name of a service 01 data PID, or an empty
// string when the PID has no decode entry.
func PidName(pid uint8) string {
	return dataPids[pid].name
}

// DecodePid decodes a positive service 01 response into a measurement.
// The response carries the echoed service id (0x41) and the PID before the
// data bytes.
func DecodePid(resp []byte) (PidValue, error) {
	if len(resp) < 2 || resp[0] != SidShowCurrentData+0x40 {
		return PidValue{}, godiag.ErrWrongMessage
	}
	pid := resp[1]
	spec, ok := dataPids[pid]
	if !ok {
		return PidValue{}, &godiag.NotImplementedError{
			Note: fmt.Sprintf("no decode formula for PID 0x%02X", pid),
		}
	}
	data := resp[2:]
	if len(data) < spec.length {
		return PidValue{}, godiag.ErrInvalidResponseLength
	}
	return PidValue{
		Pid:   pid,
		Name:  spec.name,
		Value: spec.decode(data),
		Unit:  spec.unit,
	}, nil
}

// DecodeStoredDTCs decodes a service 03 (or 07 / 0A) response into trouble
// codes. Over CAN the response is the echoed service id followed by a count
// byte and two bytes per code in ISO 15031-6 encoding.
func DecodeStoredDTCs(resp []byte) ([]godiag.DTC, error) {
	if len(resp) < 2 {
		return nil, godiag.ErrInvalidResponseLength
	}
	switch resp[0] {
	case SidShowStoredDTCs + 0x40, SidShowPendingDTCs + 0x40, SidShowPermanentDTCs + 0x40:
	default:
		return nil, godiag.ErrWrongMessage
	}
	raw := resp[2:]
	if len(raw)%2 != 0 {
		return nil, godiag.ErrInvalidResponseLength
	}
	dtcs := make([]godiag.DTC, 0, len(raw)/2)
	for i := 0; i < len(raw); i += 2 {
		code := uint32(raw[i])<<8 | uint32(raw[i+1])
		if code == 0 {
			continue
		}
		dtcs = append(dtcs, godiag.DTC{Format: godiag.DTCFormatIso15031_6, Raw: code})
	}
	return dtcs, nil
}
