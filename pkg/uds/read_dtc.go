package uds

import (
	godiag "github.com/samsamfire/godiag"
)

// ReadDTCInformation sub function ids
const (
	DtcReportNumberOfDTCByStatusMask      uint8 = 0x01
	DtcReportDTCByStatusMask              uint8 = 0x02
	DtcReportDTCSnapshotIdentification    uint8 = 0x03
	DtcReportDTCSnapshotRecordByDTCNumber uint8 = 0x04
	DtcReportSupportedDTC                 uint8 = 0x0A
	DtcReportFirstTestFailedDTC           uint8 = 0x0B
	DtcReportFirstConfirmedDTC            uint8 = 0x0C
	DtcReportMostRecentTestFailedDTC      uint8 = 0x0D
	DtcReportMostRecentConfirmedDTC       uint8 = 0x0E
)

// DTCCount is the decoded answer to reportNumberOfDTCByStatusMask.
type DTCCount struct {
	// Status bits the ECU can actually report
	StatusAvailabilityMask uint8
	// Encoding the ECU uses for its codes
	Format godiag.DTCFormat
	// Number of matching trouble codes
	Count uint16
}

// DecodeDTCCount decodes a positive reportNumberOfDTCByStatusMask response:
// [0x59, 0x01, statusAvailabilityMask, formatIdentifier, countHigh, countLow].
func DecodeDTCCount(resp []byte) (DTCCount, error) {
	if len(resp) < 2 || resp[0] != SidReadDTCInformation+0x40 {
		return DTCCount{}, godiag.ErrWrongMessage
	}
	if resp[1] != DtcReportNumberOfDTCByStatusMask {
		return DTCCount{}, godiag.ErrWrongMessage
	}
	if len(resp) < 6 {
		return DTCCount{}, godiag.ErrInvalidResponseLength
	}
	return DTCCount{
		StatusAvailabilityMask: resp[2],
		Format:                 godiag.DTCFormatFromUds(resp[3]),
		Count:                  uint16(resp[4])<<8 | uint16(resp[5]),
	}, nil
}

// DecodeDTCsByStatusMask decodes a positive reportDTCByStatusMask (or
// reportSupportedDTC) response into trouble codes. The record layout is
// [0x59, subFunction, statusAvailabilityMask] followed by four bytes per
// code: three DTC bytes in ISO 14229-1 encoding and the status byte.
func DecodeDTCsByStatusMask(resp []byte) ([]godiag.DTC, error) {
	if len(resp) < 2 || resp[0] != SidReadDTCInformation+0x40 {
		return nil, godiag.ErrWrongMessage
	}
	if len(resp) < 3 {
		return nil, godiag.ErrInvalidResponseLength
	}
	records := resp[3:]
	if len(records)%4 != 0 {
		return nil, godiag.ErrInvalidResponseLength
	}
	dtcs := make([]godiag.DTC, 0, len(records)/4)
	for i := 0; i < len(records); i += 4 {
		dtcs = append(dtcs, godiag.DTC{
			Format: godiag.DTCFormatIso14229_1,
			Raw:    uint32(records[i])<<16 | uint32(records[i+1])<<8 | uint32(records[i+2]),
			Status: records[i+3],
		})
	}
	return dtcs, nil
}
