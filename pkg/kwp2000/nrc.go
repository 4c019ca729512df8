package kwp2000

// NrcDescription returns the textual meaning of a KWP2000 negative response
// code according to ISO 14230-3, including the DCX reserved ranges.
func NrcDescription(nrc uint8) string {
	switch {
	case nrc == 0x10:
		return "GeneralReject"
	case nrc == 0x11:
		return "ServiceNotSupported"
	case nrc == 0x12:
		return "SubFunctionNotSupportedInvalidFormat"
	case nrc == 0x21:
		return "BusyRepeatRequest"
	case nrc == 0x22:
		return "ConditionsNotCorrectRequestSequenceError"
	case nrc == 0x23:
		return "RoutineNotComplete"
	case nrc == 0x31:
		return "RequestOutOfRange"
	case nrc == 0x33:
		return "SecurityAccessDenied"
	case nrc == 0x35:
		return "InvalidKey"
	case nrc == 0x36:
		return "ExceedNumberOfAttempts"
	case nrc == 0x37:
		return "RequiredTimeDelayNotExpired"
	case nrc == 0x40:
		return "DownloadNotAccepted"
	case nrc == 0x50:
		return "UploadNotAccepted"
	case nrc == 0x71:
		return "TransferSuspended"
	case nrc == 0x78:
		return "RequestCorrectlyReceivedResponsePending"
	case nrc == 0x80:
		return "ServiceNotSupportedInActiveSession"
	case nrc >= 0x90 && nrc <= 0x99:
		return "ReservedDCX"
	case nrc == 0x9A:
		return "DataDecompressionFailed"
	case nrc == 0x9B:
		return "DataDecryptionFailed"
	case nrc >= 0x9C && nrc <= 0x9F:
		return "ReservedDCX"
	case nrc == 0xA0:
		return "EcuNotResponding"
	case nrc == 0xA1:
		return "EcuAddressUnknown"
	case nrc >= 0xA2 && nrc <= 0xF9:
		return "ReservedDCX"
	default:
		return "ReservedISO"
	}
}
