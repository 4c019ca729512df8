package uds

// NrcDescription returns the textual meaning of a UDS negative response code
// according to ISO 14229-1.
func NrcDescription(nrc uint8) string {
	switch {
	case nrc == 0x10:
		return "GeneralReject"
	case nrc == 0x11:
		return "ServiceNotSupported"
	case nrc == 0x12:
		return "SubFunctionNotSupported"
	case nrc == 0x13:
		return "IncorrectMessageLengthOrInvalidFormat"
	case nrc == 0x14:
		return "ResponseTooLong"
	case nrc == 0x21:
		return "BusyRepeatRequest"
	case nrc == 0x22:
		return "ConditionsNotCorrect"
	case nrc == 0x24:
		return "RequestSequenceError"
	case nrc == 0x25:
		return "NoResponseFromSubnetComponent"
	case nrc == 0x26:
		return "FailurePreventsExecutionOfRequestedAction"
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
	case nrc >= 0x38 && nrc <= 0x4F:
		return "ReservedByExtendedDataLinkSecurityDocumentation"
	case nrc == 0x70:
		return "UploadDownloadNotAccepted"
	case nrc == 0x71:
		return "TransferDataSuspended"
	case nrc == 0x72:
		return "GeneralProgrammingFailure"
	case nrc == 0x73:
		return "WrongBlockSequenceCounter"
	case nrc == 0x78:
		return "RequestCorrectlyReceivedResponsePending"
	case nrc == 0x7E:
		return "SubFunctionNotSupportedInActiveSession"
	case nrc == 0x7F:
		return "ServiceNotSupportedInActiveSession"
	case nrc == 0x81:
		return "RpmTooHigh"
	case nrc == 0x82:
		return "RpmTooLow"
	case nrc == 0x83:
		return "EngineIsRunning"
	case nrc == 0x84:
		return "EngineIsNotRunning"
	case nrc == 0x85:
		return "EngineRunTimeTooLow"
	case nrc == 0x86:
		return "TemperatureTooHigh"
	case nrc == 0x87:
		return "TemperatureTooLow"
	case nrc == 0x88:
		return "VehicleSpeedTooHigh"
	case nrc == 0x89:
		return "VehicleSpeedTooLow"
	case nrc == 0x8A:
		return "ThrottleTooHigh"
	case nrc == 0x8B:
		return "ThrottleTooLow"
	case nrc == 0x8C:
		return "TransmissionRangeNotInNeutral"
	case nrc == 0x8D:
		return "TransmissionRangeNotInGear"
	case nrc == 0x8F:
		return "BrakeSwitchNotClosed"
	case nrc == 0x90:
		return "ShifterLeverNotInPark"
	case nrc == 0x91:
		return "TorqueConverterClutchLocked"
	case nrc == 0x92:
		return "VoltageTooHigh"
	case nrc == 0x93:
		return "VoltageTooLow"
	case nrc >= 0x94:
		return "ReservedForSpecificConditionsNotCorrect"
	default:
		return "IsoSAEReserved"
	}
}
