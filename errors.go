// Package godiag implements diagnostic communication with vehicle ECUs
// over ISO-TP (ISO 15765-2), supporting the KWP2000, UDS and OBD-II
// request/response protocols.
package godiag

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSupported means the protocol does not implement the requested operation
	ErrNotSupported = errors.New("operation is not supported by the diagnostic protocol")
	// ErrEmptyResponse means the ECU acknowledged the request but returned no data
	ErrEmptyResponse = errors.New("ECU response was empty")
	// ErrWrongMessage means the response service id does not echo the request
	ErrWrongMessage = errors.New("ECU response does not match the request service id")
	// ErrInvalidResponseLength means the decoder expected more bytes than arrived
	ErrInvalidResponseLength = errors.New("ECU response is too short")
	// ErrParameterInvalid means the caller violated a protocol level constraint
	ErrParameterInvalid = errors.New("invalid parameter for diagnostic request")
	// ErrServerNotRunning means the session worker has exited
	ErrServerNotRunning = errors.New("diagnostic session is no longer running")
)

// EcuError is a non recoverable negative response returned by the ECU itself.
type EcuError struct {
	Code        uint8
	Description string
}

func (e *EcuError) Error() string {
	return fmt.Sprintf("ECU negative response 0x%02X (%s)", e.Code, e.Description)
}

// MismatchedIdentError is returned when the data identifier inside a positive
// response differs from the identifier that was requested.
type MismatchedIdentError struct {
	Want     uint16
	Received uint16
}

func (e *MismatchedIdentError) Error() string {
	return fmt.Sprintf("ECU returned identifier 0x%04X, requested 0x%04X", e.Received, e.Want)
}

// NotImplementedError marks a decoder that is intentionally left to service
// wrappers outside this library.
type NotImplementedError struct {
	Note string
}

func (e *NotImplementedError) Error() string {
	return "not implemented: " + e.Note
}

// ChannelError wraps a transport failure surfaced through the session API.
type ChannelError struct {
	Err error
}

func (e *ChannelError) Error() string {
	return "channel error: " + e.Err.Error()
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// HardwareFailure wraps a device backend failure surfaced through the session API.
type HardwareFailure struct {
	Err error
}

func (e *HardwareFailure) Error() string {
	return "hardware error: " + e.Err.Error()
}

func (e *HardwareFailure) Unwrap() error {
	return e.Err
}
