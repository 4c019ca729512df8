// Package hardware abstracts the physical adapters used to reach a vehicle
// network. A [Scanner] enumerates the devices of one backend, a [Device]
// hands out the CAN or ISO-TP channels the diagnostic stack runs on.
package hardware

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/isotp"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceNotOpen  = errors.New("device was not opened")
	// ErrConflictingChannel means a channel of this type is already open on
	// the device and the backend cannot multiplex it
	ErrConflictingChannel  = errors.New("channel type conflicts with an already open channel")
	ErrChannelNotSupported = errors.New("channel type not supported on this hardware")
)

// IsoTpSupport describes how a device provides ISO-TP.
type IsoTpSupport uint8

const (
	// The device cannot carry ISO-TP at all
	IsoTpNone IsoTpSupport = iota
	// ISO-TP is emulated in software over the device's CAN channel
	IsoTpEmulated
	// The device implements ISO-TP natively
	IsoTpNative
)

// Capabilities lists the transports a device supports.
type Capabilities struct {
	IsoTp    IsoTpSupport
	Can      bool
	KLine    bool
	KLineKwp bool
	SaeJ1850 bool
	Sci      bool
	Ip       bool
}

// Info describes one scanned device. Optional fields are empty when the
// backend does not report them.
type Info struct {
	Name            string
	Vendor          string
	DeviceFwVersion string
	ApiVersion      string
	LibraryVersion  string
	LibraryLocation string
	Capabilities    Capabilities
}

// Device is one opened adapter.
type Device interface {
	// Info returns the device description
	Info() Info
	// IsConnected reports whether the device link is still alive
	IsConnected() bool
	// CanChannel opens the raw CAN channel of the device
	CanChannel() (channel.CanChannel, error)
	// IsoTpChannel returns an ISO-TP channel, either native or emulated in
	// software over CAN. With forceNative set the call fails with
	// [ErrChannelNotSupported] when the hardware has no native stack.
	IsoTpChannel(forceNative bool) (channel.IsoTpChannel, error)
	// BatteryVoltage reads +12V from pin 16 of the OBD port, ok is false
	// when the adapter cannot measure it
	BatteryVoltage() (v float32, ok bool)
	// IgnitionVoltage reads the ignition pin of the OBD port
	IgnitionVoltage() (v float32, ok bool)
	// Close releases the device
	Close() error
}

// Scanner lists and opens the devices of one backend.
type Scanner interface {
	// ListDevices returns everything the system knows about, a listed
	// device is not necessarily usable
	ListDevices() []Info
	// OpenDeviceByIndex opens a device by its position in ListDevices
	OpenDeviceByIndex(idx int) (Device, error)
	// OpenDeviceByName opens a device by name
	OpenDeviceByName(name string) (Device, error)
}

// NewScannerFunc builds a scanner for one backend type.
type NewScannerFunc func(logger *slog.Logger) Scanner

var scannerRegistry = make(map[string]NewScannerFunc)

// RegisterScanner registers a backend. It should be called from an init()
// function of the backend package.
func RegisterScanner(kind string, fn NewScannerFunc) {
	scannerRegistry[kind] = fn
}

// NewScanner creates a scanner of a registered backend kind.
// Currently supported: socketcan, slcan, virtual.
func NewScanner(kind string, logger *slog.Logger) (Scanner, error) {
	fn, ok := scannerRegistry[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported backend: %v", kind)
	}
	return fn(logger), nil
}

// EmulateIsoTp wraps the software ISO-TP engine around a raw CAN channel.
// Backends without native ISO-TP use this inside their IsoTpChannel
// implementation. The returned facade owns the engine.
func EmulateIsoTp(can channel.CanChannel, logger *slog.Logger) channel.IsoTpChannel {
	return isotp.NewEngine(can, logger).IsoTpChannel()
}

// IdsToFilterMask computes a hardware acceptance (mask, filter) pair
// matching every id in ids.
func IdsToFilterMask(ids []uint32, useExtCan bool) (mask uint32, filter uint32) {
	if len(ids) == 0 {
		return 0, 0
	}
	mask = ids[0]
	filter = ids[0]
	for _, id := range ids {
		filter &= id
		mask |= id
	}
	mask ^= filter
	if useExtCan {
		mask ^= 0x1FFFFFFF
	} else {
		mask ^= 0x7FF
	}
	return mask, filter
}
