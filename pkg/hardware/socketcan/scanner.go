package socketcan

import (
	"log/slog"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/hardware"
)

func init() {
	hardware.RegisterScanner("socketcan", func(logger *slog.Logger) hardware.Scanner {
		return NewScanner(logger)
	})
}

// Scanner enumerates SocketCAN network interfaces (can*, vcan*, slcan*).
type Scanner struct {
	logger *slog.Logger
}

func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

func infoFor(name string) hardware.Info {
	return hardware.Info{
		Name:       name,
		ApiVersion: "SocketCAN",
		Capabilities: hardware.Capabilities{
			IsoTp: hardware.IsoTpEmulated,
			Can:   true,
		},
	}
}

func (s *Scanner) ListDevices() []hardware.Info {
	var devices []hardware.Info
	for _, name := range listCanInterfaces() {
		devices = append(devices, infoFor(name))
	}
	return devices
}

func (s *Scanner) OpenDeviceByIndex(idx int) (hardware.Device, error) {
	names := listCanInterfaces()
	if idx < 0 || idx >= len(names) {
		return nil, hardware.ErrDeviceNotFound
	}
	return s.OpenDeviceByName(names[idx])
}

func (s *Scanner) OpenDeviceByName(name string) (hardware.Device, error) {
	for _, known := range listCanInterfaces() {
		if known == name {
			return &Device{name: name, logger: s.logger}, nil
		}
	}
	return nil, hardware.ErrDeviceNotFound
}

// Device is one SocketCAN interface. Only one channel of each type may be
// open at a time, the kernel socket is not shared.
type Device struct {
	name      string
	logger    *slog.Logger
	closed    bool
	canOpen   bool
	isoTpOpen bool
}

func (d *Device) Info() hardware.Info {
	return infoFor(d.name)
}

func (d *Device) IsConnected() bool {
	return !d.closed
}

func (d *Device) CanChannel() (channel.CanChannel, error) {
	if d.closed {
		return nil, hardware.ErrDeviceNotOpen
	}
	if d.canOpen {
		return nil, hardware.ErrConflictingChannel
	}
	d.canOpen = true
	return NewChannel(d.name), nil
}

func (d *Device) IsoTpChannel(forceNative bool) (channel.IsoTpChannel, error) {
	if d.closed {
		return nil, hardware.ErrDeviceNotOpen
	}
	if forceNative {
		// Kernel ISO-TP sockets are not wired up here
		return nil, hardware.ErrChannelNotSupported
	}
	if d.isoTpOpen {
		return nil, hardware.ErrConflictingChannel
	}
	d.isoTpOpen = true
	return hardware.EmulateIsoTp(NewChannel(d.name), d.logger), nil
}

func (d *Device) BatteryVoltage() (float32, bool) {
	return 0, false
}

func (d *Device) IgnitionVoltage() (float32, bool) {
	return 0, false
}

func (d *Device) Close() error {
	d.closed = true
	return nil
}
