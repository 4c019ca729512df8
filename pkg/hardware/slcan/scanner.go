package slcan

import (
	"log/slog"
	"path/filepath"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/hardware"
)

func init() {
	hardware.RegisterScanner("slcan", func(logger *slog.Logger) hardware.Scanner {
		return NewScanner(logger)
	})
}

// Scanner enumerates serial ports that may carry an SLCAN adapter. There is
// no way to probe without opening, every USB serial port is listed.
type Scanner struct {
	logger *slog.Logger
}

func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

func listPorts() []string {
	var ports []string
	for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		ports = append(ports, matches...)
	}
	return ports
}

func infoFor(port string) hardware.Info {
	return hardware.Info{
		Name:       port,
		ApiVersion: "SLCAN",
		Capabilities: hardware.Capabilities{
			IsoTp: hardware.IsoTpEmulated,
			Can:   true,
		},
	}
}

func (s *Scanner) ListDevices() []hardware.Info {
	var devices []hardware.Info
	for _, port := range listPorts() {
		devices = append(devices, infoFor(port))
	}
	return devices
}

func (s *Scanner) OpenDeviceByIndex(idx int) (hardware.Device, error) {
	ports := listPorts()
	if idx < 0 || idx >= len(ports) {
		return nil, hardware.ErrDeviceNotFound
	}
	return &Device{port: ports[idx], logger: s.logger}, nil
}

func (s *Scanner) OpenDeviceByName(name string) (hardware.Device, error) {
	return &Device{port: name, logger: s.logger}, nil
}

// Device is one SLCAN adapter. The serial link is exclusive, only a single
// channel may be open at a time.
type Device struct {
	port    string
	logger  *slog.Logger
	closed  bool
	claimed bool
}

func (d *Device) Info() hardware.Info {
	return infoFor(d.port)
}

func (d *Device) IsConnected() bool {
	return !d.closed
}

func (d *Device) CanChannel() (channel.CanChannel, error) {
	if d.closed {
		return nil, hardware.ErrDeviceNotOpen
	}
	if d.claimed {
		return nil, hardware.ErrConflictingChannel
	}
	d.claimed = true
	return NewChannel(d.port), nil
}

func (d *Device) IsoTpChannel(forceNative bool) (channel.IsoTpChannel, error) {
	if d.closed {
		return nil, hardware.ErrDeviceNotOpen
	}
	if forceNative {
		return nil, hardware.ErrChannelNotSupported
	}
	if d.claimed {
		return nil, hardware.ErrConflictingChannel
	}
	d.claimed = true
	return hardware.EmulateIsoTp(NewChannel(d.port), d.logger), nil
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
