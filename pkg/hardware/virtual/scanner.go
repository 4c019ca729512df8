package virtual

import (
	"log/slog"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/hardware"
)

func init() {
	hardware.RegisterScanner("virtual", func(logger *slog.Logger) hardware.Scanner {
		return NewScanner(NewHub(), logger)
	})
}

// Scanner hands out devices attached to one hub.
type Scanner struct {
	hub    *Hub
	logger *slog.Logger
}

// NewScanner creates a scanner whose devices all share the given hub.
func NewScanner(hub *Hub, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{hub: hub, logger: logger}
}

// Hub returns the bus shared by all devices of this scanner.
func (s *Scanner) Hub() *Hub {
	return s.hub
}

func deviceInfo() hardware.Info {
	return hardware.Info{
		Name:   "virtual0",
		Vendor: "godiag",
		Capabilities: hardware.Capabilities{
			IsoTp: hardware.IsoTpEmulated,
			Can:   true,
		},
	}
}

func (s *Scanner) ListDevices() []hardware.Info {
	return []hardware.Info{deviceInfo()}
}

func (s *Scanner) OpenDeviceByIndex(idx int) (hardware.Device, error) {
	if idx != 0 {
		return nil, hardware.ErrDeviceNotFound
	}
	return &Device{hub: s.hub, logger: s.logger}, nil
}

func (s *Scanner) OpenDeviceByName(name string) (hardware.Device, error) {
	if name != "virtual0" {
		return nil, hardware.ErrDeviceNotFound
	}
	return &Device{hub: s.hub, logger: s.logger}, nil
}

// Device is a virtual adapter on the hub. It supports any number of
// simultaneous channels.
type Device struct {
	hub      *Hub
	logger   *slog.Logger
	closed   bool
	channels []*Channel
}

func (d *Device) Info() hardware.Info {
	return deviceInfo()
}

func (d *Device) IsConnected() bool {
	return !d.closed
}

func (d *Device) CanChannel() (channel.CanChannel, error) {
	if d.closed {
		return nil, hardware.ErrDeviceNotOpen
	}
	c := d.hub.NewChannel()
	d.channels = append(d.channels, c)
	return c, nil
}

func (d *Device) IsoTpChannel(forceNative bool) (channel.IsoTpChannel, error) {
	if d.closed {
		return nil, hardware.ErrDeviceNotOpen
	}
	if forceNative {
		return nil, hardware.ErrChannelNotSupported
	}
	c := d.hub.NewChannel()
	d.channels = append(d.channels, c)
	return hardware.EmulateIsoTp(c, d.logger), nil
}

func (d *Device) BatteryVoltage() (float32, bool) {
	return 0, false
}

func (d *Device) IgnitionVoltage() (float32, bool) {
	return 0, false
}

// Unplug simulates the adapter disappearing, all channels start failing.
func (d *Device) Unplug() {
	for _, c := range d.channels {
		c.SetFailing(true)
	}
}

func (d *Device) Close() error {
	d.closed = true
	for _, c := range d.channels {
		_ = c.Close()
	}
	return nil
}
