// Package socketcan provides diagnostic hardware channels over Linux
// SocketCAN interfaces, using the implementation found at
// https://github.com/brutella/can
package socketcan

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	sockcan "github.com/brutella/can"
	"github.com/samsamfire/godiag/pkg/channel"
)

// Frames buffered between the socketcan callback and ReadPackets
const rxQueueSize = 1024

// CAN id masks and flags of the SocketCAN frame format
const (
	maskExtendedID uint32 = 0x1FFFFFFF
	flagExtended   uint32 = 0x80000000
)

// Channel adapts a socketcan bus to [channel.CanChannel]. brutella/can is
// callback driven, received frames are buffered internally until polled.
type Channel struct {
	name string
	mu   sync.Mutex
	bus  *sockcan.Bus
	rx   chan channel.CanFrame
	open atomic.Bool
}

func NewChannel(interfaceName string) *Channel {
	return &Channel{name: interfaceName, rx: make(chan channel.CanFrame, rxQueueSize)}
}

func (c *Channel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open.Load() {
		return nil
	}
	bus, err := sockcan.NewBusForInterfaceWithName(c.name)
	if err != nil {
		return &channel.HardwareError{Code: 0, Desc: "socketcan open failed", Err: err}
	}
	c.bus = bus
	bus.Subscribe(c)
	go func() {
		_ = bus.ConnectAndPublish()
	}()
	c.open.Store(true)
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open.Load() {
		return nil
	}
	c.open.Store(false)
	return c.bus.Disconnect()
}

// Handle is the brutella/can callback for received frames.
func (c *Channel) Handle(frame sockcan.Frame) {
	f := channel.NewCanFrame(frame.ID&maskExtendedID, frame.Data[:frame.Length], frame.ID&flagExtended != 0)
	select {
	case c.rx <- f:
	default:
		// Not being drained fast enough, drop like a full driver queue
	}
}

// SetCanCfg is a no-op, bitrate and addressing of a socketcan interface are
// configured through the netlink layer (ip link), not by the application.
func (c *Channel) SetCanCfg(baud uint32, useExtended bool) error {
	return nil
}

func (c *Channel) WritePackets(frames []channel.CanFrame, timeoutMs uint32) error {
	if !c.open.Load() {
		return channel.ErrInterfaceNotOpen
	}
	for _, f := range frames {
		id := f.ID()
		if f.IsExtended() {
			id |= flagExtended
		}
		out := sockcan.Frame{ID: id, Length: uint8(len(f.Data()))}
		copy(out.Data[:], f.Data())
		if err := c.bus.Publish(out); err != nil {
			return &channel.HardwareError{Code: 0, Desc: "socketcan publish failed", Err: err}
		}
	}
	return nil
}

func (c *Channel) ReadPackets(max int, timeoutMs uint32) ([]channel.CanFrame, error) {
	if !c.open.Load() {
		return nil, channel.ErrInterfaceNotOpen
	}
	frames := make([]channel.CanFrame, 0, max)
	for len(frames) < max {
		select {
		case f := <-c.rx:
			frames = append(frames, f)
			continue
		default:
		}
		break
	}
	if len(frames) > 0 || timeoutMs == 0 {
		return frames, nil
	}
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case f := <-c.rx:
		return append(frames, f), nil
	case <-timer.C:
		return nil, channel.ErrReadTimeout
	}
}

func (c *Channel) ClearRx() error {
	for {
		select {
		case <-c.rx:
		default:
			return nil
		}
	}
}

func (c *Channel) ClearTx() error {
	return nil
}

var _ channel.CanChannel = (*Channel)(nil)

// listCanInterfaces returns the CAN network interfaces of the system.
func listCanInterfaces() []string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var names []string
	for _, iface := range ifaces {
		if strings.HasPrefix(iface.Name, "can") || strings.HasPrefix(iface.Name, "vcan") ||
			strings.HasPrefix(iface.Name, "slcan") {
			names = append(names, iface.Name)
		}
	}
	return names
}
