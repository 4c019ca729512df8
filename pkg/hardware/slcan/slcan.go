// Package slcan supports SLCAN (Lawicel) serial CAN adapters such as
// CANtact and USBtin, using github.com/tarm/serial for port access.
package slcan

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/tarm/serial"
)

const rxQueueSize = 1024

// Serial baud rate used to talk to the adapter itself
const portBaud = 115200

// slcanSpeed maps a CAN bitrate to the adapter's Sn setup command.
func slcanSpeed(baud uint32) (byte, error) {
	switch baud {
	case 10_000:
		return '0', nil
	case 20_000:
		return '1', nil
	case 50_000:
		return '2', nil
	case 100_000:
		return '3', nil
	case 125_000:
		return '4', nil
	case 250_000:
		return '5', nil
	case 500_000:
		return '6', nil
	case 800_000:
		return '7', nil
	case 1_000_000:
		return '8', nil
	default:
		return 0, fmt.Errorf("unsupported CAN bitrate for slcan: %d", baud)
	}
}

// Channel is an SLCAN adapter on a serial port. It implements
// [channel.CanChannel].
type Channel struct {
	portName string
	mu       sync.Mutex
	port     *serial.Port
	rx       chan channel.CanFrame
	open     atomic.Bool
	speed    byte
}

func NewChannel(portName string) *Channel {
	return &Channel{portName: portName, rx: make(chan channel.CanFrame, rxQueueSize), speed: '6'}
}

func (c *Channel) SetCanCfg(baud uint32, useExtended bool) error {
	if c.open.Load() {
		return channel.ErrConfiguration
	}
	speed, err := slcanSpeed(baud)
	if err != nil {
		return channel.ErrConfiguration
	}
	c.speed = speed
	return nil
}

func (c *Channel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open.Load() {
		return nil
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        c.portName,
		Baud:        portBaud,
		ReadTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		return &channel.HardwareError{Code: 0, Desc: "serial port open failed", Err: err}
	}
	c.port = port
	// Leave any previous session, set the bitrate, open the CAN side
	for _, cmd := range []string{"\rC\r", "S" + string(c.speed) + "\r", "O\r"} {
		if _, err := port.Write([]byte(cmd)); err != nil {
			_ = port.Close()
			return &channel.HardwareError{Code: 0, Desc: "slcan setup failed", Err: err}
		}
	}
	c.open.Store(true)
	go c.readLoop(port)
	return nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open.Load() {
		return nil
	}
	c.open.Store(false)
	_, _ = c.port.Write([]byte("C\r"))
	return c.port.Close()
}

// readLoop parses the adapter's ASCII stream into CAN frames.
func (c *Channel) readLoop(port *serial.Port) {
	buf := make([]byte, 256)
	var line []byte
	for c.open.Load() {
		n, err := port.Read(buf)
		if err != nil || n == 0 {
			continue
		}
		for _, b := range buf[:n] {
			if b == '\r' {
				if frame, ok := parseFrame(line); ok {
					select {
					case c.rx <- frame:
					default:
					}
				}
				line = line[:0]
				continue
			}
			if b != '\a' {
				line = append(line, b)
			}
		}
	}
}

// parseFrame decodes one slcan line, t<id:3><len:1><data> for standard
// frames, T<id:8><len:1><data> for extended.
func parseFrame(line []byte) (channel.CanFrame, bool) {
	if len(line) == 0 {
		return channel.CanFrame{}, false
	}
	var idLen int
	var ext bool
	switch line[0] {
	case 't':
		idLen = 3
	case 'T':
		idLen = 8
		ext = true
	default:
		return channel.CanFrame{}, false
	}
	if len(line) < 1+idLen+1 {
		return channel.CanFrame{}, false
	}
	id, err := strconv.ParseUint(string(line[1:1+idLen]), 16, 32)
	if err != nil {
		return channel.CanFrame{}, false
	}
	dlc, err := strconv.ParseUint(string(line[1+idLen:2+idLen]), 16, 8)
	if err != nil || dlc > 8 {
		return channel.CanFrame{}, false
	}
	hexData := line[2+idLen:]
	if len(hexData) < int(dlc)*2 {
		return channel.CanFrame{}, false
	}
	data, err := hex.DecodeString(string(hexData[:dlc*2]))
	if err != nil {
		return channel.CanFrame{}, false
	}
	return channel.NewCanFrame(uint32(id), data, ext), true
}

// formatFrame encodes one frame as an slcan line including the trailing CR.
func formatFrame(f channel.CanFrame) []byte {
	var line []byte
	if f.IsExtended() {
		line = append(line, 'T')
		line = append(line, []byte(fmt.Sprintf("%08X", f.ID()))...)
	} else {
		line = append(line, 't')
		line = append(line, []byte(fmt.Sprintf("%03X", f.ID()))...)
	}
	line = append(line, []byte(fmt.Sprintf("%01X", len(f.Data())))...)
	line = append(line, []byte(fmt.Sprintf("%X", f.Data()))...)
	return append(line, '\r')
}

func (c *Channel) WritePackets(frames []channel.CanFrame, timeoutMs uint32) error {
	if !c.open.Load() {
		return channel.ErrInterfaceNotOpen
	}
	for _, f := range frames {
		if _, err := c.port.Write(formatFrame(f)); err != nil {
			return &channel.HardwareError{Code: 0, Desc: "slcan write failed", Err: err}
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
