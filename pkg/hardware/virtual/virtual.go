// Package virtual provides an in-process CAN bus for tests and simulation.
// A [Hub] plays the role of the physical bus, every channel attached to it
// sees the frames written by all the others.
package virtual

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/samsamfire/godiag/pkg/channel"
)

// Frames buffered per endpoint, newly written frames are dropped while it is full
const endpointQueueSize = 1024

// Hub is an in-memory broker connecting virtual CAN channels.
type Hub struct {
	mu        sync.Mutex
	endpoints []*Channel
	taps      []func(channel.CanFrame)
}

func NewHub() *Hub {
	return &Hub{}
}

// NewChannel attaches a new endpoint to the hub.
func (h *Hub) NewChannel() *Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Channel{hub: h, rx: make(chan channel.CanFrame, endpointQueueSize)}
	h.endpoints = append(h.endpoints, c)
	return c
}

// Tap registers an observer invoked for every frame written to the hub.
func (h *Hub) Tap(fn func(channel.CanFrame)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, fn)
}

func (h *Hub) broadcast(from *Channel, frames []channel.CanFrame) {
	h.mu.Lock()
	endpoints := append([]*Channel{}, h.endpoints...)
	taps := append([]func(channel.CanFrame){}, h.taps...)
	h.mu.Unlock()
	for _, f := range frames {
		for _, tap := range taps {
			tap(f)
		}
		for _, ep := range endpoints {
			if ep == from && !from.receiveOwn {
				continue
			}
			if !ep.open.Load() {
				continue
			}
			select {
			case ep.rx <- f:
			default:
				// Endpoint is not draining, drop the frame like a full
				// hardware buffer would
			}
		}
	}
}

// Channel is one endpoint of the hub. It implements [channel.CanChannel].
type Channel struct {
	hub        *Hub
	rx         chan channel.CanFrame
	open       atomic.Bool
	failing    atomic.Bool
	receiveOwn bool
}

// SetReceiveOwn loops back frames written by this endpoint.
func (c *Channel) SetReceiveOwn(receiveOwn bool) {
	c.receiveOwn = receiveOwn
}

// SetFailing makes every read and write return a hardware error, simulating
// an unplugged adapter.
func (c *Channel) SetFailing(failing bool) {
	c.failing.Store(failing)
}

func (c *Channel) Open() error {
	c.open.Store(true)
	return nil
}

func (c *Channel) Close() error {
	c.open.Store(false)
	return nil
}

func (c *Channel) SetCanCfg(baud uint32, useExtended bool) error {
	return nil
}

func (c *Channel) WritePackets(frames []channel.CanFrame, timeoutMs uint32) error {
	if !c.open.Load() {
		return channel.ErrInterfaceNotOpen
	}
	if c.failing.Load() {
		return &channel.HardwareError{Code: 1, Desc: "virtual device unplugged"}
	}
	c.hub.broadcast(c, frames)
	return nil
}

func (c *Channel) ReadPackets(max int, timeoutMs uint32) ([]channel.CanFrame, error) {
	if !c.open.Load() {
		return nil, channel.ErrInterfaceNotOpen
	}
	if c.failing.Load() {
		return nil, &channel.HardwareError{Code: 1, Desc: "virtual device unplugged"}
	}
	frames := make([]channel.CanFrame, 0, max)
	for len(frames) < max {
		select {
		case f := <-c.rx:
			frames = append(frames, f)
		default:
			goto buffered
		}
	}
buffered:
	if len(frames) > 0 || timeoutMs == 0 {
		return frames, nil
	}
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case f := <-c.rx:
		frames = append(frames, f)
		// Drain whatever arrived together with it
		for len(frames) < max {
			select {
			case f := <-c.rx:
				frames = append(frames, f)
			default:
				return frames, nil
			}
		}
		return frames, nil
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
