// Package isotp implements a software ISO 15765-2 transport layer on top of
// a raw CAN channel.
//
// The engine owns one CAN channel and multiplexes two logical facades from
// it: a passthrough CAN channel on which all bus traffic is visible, and a
// filtered ISO-TP channel which delivers reassembled payloads for a single
// receive id. A private worker goroutine drives both directions and owns all
// transfer state.
package isotp

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samsamfire/godiag/internal/fifo"
	"github.com/samsamfire/godiag/pkg/channel"
)

// Number of frames the passthrough CAN queue retains before dropping
const canQueueSize = 512

type Engine struct {
	logger   *slog.Logger
	isotpCmd chan any
	canCmd   chan any
	running  atomic.Bool
	refs     atomic.Int32
	wg       sync.WaitGroup
}

// NewEngine creates a software ISO-TP engine over the given CAN channel and
// starts its worker. The engine takes ownership of the channel, callers must
// not use it afterwards.
func NewEngine(can channel.CanChannel, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger:   logger.With("service", "[ISOTP]"),
		isotpCmd: make(chan any, 8),
		canCmd:   make(chan any, 8),
	}
	e.running.Store(true)
	w := &worker{
		engine:   e,
		can:      can,
		canQueue: fifo.NewFifo(canQueueSize),
	}
	e.wg.Add(1)
	go w.run()
	return e
}

// IsoTpChannel returns the filtered payload facade of the engine.
// Each facade must be released with its Release method when no longer needed,
// once all facades are released the engine stops and the underlying CAN
// channel is closed.
func (e *Engine) IsoTpChannel() *IsoTpFacade {
	e.refs.Add(1)
	return &IsoTpFacade{engine: e}
}

// CanChannel returns the passthrough packet facade of the engine.
func (e *Engine) CanChannel() *CanFacade {
	e.refs.Add(1)
	return &CanFacade{engine: e}
}

// Stop shuts the worker down regardless of outstanding facades and closes
// the underlying CAN channel.
func (e *Engine) Stop() {
	if e.running.CompareAndSwap(true, false) {
		e.wg.Wait()
	}
}

func (e *Engine) release() {
	if e.refs.Add(-1) <= 0 {
		e.Stop()
	}
}

func (e *Engine) sendIsoTp(cmd any) bool {
	if !e.running.Load() {
		return false
	}
	e.isotpCmd <- cmd
	return true
}

func (e *Engine) sendCan(cmd any) bool {
	if !e.running.Load() {
		return false
	}
	e.canCmd <- cmd
	return true
}

// Commands handled by the worker. Response channels are buffered so the
// worker never blocks on a reply.

type cmdOpen struct{ resp chan error }
type cmdClose struct{ resp chan error }
type cmdSetIds struct {
	send, recv uint32
	resp       chan error
}
type cmdSetCfg struct {
	cfg  channel.IsoTpSettings
	resp chan error
}
type cmdClearRx struct{ resp chan error }
type cmdClearTx struct{ resp chan error }

type readBytesResult struct {
	data []byte
	err  error
}
type cmdReadBytes struct {
	timeoutMs uint32
	resp      chan readBytesResult
}
type cmdWriteBytes struct {
	addr      uint32
	extID     *uint8
	data      []byte
	timeoutMs uint32
	resp      chan error
}

type cmdCanOpen struct{ resp chan error }
type cmdCanClose struct{ resp chan error }
type cmdCanCfg struct {
	baud uint32
	ext  bool
	resp chan error
}
type cmdCanClearRx struct{ resp chan error }

type readFramesResult struct {
	frames []channel.CanFrame
	err    error
}
type cmdReadFrames struct {
	max       int
	timeoutMs uint32
	resp      chan readFramesResult
}
type cmdWriteFrames struct {
	frames []channel.CanFrame
	resp   chan error
}
