package isotp

import (
	"time"

	"github.com/samsamfire/godiag/internal/fifo"
	"github.com/samsamfire/godiag/internal/metrics"
	"github.com/samsamfire/godiag/pkg/channel"
)

// Poll intervals of the worker loop
const (
	activePollInterval = time.Millisecond
	idlePollInterval   = 10 * time.Millisecond
)

type canConfig struct {
	baud uint32
	ext  bool
}

type pendingFrameRead struct {
	max      int
	deadline time.Time
	frames   []channel.CanFrame
	resp     chan readFramesResult
}

// worker owns the CAN channel and all transfer state. It is the only
// goroutine that touches either.
type worker struct {
	engine   *Engine
	can      channel.CanChannel
	canQueue *fifo.Fifo
	canOpen  bool
	canCfg   *canConfig

	isotpOpen bool
	settings  *channel.IsoTpSettings
	txAddr    uint32
	rxID      uint32

	rx rxTransfer
	tx txTransfer

	rxWaiter    chan readBytesResult
	rxDeadline  time.Time
	txWaiter    chan error
	frameWaiter *pendingFrameRead
}

func (w *worker) run() {
	defer w.engine.wg.Done()
	for w.engine.running.Load() {
		active := false
		select {
		case cmd := <-w.engine.isotpCmd:
			w.handleIsoTpCmd(cmd)
			active = true
		default:
		}
		select {
		case cmd := <-w.engine.canCmd:
			w.handleCanCmd(cmd)
			active = true
		default:
		}
		if w.canOpen {
			// Read failures are swallowed, the caller times out through
			// the read path instead
			if frames, err := w.can.ReadPackets(1, 0); err == nil && len(frames) > 0 {
				active = true
				for _, f := range frames {
					w.dispatchFrame(f)
				}
			}
		}
		w.checkRxWaiter()
		w.checkFrameWaiter()
		w.serviceTx()
		if active || w.tx.transmitting {
			time.Sleep(activePollInterval)
		} else {
			time.Sleep(idlePollInterval)
		}
	}
	w.failWaiters(channel.ErrInterfaceNotOpen)
	if w.canOpen {
		_ = w.can.Close()
		w.canOpen = false
	}
}

func (w *worker) failWaiters(err error) {
	if w.rxWaiter != nil {
		w.rxWaiter <- readBytesResult{err: err}
		w.rxWaiter = nil
	}
	if w.txWaiter != nil {
		w.txWaiter <- err
		w.txWaiter = nil
	}
	if w.frameWaiter != nil {
		w.frameWaiter.resp <- readFramesResult{err: err}
		w.frameWaiter = nil
	}
}

func (w *worker) handleIsoTpCmd(cmd any) {
	switch c := cmd.(type) {
	case cmdOpen:
		var err error
		if !w.canOpen {
			err = w.can.Open()
			w.canOpen = err == nil
		}
		if err == nil {
			w.isotpOpen = true
		}
		c.resp <- err
	case cmdClose:
		// Do not kill the CAN side on close, the packet facade may
		// still be in use
		w.isotpOpen = false
		c.resp <- nil
	case cmdSetIds:
		w.txAddr = c.send
		w.rxID = c.recv
		c.resp <- nil
	case cmdSetCfg:
		err := w.configureCan(c.cfg.CanSpeed, c.cfg.CanUseExtAddr)
		if err == nil {
			cfg := c.cfg
			w.settings = &cfg
		}
		c.resp <- err
	case cmdReadBytes:
		w.handleReadBytes(c)
	case cmdWriteBytes:
		w.handleWriteBytes(c)
	case cmdClearRx:
		w.rx.reset()
		c.resp <- nil
	case cmdClearTx:
		w.tx.reset()
		c.resp <- nil
	}
}

func (w *worker) handleCanCmd(cmd any) {
	switch c := cmd.(type) {
	case cmdCanOpen:
		var err error
		if !w.canOpen {
			err = w.can.Open()
			w.canOpen = err == nil
		}
		c.resp <- err
	case cmdCanClose:
		err := w.can.Close()
		w.canOpen = false
		c.resp <- err
	case cmdCanCfg:
		c.resp <- w.configureCan(c.baud, c.ext)
	case cmdReadFrames:
		w.handleReadFrames(c)
	case cmdWriteFrames:
		err := w.can.WritePackets(c.frames, 0)
		if err == nil {
			metrics.CanFramesTx.Add(float64(len(c.frames)))
		}
		c.resp <- err
	case cmdCanClearRx:
		// The hardware buffer stays untouched, it also feeds the ISO-TP side
		w.canQueue.Reset()
		c.resp <- nil
	}
}

func (w *worker) configureCan(baud uint32, ext bool) error {
	if w.canCfg != nil && w.canCfg.baud == baud && w.canCfg.ext == ext {
		return nil
	}
	if w.canOpen {
		return channel.ErrConfiguration
	}
	if err := w.can.SetCanCfg(baud, ext); err != nil {
		return err
	}
	w.canCfg = &canConfig{baud: baud, ext: ext}
	return nil
}

func (w *worker) handleReadBytes(c cmdReadBytes) {
	switch {
	case !w.isotpOpen:
		c.resp <- readBytesResult{err: channel.ErrInterfaceNotOpen}
	case w.rx.completed:
		data := w.rx.data
		w.rx.reset()
		c.resp <- readBytesResult{data: data}
	case c.timeoutMs == 0:
		c.resp <- readBytesResult{err: channel.ErrBufferEmpty}
	case w.rxWaiter != nil:
		c.resp <- readBytesResult{err: channel.ErrBufferFull}
	default:
		w.rxWaiter = c.resp
		w.rxDeadline = time.Now().Add(time.Duration(effectiveTimeout(c.timeoutMs)) * time.Millisecond)
	}
}

func (w *worker) handleWriteBytes(c cmdWriteBytes) {
	if !w.isotpOpen {
		c.resp <- channel.ErrInterfaceNotOpen
		return
	}
	if w.settings == nil {
		c.resp <- channel.ErrConfiguration
		return
	}
	extID := c.extID
	if extID == nil && w.settings.ExtAddresses != nil {
		tx := w.settings.ExtAddresses.Tx
		extID = &tx
	}
	maxSingle := 7
	if extID != nil {
		maxSingle = 6
	}
	switch {
	case len(c.data) <= maxSingle:
		frame := make([]byte, 0, 8)
		if extID != nil {
			frame = append(frame, *extID)
		}
		frame = append(frame, uint8(len(c.data)))
		frame = append(frame, c.data...)
		c.resp <- w.writeFrame(c.addr, frame)
	case len(c.data) > channel.MaxIsoTpPayload:
		c.resp <- channel.ErrUnsupported
	case w.tx.transmitting:
		c.resp <- channel.ErrBufferFull
	default:
		first := w.tx.start(c.addr, extID, c.data, c.timeoutMs)
		if err := w.writeFrame(c.addr, first); err != nil {
			w.tx.reset()
			c.resp <- err
			return
		}
		w.txWaiter = c.resp
	}
}

func (w *worker) handleReadFrames(c cmdReadFrames) {
	frames := make([]channel.CanFrame, 0, c.max)
	for len(frames) < c.max {
		f, ok := w.canQueue.Pop()
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	if c.timeoutMs == 0 || len(frames) == c.max {
		c.resp <- readFramesResult{frames: frames}
		return
	}
	if w.frameWaiter != nil {
		c.resp <- readFramesResult{err: channel.ErrBufferFull}
		return
	}
	w.frameWaiter = &pendingFrameRead{
		max:      c.max,
		deadline: time.Now().Add(time.Duration(c.timeoutMs) * time.Millisecond),
		frames:   frames,
		resp:     c.resp,
	}
}

// dispatchFrame routes one received frame to the passthrough queue and,
// when it matches the configured filter, to the ISO-TP state machine.
func (w *worker) dispatchFrame(frame channel.CanFrame) {
	metrics.CanFramesRx.Inc()
	w.canQueue.Push(frame)
	if w.settings == nil || frame.ID() != w.rxID {
		return
	}
	pci := frame.Data()
	if w.settings.ExtAddresses != nil {
		if len(pci) < 2 || pci[0] != w.settings.ExtAddresses.Rx {
			return
		}
		pci = pci[1:]
	}
	if len(pci) == 0 {
		w.engine.logger.Error("frame too short for ISO-TP", "id", frame.ID())
		return
	}
	switch pci[0] & 0xF0 {
	case 0x00:
		w.engine.logger.Debug("rx single frame", "data", pci)
		w.rx.addSingle(pci)
	case 0x10:
		w.engine.logger.Debug("rx first frame", "data", pci)
		if w.rx.receiving {
			w.engine.logger.Warn("new transfer started during reassembly, discarding partial data",
				"have", len(w.rx.data), "expected", w.rx.expected)
			w.rx.reset()
		}
		w.rx.addFirst(pci)
		w.sendFlowControl()
	case 0x20:
		if !w.rx.receiving {
			w.engine.logger.Debug("consecutive frame without transfer in progress, ignored")
			return
		}
		switch w.rx.addConsecutive(pci, w.settings.BlockSize) {
		case rxSendFlowControl:
			w.sendFlowControl()
		case rxSequenceError:
			w.engine.logger.Warn("sequence counter mismatch, aborting reassembly",
				"got", pci[0]&0x0F, "want", (w.rx.seq+1)&0x0F)
			w.rx.reset()
		}
	case 0x30:
		w.engine.logger.Debug("rx flow control", "data", pci)
		if !w.tx.transmitting {
			return
		}
		if !w.tx.onFlowControl(pci) {
			w.engine.logger.Warn("peer signalled flow control overflow, aborting transmission")
			if w.txWaiter != nil {
				w.txWaiter <- channel.ErrBufferFull
				w.txWaiter = nil
			}
			w.tx.reset()
		}
	default:
		w.engine.logger.Error("invalid ISO-TP PCI byte", "pci", pci[0])
	}
}

func (w *worker) sendFlowControl() {
	data := make([]byte, 0, 8)
	if w.settings.ExtAddresses != nil {
		data = append(data, w.settings.ExtAddresses.Tx)
	}
	data = append(data, 0x30|fsClearToSend, w.settings.BlockSize, w.settings.StMin)
	if err := w.writeFrame(w.txAddr, data); err != nil {
		w.engine.logger.Error("flow control send failed", "err", err)
	}
}

// writeFrame pads per settings and writes a single frame to the bus.
func (w *worker) writeFrame(addr uint32, data []byte) error {
	if w.settings != nil && w.settings.PadFrame {
		for len(data) < 8 {
			data = append(data, channel.PadByte)
		}
	}
	ext := w.settings != nil && w.settings.CanUseExtAddr
	err := w.can.WritePackets([]channel.CanFrame{channel.NewCanFrame(addr, data, ext)}, 0)
	if err == nil {
		metrics.CanFramesTx.Inc()
	}
	return err
}

func (w *worker) checkRxWaiter() {
	if w.rxWaiter == nil {
		return
	}
	if w.rx.completed {
		data := w.rx.data
		w.rx.reset()
		w.rxWaiter <- readBytesResult{data: data}
		w.rxWaiter = nil
	} else if time.Now().After(w.rxDeadline) {
		w.rx.reset()
		w.rxWaiter <- readBytesResult{err: channel.ErrReadTimeout}
		w.rxWaiter = nil
	}
}

func (w *worker) checkFrameWaiter() {
	if w.frameWaiter == nil {
		return
	}
	p := w.frameWaiter
	for len(p.frames) < p.max {
		f, ok := w.canQueue.Pop()
		if !ok {
			break
		}
		p.frames = append(p.frames, f)
	}
	switch {
	case len(p.frames) > 0:
		p.resp <- readFramesResult{frames: p.frames}
		w.frameWaiter = nil
	case time.Now().After(p.deadline):
		if len(p.frames) > 0 {
			p.resp <- readFramesResult{frames: p.frames}
		} else {
			p.resp <- readFramesResult{err: channel.ErrReadTimeout}
		}
		w.frameWaiter = nil
	}
}

func (w *worker) serviceTx() {
	if !w.tx.transmitting {
		return
	}
	if w.tx.fcTimedOut() {
		w.engine.logger.Error("timed out waiting for flow control", "timeoutMs", w.tx.timeoutMs)
		if w.txWaiter != nil {
			w.txWaiter <- channel.ErrWriteTimeout
			w.txWaiter = nil
		}
		w.tx.reset()
		return
	}
	frame := w.tx.next()
	if frame == nil {
		return
	}
	if err := w.writeFrame(w.tx.addr, frame); err != nil {
		if w.txWaiter != nil {
			w.txWaiter <- err
			w.txWaiter = nil
		}
		w.tx.reset()
		return
	}
	if w.tx.completed {
		if w.txWaiter != nil {
			w.txWaiter <- nil
			w.txWaiter = nil
		}
		w.tx.reset()
	}
}
