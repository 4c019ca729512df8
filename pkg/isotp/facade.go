package isotp

import (
	"github.com/samsamfire/godiag/pkg/channel"
)

// IsoTpFacade is the payload side of the engine. It implements
// [channel.IsoTpChannel].
type IsoTpFacade struct {
	engine *Engine
}

// Release drops this facade's reference on the engine. The engine stops once
// every facade has been released.
func (f *IsoTpFacade) Release() {
	f.engine.release()
}

func (f *IsoTpFacade) Open() error {
	return f.roundTrip(func(resp chan error) any { return cmdOpen{resp: resp} })
}

func (f *IsoTpFacade) Close() error {
	return f.roundTrip(func(resp chan error) any { return cmdClose{resp: resp} })
}

func (f *IsoTpFacade) SetIds(send uint32, recv uint32) error {
	return f.roundTrip(func(resp chan error) any { return cmdSetIds{send: send, recv: recv, resp: resp} })
}

func (f *IsoTpFacade) SetIsoTpCfg(cfg channel.IsoTpSettings) error {
	return f.roundTrip(func(resp chan error) any { return cmdSetCfg{cfg: cfg, resp: resp} })
}

func (f *IsoTpFacade) ReadBytes(timeoutMs uint32) ([]byte, error) {
	resp := make(chan readBytesResult, 1)
	if !f.engine.sendIsoTp(cmdReadBytes{timeoutMs: timeoutMs, resp: resp}) {
		return nil, channel.ErrInterfaceNotOpen
	}
	res := <-resp
	return res.data, res.err
}

func (f *IsoTpFacade) WriteBytes(addr uint32, extID *uint8, payload []byte, timeoutMs uint32) error {
	resp := make(chan error, 1)
	data := append([]byte{}, payload...)
	if !f.engine.sendIsoTp(cmdWriteBytes{addr: addr, extID: extID, data: data, timeoutMs: timeoutMs, resp: resp}) {
		return channel.ErrInterfaceNotOpen
	}
	return <-resp
}

func (f *IsoTpFacade) ClearRx() error {
	return f.roundTrip(func(resp chan error) any { return cmdClearRx{resp: resp} })
}

func (f *IsoTpFacade) ClearTx() error {
	return f.roundTrip(func(resp chan error) any { return cmdClearTx{resp: resp} })
}

func (f *IsoTpFacade) roundTrip(build func(chan error) any) error {
	resp := make(chan error, 1)
	if !f.engine.sendIsoTp(build(resp)) {
		return channel.ErrInterfaceNotOpen
	}
	return <-resp
}

// CanFacade is the passthrough packet side of the engine. It implements
// [channel.CanChannel].
type CanFacade struct {
	engine *Engine
}

// Release drops this facade's reference on the engine.
func (f *CanFacade) Release() {
	f.engine.release()
}

func (f *CanFacade) Open() error {
	return f.roundTrip(func(resp chan error) any { return cmdCanOpen{resp: resp} })
}

func (f *CanFacade) Close() error {
	return f.roundTrip(func(resp chan error) any { return cmdCanClose{resp: resp} })
}

func (f *CanFacade) SetCanCfg(baud uint32, useExtended bool) error {
	return f.roundTrip(func(resp chan error) any { return cmdCanCfg{baud: baud, ext: useExtended, resp: resp} })
}

func (f *CanFacade) WritePackets(frames []channel.CanFrame, timeoutMs uint32) error {
	resp := make(chan error, 1)
	if !f.engine.sendCan(cmdWriteFrames{frames: frames, resp: resp}) {
		return channel.ErrInterfaceNotOpen
	}
	return <-resp
}

func (f *CanFacade) ReadPackets(max int, timeoutMs uint32) ([]channel.CanFrame, error) {
	resp := make(chan readFramesResult, 1)
	if !f.engine.sendCan(cmdReadFrames{max: max, timeoutMs: timeoutMs, resp: resp}) {
		return nil, channel.ErrInterfaceNotOpen
	}
	res := <-resp
	return res.frames, res.err
}

func (f *CanFacade) ClearRx() error {
	return f.roundTrip(func(resp chan error) any { return cmdCanClearRx{resp: resp} })
}

func (f *CanFacade) ClearTx() error {
	return nil
}

func (f *CanFacade) roundTrip(build func(chan error) any) error {
	resp := make(chan error, 1)
	if !f.engine.sendCan(build(resp)) {
		return channel.ErrInterfaceNotOpen
	}
	return <-resp
}

var (
	_ channel.IsoTpChannel = (*IsoTpFacade)(nil)
	_ channel.CanChannel   = (*CanFacade)(nil)
)
