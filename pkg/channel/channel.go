// Package channel defines the logical communication channels used to talk
// to an ECU: an unfiltered packet channel for raw CAN frames, and a payload
// channel for complete diagnostic messages (ISO-TP).
package channel

// A PacketChannel sends and receives individual CAN frames. The channel is
// unfiltered, all bus traffic may be visible and filtering is done in
// software.
type PacketChannel interface {
	// Open the channel. Configuration must happen before opening.
	Open() error
	// Close the channel. No more traffic can be read or written afterwards.
	Close() error
	// WritePackets writes frames to the raw interface. A timeout of 0 means
	// fire and forget.
	WritePackets(frames []CanFrame, timeoutMs uint32) error
	// ReadPackets reads up to max frames. Returns as soon as any frame is
	// available, unless timeoutMs is 0 in which case it returns immediately
	// with whatever is buffered.
	ReadPackets(max int, timeoutMs uint32) ([]CanFrame, error)
	// ClearRx wipes all pending frames from the receive queue.
	ClearRx() error
	// ClearTx wipes all frames queued for transmission.
	ClearTx() error
}

// A CanChannel is a packet channel with CAN specific configuration.
type CanChannel interface {
	PacketChannel
	// SetCanCfg sets baud rate and addressing mode. Must be called before Open.
	SetCanCfg(baud uint32, useExtended bool) error
}

// A PayloadChannel is a bi-directional link carrying complete diagnostic
// payloads to one specific ECU. Protocol bytes (PCI, addressing) are handled
// by the implementation, callers only see the payload.
type PayloadChannel interface {
	// Open the channel. It is only called after SetIds and any other
	// configuration functions.
	Open() error
	// Close and destroy the channel.
	Close() error
	// SetIds configures the request id (ECU listens on this) and the
	// response id (ECU answers with this).
	SetIds(send uint32, recv uint32) error
	// ReadBytes reads one reassembled payload. A timeout of 0 returns
	// immediately with whatever completed payload is buffered,
	// or ErrBufferEmpty.
	ReadBytes(timeoutMs uint32) ([]byte, error)
	// WriteBytes writes one payload to addr. extID is an optional extended
	// address byte prefixed to every frame. A timeout of 0 writes without
	// confirming delivery.
	WriteBytes(addr uint32, extID *uint8, payload []byte, timeoutMs uint32) error
	// ClearRx wipes any partially or fully received payloads.
	ClearRx() error
	// ClearTx wipes any payload queued for transmission.
	ClearTx() error
}

// An IsoTpChannel is a payload channel implemented over ISO 15765-2.
type IsoTpChannel interface {
	PayloadChannel
	// SetIsoTpCfg sets the ISO-TP parameters for the channel.
	SetIsoTpCfg(cfg IsoTpSettings) error
}

// ReadWriteBytes writes a payload and then listens for the response.
func ReadWriteBytes(ch PayloadChannel, addr uint32, extID *uint8, payload []byte, writeTimeoutMs, readTimeoutMs uint32) ([]byte, error) {
	if err := ch.WriteBytes(addr, extID, payload, writeTimeoutMs); err != nil {
		return nil, err
	}
	return ch.ReadBytes(readTimeoutMs)
}
