package isotp

import (
	"time"

	"github.com/samsamfire/godiag/pkg/channel"
)

// Flow status values carried in the low nibble of a flow control PCI byte
const (
	fsClearToSend uint8 = 0
	fsWait        uint8 = 1
	fsOverflow    uint8 = 2
)

// Transmission state for one outgoing multi frame transfer. All access
// happens on the engine worker.
type txTransfer struct {
	addr         uint32
	extID        *uint8
	transmitting bool
	completed    bool
	awaitingFc   bool
	lastTx       time.Time
	framesTx     uint8
	data         []byte
	pos          int
	pci          uint8
	fcBs         uint8
	fcStMin      uint8
	timeoutMs    uint32
	overflowed   bool
}

func (tx *txTransfer) reset() {
	*tx = txTransfer{}
}

// start prepares the transfer and returns the first frame data.
func (tx *txTransfer) start(addr uint32, extID *uint8, data []byte, timeoutMs uint32) []byte {
	tx.addr = addr
	tx.extID = extID
	tx.data = data
	tx.timeoutMs = effectiveTimeout(timeoutMs)
	tx.transmitting = true
	tx.completed = false
	tx.awaitingFc = true
	tx.pci = 0x21
	tx.framesTx = 0
	tx.lastTx = time.Now()

	first := int(6)
	if extID != nil {
		first = 5
	}
	frame := make([]byte, 0, 8)
	if extID != nil {
		frame = append(frame, *extID)
	}
	frame = append(frame, 0x10|uint8(len(data)>>8)&0x0F, uint8(len(data)))
	frame = append(frame, data[:first]...)
	tx.pos = first
	return frame
}

// onFlowControl applies a flow control frame from the peer.
// pci is the frame data starting at the PCI byte.
// Returns false if the peer signalled an overflow and the transfer aborted.
func (tx *txTransfer) onFlowControl(pci []byte) bool {
	switch pci[0] & 0x0F {
	case fsClearToSend:
		if len(pci) >= 3 {
			tx.fcBs = pci[1]
			tx.fcStMin = pci[2]
		}
		tx.awaitingFc = false
		tx.lastTx = time.Now()
		tx.framesTx = 0
	case fsWait:
		// Peer needs more time, restart the flow control window
		tx.lastTx = time.Now()
	case fsOverflow:
		tx.overflowed = true
		return false
	}
	return true
}

// next returns the next consecutive frame to transmit, or nil if the
// transfer is waiting on flow control or separation time.
func (tx *txTransfer) next() []byte {
	if !tx.transmitting || tx.completed || tx.awaitingFc {
		return nil
	}
	if time.Since(tx.lastTx) < channel.StMinDelay(tx.fcStMin) {
		return nil
	}
	chunk := 7
	if tx.extID != nil {
		chunk = 6
	}
	if remaining := len(tx.data) - tx.pos; remaining < chunk {
		chunk = remaining
	}
	frame := make([]byte, 0, 8)
	if tx.extID != nil {
		frame = append(frame, *tx.extID)
	}
	frame = append(frame, tx.pci)
	frame = append(frame, tx.data[tx.pos:tx.pos+chunk]...)
	tx.pos += chunk
	tx.lastTx = time.Now()

	tx.pci++
	if tx.pci == 0x30 {
		tx.pci = 0x20
	}
	if tx.pos >= len(tx.data) {
		tx.completed = true
		return frame
	}
	tx.framesTx++
	if tx.fcBs != 0 && tx.framesTx >= tx.fcBs {
		tx.awaitingFc = true
		tx.framesTx = 0
	}
	return frame
}

// fcTimedOut reports whether the transfer spent more than twice its timeout
// waiting for a flow control frame.
func (tx *txTransfer) fcTimedOut() bool {
	return tx.transmitting && tx.awaitingFc &&
		time.Since(tx.lastTx) > 2*time.Duration(tx.timeoutMs)*time.Millisecond
}

func effectiveTimeout(timeoutMs uint32) uint32 {
	if timeoutMs == 0 {
		return 1
	}
	return timeoutMs
}
