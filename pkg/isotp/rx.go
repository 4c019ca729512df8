package isotp

import (
	"time"
)

// Reassembly state for one incoming transfer. All access happens on the
// engine worker.
type rxTransfer struct {
	lastRx     time.Time
	receiving  bool
	completed  bool
	seq        uint8
	framesRx   uint8
	expected   int
	data       []byte
	extAddress bool
}

func (rx *rxTransfer) reset() {
	rx.data = nil
	rx.expected = 0
	rx.receiving = false
	rx.completed = false
	rx.seq = 0
	rx.framesRx = 0
}

// addSingle completes the transfer from one single frame.
// pci is the frame data starting at the PCI byte.
func (rx *rxTransfer) addSingle(pci []byte) {
	length := int(pci[0] & 0x0F)
	if length > len(pci)-1 {
		length = len(pci) - 1
	}
	rx.data = append([]byte{}, pci[1:1+length]...)
	rx.receiving = false
	rx.completed = true
}

// addFirst begins a multi frame transfer from a first frame.
func (rx *rxTransfer) addFirst(pci []byte) {
	rx.expected = int(pci[0]&0x0F)<<8 | int(pci[1])
	rx.data = append([]byte{}, pci[2:]...)
	rx.receiving = true
	rx.completed = false
	rx.seq = 0
	rx.framesRx = 0
	rx.lastRx = time.Now()
}

type rxAction uint8

const (
	rxNone rxAction = iota
	rxCompleted
	rxSendFlowControl
	rxSequenceError
)

// addConsecutive appends a consecutive frame. bs is the block size this side
// advertised in its last flow control.
func (rx *rxTransfer) addConsecutive(pci []byte, bs uint8) rxAction {
	seq := pci[0] & 0x0F
	want := (rx.seq + 1) & 0x0F
	if seq != want {
		return rxSequenceError
	}
	rx.seq = seq
	remaining := rx.expected - len(rx.data)
	if remaining > len(pci)-1 {
		remaining = len(pci) - 1
	}
	rx.data = append(rx.data, pci[1:1+remaining]...)
	rx.framesRx++
	rx.lastRx = time.Now()
	if len(rx.data) >= rx.expected {
		rx.completed = true
		rx.receiving = false
		return rxCompleted
	}
	if bs != 0 && rx.framesRx >= bs {
		rx.framesRx = 0
		return rxSendFlowControl
	}
	return rxNone
}
