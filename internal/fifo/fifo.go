// Circular frame buffer used by the software ISO-TP engine for its
// passthrough CAN queue.
package fifo

import "github.com/samsamfire/godiag/pkg/channel"

type Fifo struct {
	buffer   []channel.CanFrame
	writePos int
	readPos  int
	dropped  int
}

func NewFifo(size int) *Fifo {
	return &Fifo{buffer: make([]channel.CanFrame, size+1)}
}

func (f *Fifo) Reset() {
	f.readPos = 0
	f.writePos = 0
}

func (f *Fifo) Space() int {
	left := f.readPos - f.writePos - 1
	if left < 0 {
		left += len(f.buffer)
	}
	return left
}

func (f *Fifo) Occupied() int {
	occupied := f.writePos - f.readPos
	if occupied < 0 {
		occupied += len(f.buffer)
	}
	return occupied
}

// Push appends a frame, discarding the oldest frame when full.
func (f *Fifo) Push(frame channel.CanFrame) {
	if f.Space() == 0 {
		// Drop oldest
		f.readPos++
		if f.readPos == len(f.buffer) {
			f.readPos = 0
		}
		f.dropped++
	}
	f.buffer[f.writePos] = frame
	f.writePos++
	if f.writePos == len(f.buffer) {
		f.writePos = 0
	}
}

// Pop removes and returns the oldest frame.
func (f *Fifo) Pop() (channel.CanFrame, bool) {
	if f.Occupied() == 0 {
		return channel.CanFrame{}, false
	}
	frame := f.buffer[f.readPos]
	f.readPos++
	if f.readPos == len(f.buffer) {
		f.readPos = 0
	}
	return frame, true
}

// Dropped returns the number of frames discarded because the buffer was full.
func (f *Fifo) Dropped() int {
	return f.dropped
}
