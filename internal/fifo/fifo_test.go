package fifo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/samsamfire/godiag/pkg/channel"
)

func frameWithID(id uint32) channel.CanFrame {
	return channel.NewCanFrame(id, []byte{byte(id)}, false)
}

func TestPushPop(t *testing.T) {
	f := NewFifo(4)
	assert.Equal(t, 0, f.Occupied())
	assert.Equal(t, 4, f.Space())

	f.Push(frameWithID(1))
	f.Push(frameWithID(2))
	assert.Equal(t, 2, f.Occupied())

	frame, ok := f.Pop()
	assert.True(t, ok)
	assert.Equal(t, uint32(1), frame.ID())
	frame, ok = f.Pop()
	assert.True(t, ok)
	assert.Equal(t, uint32(2), frame.ID())
	_, ok = f.Pop()
	assert.False(t, ok)
}

func TestDropOldestWhenFull(t *testing.T) {
	f := NewFifo(3)
	for id := uint32(1); id <= 5; id++ {
		f.Push(frameWithID(id))
	}
	assert.Equal(t, 3, f.Occupied())
	assert.Equal(t, 2, f.Dropped())

	frame, ok := f.Pop()
	assert.True(t, ok)
	assert.Equal(t, uint32(3), frame.ID())
}

func TestReset(t *testing.T) {
	f := NewFifo(3)
	f.Push(frameWithID(1))
	f.Reset()
	assert.Equal(t, 0, f.Occupied())
	_, ok := f.Pop()
	assert.False(t, ok)
}

func TestWrapAround(t *testing.T) {
	f := NewFifo(3)
	for round := 0; round < 10; round++ {
		f.Push(frameWithID(uint32(round)))
		frame, ok := f.Pop()
		assert.True(t, ok)
		assert.Equal(t, uint32(round), frame.ID())
	}
}
