package virtual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/godiag/pkg/channel"
	"github.com/samsamfire/godiag/pkg/hardware"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a := hub.NewChannel()
	b := hub.NewChannel()
	require.NoError(t, a.Open())
	require.NoError(t, b.Open())

	frame := channel.NewCanFrame(0x123, []byte{1, 2, 3}, false)
	require.NoError(t, a.WritePackets([]channel.CanFrame{frame}, 0))

	frames, err := b.ReadPackets(1, 1000)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint32(0x123), frames[0].ID())

	// Sender does not receive its own frame by default
	_, err = a.ReadPackets(1, 50)
	assert.ErrorIs(t, err, channel.ErrReadTimeout)
}

func TestReceiveOwn(t *testing.T) {
	hub := NewHub()
	a := hub.NewChannel()
	a.SetReceiveOwn(true)
	require.NoError(t, a.Open())
	require.NoError(t, a.WritePackets([]channel.CanFrame{
		channel.NewCanFrame(0x42, []byte{0xFF}, false),
	}, 0))
	frames, err := a.ReadPackets(1, 1000)
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestClosedChannelRejectsIO(t *testing.T) {
	hub := NewHub()
	a := hub.NewChannel()
	err := a.WritePackets([]channel.CanFrame{channel.NewCanFrame(1, nil, false)}, 0)
	assert.ErrorIs(t, err, channel.ErrInterfaceNotOpen)
	_, err = a.ReadPackets(1, 0)
	assert.ErrorIs(t, err, channel.ErrInterfaceNotOpen)
}

func TestFailingChannel(t *testing.T) {
	hub := NewHub()
	a := hub.NewChannel()
	require.NoError(t, a.Open())
	a.SetFailing(true)
	err := a.WritePackets([]channel.CanFrame{channel.NewCanFrame(1, nil, false)}, 0)
	var hwErr *channel.HardwareError
	assert.ErrorAs(t, err, &hwErr)
}

func TestScanner(t *testing.T) {
	scanner := NewScanner(NewHub(), nil)
	devices := scanner.ListDevices()
	require.Len(t, devices, 1)
	assert.Equal(t, "virtual0", devices[0].Name)
	assert.Equal(t, hardware.IsoTpEmulated, devices[0].Capabilities.IsoTp)

	t.Run("open by name", func(t *testing.T) {
		dev, err := scanner.OpenDeviceByName("virtual0")
		require.NoError(t, err)
		assert.True(t, dev.IsConnected())
		_, err = dev.CanChannel()
		assert.NoError(t, err)
		require.NoError(t, dev.Close())
		assert.False(t, dev.IsConnected())
	})
	t.Run("unknown name", func(t *testing.T) {
		_, err := scanner.OpenDeviceByName("can0")
		assert.ErrorIs(t, err, hardware.ErrDeviceNotFound)
	})
	t.Run("open by index", func(t *testing.T) {
		_, err := scanner.OpenDeviceByIndex(0)
		assert.NoError(t, err)
		_, err = scanner.OpenDeviceByIndex(3)
		assert.ErrorIs(t, err, hardware.ErrDeviceNotFound)
	})
	t.Run("force native fails", func(t *testing.T) {
		dev, err := scanner.OpenDeviceByIndex(0)
		require.NoError(t, err)
		_, err = dev.IsoTpChannel(true)
		assert.ErrorIs(t, err, hardware.ErrChannelNotSupported)
	})
	t.Run("emulated isotp channel", func(t *testing.T) {
		dev, err := scanner.OpenDeviceByIndex(0)
		require.NoError(t, err)
		ch, err := dev.IsoTpChannel(false)
		require.NoError(t, err)
		require.NoError(t, ch.SetIsoTpCfg(channel.DefaultIsoTpSettings()))
		require.NoError(t, ch.SetIds(0x7E0, 0x7E8))
		assert.NoError(t, ch.Open())
		assert.NoError(t, ch.Close())
	})
}
