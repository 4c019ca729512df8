package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullProfile = `
[isotp]
block_size = 8
st_min = 20
pad_frame = true
can_speed = 500000
can_ext_addr = false

[ecu]
send_id = 0x7E0
recv_id = 0x7E8
read_timeout_ms = 2000
write_timeout_ms = 1500

[advanced]
global_tp_id = 0x7DF
tester_present_interval_ms = 2500
tester_present_require_response = false
global_session_control = true
tp_ext_id = 0x10
command_cooldown_ms = 100
`

func TestLoadFullProfile(t *testing.T) {
	p, err := LoadProfileFromBytes([]byte(fullProfile))
	require.NoError(t, err)

	assert.Equal(t, uint8(8), p.IsoTp.BlockSize)
	assert.Equal(t, uint8(20), p.IsoTp.StMin)
	assert.True(t, p.IsoTp.PadFrame)
	assert.Equal(t, uint32(500_000), p.IsoTp.CanSpeed)
	assert.Nil(t, p.IsoTp.ExtAddresses)

	assert.Equal(t, uint32(0x7E0), p.Basic.SendID)
	assert.Equal(t, uint32(0x7E8), p.Basic.RecvID)
	assert.Equal(t, uint32(2000), p.Basic.Timeouts.ReadTimeoutMs)
	assert.Equal(t, uint32(1500), p.Basic.Timeouts.WriteTimeoutMs)

	require.NotNil(t, p.Advanced)
	assert.Equal(t, uint32(0x7DF), p.Advanced.GlobalTpID)
	assert.Equal(t, uint32(2500), p.Advanced.TesterPresentIntervalMs)
	assert.False(t, p.Advanced.TesterPresentRequireResponse)
	assert.True(t, p.Advanced.GlobalSessionControl)
	require.NotNil(t, p.Advanced.TpExtID)
	assert.Equal(t, uint8(0x10), *p.Advanced.TpExtID)
	assert.Equal(t, uint32(100), p.Advanced.CommandCooldownMs)
}

func TestMinimalProfileUsesDefaults(t *testing.T) {
	p, err := LoadProfileFromBytes([]byte("[ecu]\nsend_id = 0x7E0\nrecv_id = 0x7E8\n"))
	require.NoError(t, err)
	assert.Equal(t, uint8(8), p.IsoTp.BlockSize)
	assert.True(t, p.IsoTp.PadFrame)
	assert.Nil(t, p.Advanced)
	assert.Equal(t, uint32(2500), p.Basic.Timeouts.ReadTimeoutMs)
}

func TestExtendedAddressing(t *testing.T) {
	p, err := LoadProfileFromBytes([]byte(`
[isotp]
ext_addr_tx = 0xAA
ext_addr_rx = 0xBB

[ecu]
send_id = 0x7E0
recv_id = 0x7E8
`))
	require.NoError(t, err)
	require.NotNil(t, p.IsoTp.ExtAddresses)
	assert.Equal(t, uint8(0xAA), p.IsoTp.ExtAddresses.Tx)
	assert.Equal(t, uint8(0xBB), p.IsoTp.ExtAddresses.Rx)
}

func TestProfileErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing ecu ids", "[isotp]\nblock_size = 8\n"},
		{"bad CAN id", "[ecu]\nsend_id = banana\nrecv_id = 0x7E8\n"},
		{"id out of range", "[ecu]\nsend_id = 0xFFFFFFFF\nrecv_id = 0x7E8\n"},
		{"lonely ext address", "[isotp]\next_addr_tx = 0x10\n\n[ecu]\nsend_id = 1\nrecv_id = 2\n"},
		{"byte out of range", "[isotp]\nst_min = 0x1F4\n\n[ecu]\nsend_id = 1\nrecv_id = 2\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadProfileFromBytes([]byte(tc.content))
			assert.Error(t, err)
		})
	}
}
