package kwp2000

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samsamfire/godiag/pkg/protocol"
)

func TestBasicSessionMode(t *testing.T) {
	p := New()
	mode, ok := p.BasicSessionMode()
	require.True(t, ok)
	assert.Equal(t, SessionNormal, mode.ID)
	assert.False(t, mode.TesterPresentRequired)
	assert.Equal(t, "Normal", mode.Name)
	assert.Equal(t, "KWP2000", p.Name())
}

func TestClassifyRequest(t *testing.T) {
	p := New()
	t.Run("session change", func(t *testing.T) {
		action := p.ClassifyRequest([]byte{0x10, 0x92})
		set, ok := action.(protocol.SetSessionMode)
		require.True(t, ok)
		assert.Equal(t, SessionExtendedDiagnostics, set.Mode.ID)
		assert.Equal(t, "ExtendedDiagnostics", set.Mode.Name)
		assert.True(t, set.Mode.TesterPresentRequired)
	})
	t.Run("unknown session id becomes custom", func(t *testing.T) {
		action := p.ClassifyRequest([]byte{0x10, 0x60})
		set, ok := action.(protocol.SetSessionMode)
		require.True(t, ok)
		assert.Equal(t, uint8(0x60), set.Mode.ID)
		assert.True(t, set.Mode.TesterPresentRequired)
	})
	t.Run("ordinary request", func(t *testing.T) {
		action := p.ClassifyRequest([]byte{0x1A, 0x90})
		other, ok := action.(protocol.Other)
		require.True(t, ok)
		assert.Equal(t, uint8(0x1A), other.SID)
		assert.Equal(t, []byte{0x90}, other.Data)
	})
}

func TestBuildTesterPresent(t *testing.T) {
	p := New()
	msg, ok := p.BuildTesterPresent(true)
	require.True(t, ok)
	assert.Equal(t, []byte{0x3E, 0x00}, msg)
	msg, ok = p.BuildTesterPresent(false)
	require.True(t, ok)
	assert.Equal(t, []byte{0x3E, 0x80}, msg)
}

func TestParseResponse(t *testing.T) {
	p := New()
	t.Run("positive", func(t *testing.T) {
		data, nrc := p.ParseResponse([]byte{0x50, 0x92})
		assert.Nil(t, nrc)
		assert.Equal(t, []byte{0x50, 0x92}, data)
	})
	t.Run("negative", func(t *testing.T) {
		_, nrc := p.ParseResponse([]byte{0x7F, 0x27, 0x33})
		require.NotNil(t, nrc)
		assert.Equal(t, uint8(0x33), nrc.Code)
		assert.Equal(t, "SecurityAccessDenied", nrc.Description)
	})
	t.Run("truncated negative", func(t *testing.T) {
		_, nrc := p.ParseResponse([]byte{0x7F, 0x27})
		require.NotNil(t, nrc)
	})
}

func TestNrcCapabilities(t *testing.T) {
	p := New()
	assert.True(t, p.IsEcuBusy(0x78))
	assert.False(t, p.IsEcuBusy(0x21))
	assert.True(t, p.IsRepeatRequest(0x21))
	assert.True(t, p.IsWrongMode(0x80))
	assert.False(t, p.IsWrongMode(0x7F))
}

func TestRegisterSessionMode(t *testing.T) {
	p := New()
	p.RegisterSessionMode(protocol.SessionMode{ID: 0x93, TesterPresentRequired: true, Name: "Assembly"})
	mode, ok := p.LookupSessionMode(0x93)
	require.True(t, ok)
	assert.Equal(t, "Assembly", mode.Name)
	assert.Contains(t, p.SessionModes(), uint8(0x93))
}

func TestNrcDescriptions(t *testing.T) {
	cases := map[uint8]string{
		0x10: "GeneralReject",
		0x21: "BusyRepeatRequest",
		0x78: "RequestCorrectlyReceivedResponsePending",
		0x80: "ServiceNotSupportedInActiveSession",
		0x9A: "DataDecompressionFailed",
		0xA0: "EcuNotResponding",
		0x95: "ReservedDCX",
		0x13: "ReservedISO",
	}
	for nrc, want := range cases {
		assert.Equal(t, want, NrcDescription(nrc))
	}
}
