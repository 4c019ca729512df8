package uds

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
	assert.Equal(t, SessionDefault, mode.ID)
	assert.False(t, mode.TesterPresentRequired)
	assert.Equal(t, "UDS", p.Name())
}

func TestClassifyRequest(t *testing.T) {
	p := New()
	t.Run("session change", func(t *testing.T) {
		action := p.ClassifyRequest([]byte{0x10, 0x03})
		set, ok := action.(protocol.SetSessionMode)
		require.True(t, ok)
		assert.Equal(t, SessionExtended, set.Mode.ID)
		assert.True(t, set.Mode.TesterPresentRequired)
	})
	t.Run("suppressed positive response bit is masked", func(t *testing.T) {
		action := p.ClassifyRequest([]byte{0x10, 0x83})
		set, ok := action.(protocol.SetSessionMode)
		require.True(t, ok)
		assert.Equal(t, SessionExtended, set.Mode.ID)
	})
	t.Run("ordinary request", func(t *testing.T) {
		action := p.ClassifyRequest([]byte{0x22, 0xF1, 0x90})
		other, ok := action.(protocol.Other)
		require.True(t, ok)
		assert.Equal(t, uint8(0x22), other.SID)
		assert.Equal(t, []byte{0xF1, 0x90}, other.Data)
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
		data, nrc := p.ParseResponse([]byte{0x62, 0xF1, 0x90, 'W'})
		assert.Nil(t, nrc)
		assert.Equal(t, []byte{0x62, 0xF1, 0x90, 'W'}, data)
	})
	t.Run("negative", func(t *testing.T) {
		_, nrc := p.ParseResponse([]byte{0x7F, 0x22, 0x31})
		require.NotNil(t, nrc)
		assert.Equal(t, uint8(0x31), nrc.Code)
		assert.Equal(t, "RequestOutOfRange", nrc.Description)
	})
}

func TestNrcCapabilities(t *testing.T) {
	p := New()
	assert.True(t, p.IsEcuBusy(0x78))
	assert.True(t, p.IsRepeatRequest(0x21))
	assert.True(t, p.IsWrongMode(0x7E))
	assert.True(t, p.IsWrongMode(0x7F))
	assert.False(t, p.IsWrongMode(0x80))
}

func TestNrcDescriptions(t *testing.T) {
	cases := map[uint8]string{
		0x11: "ServiceNotSupported",
		0x33: "SecurityAccessDenied",
		0x73: "WrongBlockSequenceCounter",
		0x78: "RequestCorrectlyReceivedResponsePending",
		0x92: "VoltageTooHigh",
		0x40: "ReservedByExtendedDataLinkSecurityDocumentation",
		0xA0: "ReservedForSpecificConditionsNotCorrect",
		0x01: "IsoSAEReserved",
	}
	for nrc, want := range cases {
		assert.Equal(t, want, NrcDescription(nrc))
	}
}

func TestRegisterSessionMode(t *testing.T) {
	p := New()
	p.RegisterSessionMode(protocol.SessionMode{ID: 0x60, TesterPresentRequired: true, Name: "Supplier"})
	mode, ok := p.LookupSessionMode(0x60)
	require.True(t, ok)
	assert.Equal(t, "Supplier", mode.Name)
}
