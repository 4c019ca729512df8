package uds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	godiag "github.com/samsamfire/godiag"
)

func TestDecodeDTCCount(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		count, err := DecodeDTCCount([]byte{0x59, 0x01, 0xFF, 0x01, 0x00, 0x0C})
		require.NoError(t, err)
		assert.Equal(t, uint8(0xFF), count.StatusAvailabilityMask)
		assert.Equal(t, godiag.DTCFormatIso14229_1, count.Format)
		assert.Equal(t, uint16(12), count.Count)
	})
	t.Run("wrong service id", func(t *testing.T) {
		_, err := DecodeDTCCount([]byte{0x62, 0x01, 0xFF, 0x01, 0x00, 0x0C})
		assert.ErrorIs(t, err, godiag.ErrWrongMessage)
	})
	t.Run("wrong sub function", func(t *testing.T) {
		_, err := DecodeDTCCount([]byte{0x59, 0x02, 0xFF})
		assert.ErrorIs(t, err, godiag.ErrWrongMessage)
	})
	t.Run("truncated", func(t *testing.T) {
		_, err := DecodeDTCCount([]byte{0x59, 0x01, 0xFF, 0x01})
		assert.ErrorIs(t, err, godiag.ErrInvalidResponseLength)
	})
}

func TestDecodeDTCsByStatusMask(t *testing.T) {
	t.Run("two codes with status", func(t *testing.T) {
		resp := []byte{
			0x59, 0x02, 0xFF,
			0x01, 0x05, 0x13, 0x2F,
			0xC1, 0x07, 0x00, 0x08,
		}
		dtcs, err := DecodeDTCsByStatusMask(resp)
		require.NoError(t, err)
		require.Len(t, dtcs, 2)
		assert.Equal(t, godiag.DTCFormatIso14229_1, dtcs[0].Format)
		assert.Equal(t, uint32(0x010513), dtcs[0].Raw)
		assert.Equal(t, uint8(0x2F), dtcs[0].Status)
		assert.True(t, dtcs[0].Confirmed())
		assert.False(t, dtcs[0].MilOn())
		assert.Equal(t, uint32(0xC10700), dtcs[1].Raw)
		assert.True(t, dtcs[1].Confirmed())
		assert.False(t, dtcs[1].Pending())
	})
	t.Run("no codes", func(t *testing.T) {
		dtcs, err := DecodeDTCsByStatusMask([]byte{0x59, 0x02, 0xFF})
		require.NoError(t, err)
		assert.Empty(t, dtcs)
	})
	t.Run("wrong service id", func(t *testing.T) {
		_, err := DecodeDTCsByStatusMask([]byte{0x62, 0x02, 0xFF})
		assert.ErrorIs(t, err, godiag.ErrWrongMessage)
	})
	t.Run("partial record", func(t *testing.T) {
		_, err := DecodeDTCsByStatusMask([]byte{0x59, 0x02, 0xFF, 0x01, 0x05})
		assert.ErrorIs(t, err, godiag.ErrInvalidResponseLength)
	})
}
