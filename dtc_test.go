package godiag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDtcName(t *testing.T) {
	cases := []struct {
		name string
		dtc  DTC
		want string
	}{
		{"powertrain iso15031", DTC{Format: DTCFormatIso15031_6, Raw: 0x0105}, "P0105"},
		{"chassis iso15031", DTC{Format: DTCFormatIso15031_6, Raw: 0x4123}, "C0123"},
		{"body iso15031", DTC{Format: DTCFormatIso15031_6, Raw: 0x8004}, "B0004"},
		{"network iso15031", DTC{Format: DTCFormatIso15031_6, Raw: 0xC107}, "U0107"},
		{"kwp two byte hex", DTC{Format: DTCFormatKwpTwoByteHex, Raw: 0x2050}, "P2050"},
		{"unknown format falls back to decimal", DTC{Format: DTCFormatUnknown, Raw: 8276}, "8276"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.dtc.Name())
		})
	}
}

func TestDtcStatusBits(t *testing.T) {
	dtc := DTC{Status: DTCStatusPending | DTCStatusWarningIndicatorRequested}
	assert.True(t, dtc.Pending())
	assert.False(t, dtc.Confirmed())
	assert.True(t, dtc.MilOn())
}

func TestDtcFormatFromUds(t *testing.T) {
	assert.Equal(t, DTCFormatIso15031_6, DTCFormatFromUds(0x00))
	assert.Equal(t, DTCFormatIso14229_1, DTCFormatFromUds(0x01))
	assert.Equal(t, DTCFormatSaeJ1939_73, DTCFormatFromUds(0x02))
	assert.Equal(t, DTCFormatIso11992_4, DTCFormatFromUds(0x03))
	assert.Equal(t, DTCFormatUnknown, DTCFormatFromUds(0x42))
}
