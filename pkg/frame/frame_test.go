package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressRoundTrip(t *testing.T) {
	cases := []Address{
		{SAPI: SAPICallControl, Command: true, TEI: 0},
		{SAPI: SAPICallControl, Command: false, TEI: 64},
		{SAPI: 16, Command: true, TEI: 127},
	}
	for _, want := range cases {
		b := EncodeAddress(want)
		got, err := DecodeAddress(b)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeAddressRejectsBadEABits(t *testing.T) {
	_, err := DecodeAddress([2]byte{0x01, 0x01})
	assert.Error(t, err)
	_, err = DecodeAddress([2]byte{0x00, 0x00})
	assert.Error(t, err)
}

func TestControlRoundTripIFrame(t *testing.T) {
	want := Control{Type: TypeI, NS: 5, NR: 3, PF: true}
	enc := EncodeControl(want)
	got, n, err := DecodeControl(enc)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, want, got)
}

func TestControlRoundTripSFrames(t *testing.T) {
	for _, typ := range []Type{TypeRR, TypeRNR, TypeREJ} {
		want := Control{Type: typ, NR: 100, PF: false}
		enc := EncodeControl(want)
		got, n, err := DecodeControl(enc)
		assert.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, want, got)
	}
}

func TestControlRoundTripUFrames(t *testing.T) {
	for _, typ := range []Type{TypeSABME, TypeUA, TypeDM, TypeDISC, TypeFRMR, TypeXID} {
		want := Control{Type: typ, PF: true}
		enc := EncodeControl(want)
		got, n, err := DecodeControl(enc)
		assert.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, want, got)
	}
}

func TestIsCommandDirectionRule(t *testing.T) {
	assert.True(t, IsCommand(RoleNetwork, true))
	assert.False(t, IsCommand(RoleNetwork, false))
	assert.False(t, IsCommand(RoleCPE, true))
	assert.True(t, IsCommand(RoleCPE, false))
}

func TestDumpDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		Dump(Address{SAPI: 0, Command: true, TEI: 0}, Control{Type: TypeSABME, PF: true})
		Dump(Address{SAPI: 0, Command: true, TEI: 0}, Control{Type: TypeI, NS: 1, NR: 2, PF: false})
	})
}
