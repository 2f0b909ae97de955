package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterValue_Uint16RoundTrip(t *testing.T) {
	v := NewUint16Value(0xABCD)
	assert.Equal(t, uint16(0xABCD), v.Uint16())
	assert.Equal(t, []byte{0xAB, 0xCD}, v.Data)
}

func TestRegisterValue_Int32RoundTrip(t *testing.T) {
	v := NewInt32Value(-12345)
	assert.Equal(t, int32(-12345), v.Int32())
}

func TestRegisterValue_Float32RoundTrip(t *testing.T) {
	v := NewFloat32Value(3.5)
	assert.InDelta(t, 3.5, float64(v.Float32()), 0.0001)
}

func TestRegisterValue_BoolRoundTrip(t *testing.T) {
	assert.True(t, NewBoolValue(true).Bool())
	assert.False(t, NewBoolValue(false).Bool())
}

func TestRegisterValue_U32FromTwoU16Registers(t *testing.T) {
	high := NewUint16Value(0x1122)
	low := NewUint16Value(0x3344)
	combined := NewUint32Value(uint32(high.Uint16())<<16 | uint32(low.Uint16()))
	assert.Equal(t, uint32(0x11223344), combined.Uint32())
}
