package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

func TestRegistersToValue_Uint32FromTwoWords(t *testing.T) {
	v := registersToValue([]uint16{0x1122, 0x3344}, device.Uint32)
	assert.Equal(t, uint32(0x11223344), v.Uint32())
}

func TestValueToRegisters_RoundTrip(t *testing.T) {
	original := device.NewUint32Value(0xAABBCCDD)
	words := valueToRegisters(original)
	assert.Equal(t, []uint16{0xAABB, 0xCCDD}, words)

	back := registersToValue(words, device.Uint32)
	assert.Equal(t, uint32(0xAABBCCDD), back.Uint32())
}

func TestExtractBits_SingleBitAtOffset(t *testing.T) {
	packed := []byte{0b00000100} // bit 2 set
	assert.Equal(t, []byte{0x01}, extractBits(packed, 2, 1))
	assert.Equal(t, []byte{0x00}, extractBits(packed, 0, 1))
}

func TestValueToCoilValue(t *testing.T) {
	assert.Equal(t, uint16(0xFF00), valueToCoilValue(device.NewBoolValue(true)))
	assert.Equal(t, uint16(0x0000), valueToCoilValue(device.NewBoolValue(false)))
}
