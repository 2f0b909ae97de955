package modbus

import (
	"encoding/binary"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

// registersToValue packs raw big-endian register words into a
// device.RegisterValue tagged with dataType.
func registersToValue(words []uint16, dataType device.DataType) device.RegisterValue {
	data := make([]byte, len(words)*2)
	for i, w := range words {
		binary.BigEndian.PutUint16(data[i*2:], w)
	}
	return device.RegisterValue{Type: dataType, Data: data}
}

// valueToRegisters unpacks a device.RegisterValue's big-endian bytes into
// 16-bit words suitable for WriteMultipleRegisters.
func valueToRegisters(value device.RegisterValue) []uint16 {
	n := (len(value.Data) + 1) / 2
	words := make([]uint16, n)
	for i := 0; i < n; i++ {
		hi := value.Data[i*2]
		var lo byte
		if i*2+1 < len(value.Data) {
			lo = value.Data[i*2+1]
		}
		words[i] = uint16(hi)<<8 | uint16(lo)
	}
	return words
}

// valueToCoilValue converts a Bool RegisterValue into the byte
// WriteSingleCoil expects (0xFF00 for true, 0x0000 for false, per the
// Modbus spec).
func valueToCoilValue(value device.RegisterValue) uint16 {
	if value.Bool() {
		return 0xFF00
	}
	return 0x0000
}
