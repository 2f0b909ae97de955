package device

import (
	"encoding/binary"
	"math"
)

// DataType is the interpretation applied to a RegisterValue's raw bytes.
type DataType int

const (
	DataTypeUnknown DataType = iota
	Bool
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
	StringType
	Binary
)

// RegisterValue carries raw big-endian bytes plus a DataType tag, mirroring
// the wire representation of both Modbus registers and ECHONET EDT fields.
type RegisterValue struct {
	Type DataType
	Data []byte
}

func NewBoolValue(v bool) RegisterValue {
	b := byte(0)
	if v {
		b = 1
	}
	return RegisterValue{Type: Bool, Data: []byte{b}}
}

func NewUint16Value(v uint16) RegisterValue {
	data := make([]byte, 2)
	binary.BigEndian.PutUint16(data, v)
	return RegisterValue{Type: Uint16, Data: data}
}

func NewInt16Value(v int16) RegisterValue {
	return NewUint16Value(uint16(v)).withType(Int16)
}

func NewUint32Value(v uint32) RegisterValue {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, v)
	return RegisterValue{Type: Uint32, Data: data}
}

func NewInt32Value(v int32) RegisterValue {
	return NewUint32Value(uint32(v)).withType(Int32)
}

func NewUint64Value(v uint64) RegisterValue {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, v)
	return RegisterValue{Type: Uint64, Data: data}
}

func NewInt64Value(v int64) RegisterValue {
	return NewUint64Value(uint64(v)).withType(Int64)
}

func NewFloat32Value(v float32) RegisterValue {
	return NewUint32Value(math.Float32bits(v)).withType(Float32)
}

func NewFloat64Value(v float64) RegisterValue {
	return NewUint64Value(math.Float64bits(v)).withType(Float64)
}

func NewStringValue(v string) RegisterValue {
	return RegisterValue{Type: StringType, Data: []byte(v)}
}

func NewBinaryValue(v []byte) RegisterValue {
	data := make([]byte, len(v))
	copy(data, v)
	return RegisterValue{Type: Binary, Data: data}
}

func (v RegisterValue) withType(t DataType) RegisterValue {
	v.Type = t
	return v
}

func (v RegisterValue) Bool() bool {
	return len(v.Data) > 0 && v.Data[0] != 0
}

func (v RegisterValue) Uint16() uint16 {
	if len(v.Data) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(v.Data)
}

func (v RegisterValue) Int16() int16 {
	return int16(v.Uint16())
}

func (v RegisterValue) Uint32() uint32 {
	if len(v.Data) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(v.Data)
}

func (v RegisterValue) Int32() int32 {
	return int32(v.Uint32())
}

func (v RegisterValue) Uint64() uint64 {
	if len(v.Data) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v.Data)
}

func (v RegisterValue) Int64() int64 {
	return int64(v.Uint64())
}

func (v RegisterValue) Float32() float32 {
	return math.Float32frombits(v.Uint32())
}

func (v RegisterValue) Float64() float64 {
	return math.Float64frombits(v.Uint64())
}

func (v RegisterValue) String() string {
	return string(v.Data)
}

func (v RegisterValue) Binary() []byte {
	out := make([]byte, len(v.Data))
	copy(out, v.Data)
	return out
}
