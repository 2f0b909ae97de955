package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppgw/ocpp-gateway/pkg/config"
)

func templateWith(vars ...config.VariableMappingConfig) config.MappingTemplateConfig {
	return config.MappingTemplateConfig{Name: "test", Variables: vars}
}

func TestTranslator_ToDevice_UnknownVariable(t *testing.T) {
	tr := New(templateWith())
	_, err := tr.ToDevice("missing", 1)
	assert.Error(t, err)
}

func TestTranslator_ToDevice_ReadOnlyRejected(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "v", DataType: "u16", ReadOnly: true}))
	_, err := tr.ToDevice("v", 1)
	assert.Error(t, err)
}

func TestTranslator_Uint16_RoundTripWithScale(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "power", DataType: "u16", Scale: 0.1}))

	data, err := tr.ToDevice("power", float64(230))
	require.NoError(t, err)
	require.Len(t, data, 2)

	value, err := tr.ToOcpp("power", data)
	require.NoError(t, err)
	assert.InDelta(t, 230.0, value.(float64), 0.01)
}

func TestTranslator_Int32_Negative(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "temp", DataType: "i32", Scale: 1}))

	data, err := tr.ToDevice("temp", float64(-5000))
	require.NoError(t, err)

	value, err := tr.ToOcpp("temp", data)
	require.NoError(t, err)
	assert.Equal(t, -5000.0, value)
}

func TestTranslator_Float32_RoundTrip(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "v", DataType: "f32", Scale: 1}))

	data, err := tr.ToDevice("v", 3.5)
	require.NoError(t, err)

	value, err := tr.ToOcpp("v", data)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, value.(float64), 0.001)
}

func TestTranslator_Bool_RoundTrip(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "flag", DataType: "bool"}))

	data, err := tr.ToDevice("flag", true)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	value, err := tr.ToOcpp("flag", data)
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestTranslator_String_RoundTrip(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "label", DataType: "string"}))

	data, err := tr.ToDevice("label", "hello")
	require.NoError(t, err)

	value, err := tr.ToOcpp("label", data)
	require.NoError(t, err)
	assert.Equal(t, "hello", value)
}

func TestTranslator_Enum_RoundTrip(t *testing.T) {
	enumMap := map[int]string{0: "Available", 1: "Charging", 2: "Faulted"}
	tr := New(templateWith(config.VariableMappingConfig{Name: "status", DataType: "enum", EnumMapping: enumMap}))

	data, err := tr.ToDevice("status", "Charging")
	require.NoError(t, err)

	value, err := tr.ToOcpp("status", data)
	require.NoError(t, err)
	assert.Equal(t, "Charging", value)
}

func TestTranslator_Enum_UnknownValue(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "status", DataType: "enum", EnumMapping: map[int]string{0: "Available"}}))

	_, err := tr.ToDevice("status", "Unknown")
	assert.Error(t, err)

	_, err = tr.ToOcpp("status", []byte{0x00, 0x09})
	assert.Error(t, err)
}

func TestTranslator_ToDevice_WrongTypeRejected(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "v", DataType: "f32"}))
	_, err := tr.ToDevice("v", "not a number")
	assert.Error(t, err)
}

func TestTranslator_ToOcpp_DataTooShort(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "v", DataType: "u32"}))
	_, err := tr.ToOcpp("v", []byte{0x00, 0x01})
	assert.Error(t, err)
}

func TestTranslator_Binary_PassThrough(t *testing.T) {
	tr := New(templateWith(config.VariableMappingConfig{Name: "raw", DataType: "binary"}))
	data, err := tr.ToDevice("raw", []byte{0xDE, 0xAD, 0xBE, 0xEF})
	require.NoError(t, err)

	value, err := tr.ToOcpp("raw", data)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, value)
}

func TestRoundHalfToEven_TiesToEven(t *testing.T) {
	assert.Equal(t, 2.0, roundHalfToEven(2.5))
	assert.Equal(t, 4.0, roundHalfToEven(3.5))
}
