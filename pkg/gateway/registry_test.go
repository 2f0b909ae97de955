package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

func rtuDeviceConfig(id, templateID string) config.DeviceConfig {
	return config.DeviceConfig{
		ID:         id,
		Protocol:   "modbus_rtu",
		TemplateID: templateID,
		ModbusRtu: &config.ModbusRtuAddressConfig{
			Port: "/dev/ttyUSB0", BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N", UnitID: 1,
		},
	}
}

func sampleTemplate(name string) config.MappingTemplateConfig {
	return config.MappingTemplateConfig{
		Name: name,
		Variables: []config.VariableMappingConfig{
			{Name: "power", DataType: "u16", Scale: 0.1},
		},
	}
}

func TestNew_BuildsOneAdapterPerProtocol(t *testing.T) {
	devices := []config.DeviceConfig{rtuDeviceConfig("meter-1", "basic"), rtuDeviceConfig("meter-2", "basic")}
	r, err := New(devices, []config.MappingTemplateConfig{sampleTemplate("basic")})
	require.NoError(t, err)

	a1, ok := r.AdapterFor("meter-1")
	require.True(t, ok)
	a2, ok := r.AdapterFor("meter-2")
	require.True(t, ok)
	assert.Same(t, a1, a2)
}

func TestNew_UnknownTemplateRejected(t *testing.T) {
	devices := []config.DeviceConfig{rtuDeviceConfig("meter-1", "missing")}
	_, err := New(devices, []config.MappingTemplateConfig{sampleTemplate("basic")})
	assert.Error(t, err)
}

func TestNew_MissingAddressBlockRejected(t *testing.T) {
	devices := []config.DeviceConfig{{ID: "meter-1", Protocol: "modbus_rtu", TemplateID: "basic"}}
	_, err := New(devices, []config.MappingTemplateConfig{sampleTemplate("basic")})
	assert.Error(t, err)
}

func TestNew_UnsupportedProtocolRejected(t *testing.T) {
	devices := []config.DeviceConfig{{ID: "meter-1", Protocol: "zigbee", TemplateID: "basic"}}
	_, err := New(devices, []config.MappingTemplateConfig{sampleTemplate("basic")})
	assert.Error(t, err)
}

func TestTranslatorFor_ReturnsBoundTemplate(t *testing.T) {
	devices := []config.DeviceConfig{rtuDeviceConfig("meter-1", "basic")}
	r, err := New(devices, []config.MappingTemplateConfig{sampleTemplate("basic")})
	require.NoError(t, err)

	tr, ok := r.TranslatorFor("meter-1")
	require.True(t, ok)

	data, err := tr.ToDevice("power", float64(100))
	require.NoError(t, err)
	assert.Len(t, data, 2)
}

func TestAdapterFor_UnknownDeviceNotFound(t *testing.T) {
	r, err := New(nil, nil)
	require.NoError(t, err)

	_, ok := r.AdapterFor("nope")
	assert.False(t, ok)
}

func TestReadVariable_UnregisteredDeviceErrors(t *testing.T) {
	r, err := New(nil, nil)
	require.NoError(t, err)

	_, err = r.ReadVariable("nope", "power", device.RegisterAddress{})
	assert.Error(t, err)
}

func TestWriteVariable_UnregisteredDeviceErrors(t *testing.T) {
	r, err := New(nil, nil)
	require.NoError(t, err)

	err = r.WriteVariable("nope", "power", device.RegisterAddress{}, float64(1))
	assert.Error(t, err)
}
