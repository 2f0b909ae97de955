// Package gateway provides the composition point between configured
// devices and the protocol adapters that talk to them (§C.3): a thin
// facade so callers needn't know which protocol backs a device id.
package gateway

import (
	"fmt"

	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/ocppgw/ocpp-gateway/pkg/device"
	"github.com/ocppgw/ocpp-gateway/pkg/device/echonet"
	"github.com/ocppgw/ocpp-gateway/pkg/device/modbus"
	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
	"github.com/ocppgw/ocpp-gateway/pkg/translate"
)

// DeviceRegistry owns one adapter instance per protocol in use and routes
// device ids to the adapter and translator that handle them.
type DeviceRegistry struct {
	adapters map[device.Protocol]device.Adapter
	owner    map[string]device.Protocol
	template map[string]*translate.Translator
}

// New builds a DeviceRegistry from the configured devices and mapping
// templates, constructing one adapter per protocol actually in use and
// registering every device with it.
func New(devices []config.DeviceConfig, templates []config.MappingTemplateConfig) (*DeviceRegistry, error) {
	templateByName := make(map[string]config.MappingTemplateConfig, len(templates))
	for _, t := range templates {
		templateByName[t.Name] = t
	}

	r := &DeviceRegistry{
		adapters: make(map[device.Protocol]device.Adapter),
		owner:    make(map[string]device.Protocol),
		template: make(map[string]*translate.Translator),
	}

	for _, d := range devices {
		protocol := device.ParseProtocol(d.Protocol)
		adapter, err := r.adapterFor(protocol)
		if err != nil {
			return nil, gwerr.Wrap(gwerr.ConfigValidation, "gateway.New", "failed to build adapter for device "+d.ID, err)
		}

		tmpl, ok := templateByName[d.TemplateID]
		if !ok {
			return nil, gwerr.NewConfigValidation("gateway.New", fmt.Sprintf("device %s references unknown mapping template %q", d.ID, d.TemplateID))
		}

		info, err := deviceInfo(d, protocol)
		if err != nil {
			return nil, err
		}
		if err := adapter.AddDevice(info); err != nil {
			return nil, gwerr.Wrap(gwerr.ConfigValidation, "gateway.New", "failed to register device "+d.ID, err)
		}

		r.owner[d.ID] = protocol
		r.template[d.ID] = translate.New(tmpl)
	}

	return r, nil
}

// adapterFor returns the adapter for protocol, constructing and
// initializing it on first use.
func (r *DeviceRegistry) adapterFor(protocol device.Protocol) (device.Adapter, error) {
	if a, ok := r.adapters[protocol]; ok {
		return a, nil
	}

	var a device.Adapter
	switch protocol {
	case device.ProtocolEchonetLite:
		a = echonet.NewAdapter()
	case device.ProtocolModbusRTU:
		a = modbus.NewRTUAdapter()
	case device.ProtocolModbusTCP:
		a = modbus.NewTCPAdapter()
	default:
		return nil, gwerr.NewConfigValidation("gateway.adapterFor", fmt.Sprintf("unsupported protocol: %v", protocol))
	}

	if err := a.Initialize(); err != nil {
		return nil, gwerr.Wrap(gwerr.Internal, "gateway.adapterFor", "failed to initialize adapter", err)
	}
	r.adapters[protocol] = a
	return a, nil
}

func deviceInfo(d config.DeviceConfig, protocol device.Protocol) (device.Info, error) {
	info := device.Info{
		ID:           d.ID,
		Name:         d.Name,
		Model:        d.Model,
		Manufacturer: d.Manufacturer,
		Protocol:     protocol,
		TemplateID:   d.TemplateID,
	}

	switch protocol {
	case device.ProtocolEchonetLite:
		if d.Echonet == nil {
			return device.Info{}, gwerr.NewConfigValidation("gateway.deviceInfo", "device "+d.ID+" missing echonet address")
		}
		info.Address = device.EchonetLiteAddress{IP: d.Echonet.IP, Port: d.Echonet.Port}
	case device.ProtocolModbusRTU:
		if d.ModbusRtu == nil {
			return device.Info{}, gwerr.NewConfigValidation("gateway.deviceInfo", "device "+d.ID+" missing modbus_rtu address")
		}
		info.Address = device.ModbusRTUAddress{
			Port:     d.ModbusRtu.Port,
			BaudRate: d.ModbusRtu.BaudRate,
			DataBits: d.ModbusRtu.DataBits,
			StopBits: d.ModbusRtu.StopBits,
			Parity:   d.ModbusRtu.Parity,
			UnitID:   d.ModbusRtu.UnitID,
		}
	case device.ProtocolModbusTCP:
		if d.ModbusTcp == nil {
			return device.Info{}, gwerr.NewConfigValidation("gateway.deviceInfo", "device "+d.ID+" missing modbus_tcp address")
		}
		info.Address = device.ModbusTCPAddress{IP: d.ModbusTcp.IP, Port: d.ModbusTcp.Port, UnitID: d.ModbusTcp.UnitID}
	default:
		return device.Info{}, gwerr.NewConfigValidation("gateway.deviceInfo", "device "+d.ID+" has unsupported protocol "+d.Protocol)
	}

	return info, nil
}

// Start starts every adapter in use.
func (r *DeviceRegistry) Start() error {
	for protocol, a := range r.adapters {
		if err := a.Start(); err != nil {
			return gwerr.Wrap(gwerr.Internal, "gateway.Start", "failed to start adapter for protocol "+protocol.String(), err)
		}
	}
	return nil
}

// Stop stops every adapter in use.
func (r *DeviceRegistry) Stop() {
	for protocol, a := range r.adapters {
		a.Stop()
		logger.Info("stopped device adapter", "protocol", protocol.String())
	}
}

// AdapterFor returns the adapter that owns deviceID.
func (r *DeviceRegistry) AdapterFor(deviceID string) (device.Adapter, bool) {
	protocol, ok := r.owner[deviceID]
	if !ok {
		return nil, false
	}
	return r.adapters[protocol], true
}

// TranslatorFor returns the variable translator bound to deviceID's
// mapping template.
func (r *DeviceRegistry) TranslatorFor(deviceID string) (*translate.Translator, bool) {
	t, ok := r.template[deviceID]
	return t, ok
}

// ReadVariable reads deviceID's register for the named OCPP variable and
// converts the raw device bytes into an OCPP value.
func (r *DeviceRegistry) ReadVariable(deviceID, variableName string, addr device.RegisterAddress) (any, error) {
	adapter, ok := r.AdapterFor(deviceID)
	if !ok {
		return nil, gwerr.NewDevice("gateway.ReadVariable", "device not registered", deviceID)
	}
	tr, ok := r.TranslatorFor(deviceID)
	if !ok {
		return nil, gwerr.NewDevice("gateway.ReadVariable", "no mapping template for device", deviceID)
	}

	result := adapter.ReadRegister(deviceID, addr)
	if !result.Success {
		return nil, gwerr.NewDevice("gateway.ReadVariable", result.ErrorMessage, deviceID)
	}
	return tr.ToOcpp(variableName, result.Value.Data)
}

// WriteVariable converts an OCPP value into raw device bytes for the named
// variable and writes it to deviceID's register.
func (r *DeviceRegistry) WriteVariable(deviceID, variableName string, addr device.RegisterAddress, value any) error {
	adapter, ok := r.AdapterFor(deviceID)
	if !ok {
		return gwerr.NewDevice("gateway.WriteVariable", "device not registered", deviceID)
	}
	tr, ok := r.TranslatorFor(deviceID)
	if !ok {
		return gwerr.NewDevice("gateway.WriteVariable", "no mapping template for device", deviceID)
	}

	data, err := tr.ToDevice(variableName, value)
	if err != nil {
		return err
	}

	result := adapter.WriteRegister(deviceID, addr, device.RegisterValue{Type: registerDataType(len(data)), Data: data})
	if !result.Success {
		return gwerr.NewDevice("gateway.WriteVariable", result.ErrorMessage, deviceID)
	}
	return nil
}

// registerDataType infers the RegisterValue.Type from the byte width
// already decided by the translator; the adapters only use this field to
// size the write, not to reinterpret the bytes.
func registerDataType(byteLen int) device.DataType {
	switch byteLen {
	case 1:
		return device.Uint8
	case 2:
		return device.Uint16
	case 4:
		return device.Uint32
	case 8:
		return device.Uint64
	default:
		return device.Binary
	}
}
