// Package device defines the protocol-agnostic device adapter contract
// (§4.5): addressing, register types/values, and the read/write/discovery
// operations every protocol-specific adapter (ECHONET Lite, Modbus RTU,
// Modbus TCP) implements uniformly.
package device

import "time"

// Protocol identifies which wire protocol an adapter speaks.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolEchonetLite
	ProtocolModbusRTU
	ProtocolModbusTCP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolEchonetLite:
		return "echonet_lite"
	case ProtocolModbusRTU:
		return "modbus_rtu"
	case ProtocolModbusTCP:
		return "modbus_tcp"
	default:
		return "unknown"
	}
}

// ParseProtocol converts a config protocol string into a Protocol.
func ParseProtocol(s string) Protocol {
	switch s {
	case "echonet_lite":
		return ProtocolEchonetLite
	case "modbus_rtu":
		return ProtocolModbusRTU
	case "modbus_tcp":
		return ProtocolModbusTCP
	default:
		return ProtocolUnknown
	}
}

// Address is the protocol-specific connection address of a device. Each
// protocol package defines a concrete type satisfying this marker
// interface.
type Address interface {
	isDeviceAddress()
}

// EchonetLiteAddress addresses a device over ECHONET Lite/UDP.
type EchonetLiteAddress struct {
	IP   string
	Port int
}

func (EchonetLiteAddress) isDeviceAddress() {}

// ModbusRTUAddress addresses a device over a Modbus RTU serial link.
type ModbusRTUAddress struct {
	Port     string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string
	UnitID   byte
}

func (ModbusRTUAddress) isDeviceAddress() {}

// ModbusTCPAddress addresses a device over Modbus TCP.
type ModbusTCPAddress struct {
	IP     string
	Port   int
	UnitID byte
}

func (ModbusTCPAddress) isDeviceAddress() {}

// Info describes a managed device.
type Info struct {
	ID              string
	Name            string
	Model           string
	Manufacturer    string
	FirmwareVersion string
	Protocol        Protocol
	Address         Address
	TemplateID      string
	Online          bool
	LastSeen        time.Time
	Poll            *PollConfig
}

// PollConfig, when set on a device's Info, enables the Modbus adapters'
// shared polling background task for that device (§4.7): every Interval,
// Addresses are read via ReadMultipleRegisters; a zero Interval falls
// back to each adapter's default cadence.
type PollConfig struct {
	Interval  time.Duration
	Addresses []RegisterAddress
}

// RegisterType is the kind of register/property an address refers to.
type RegisterType int

const (
	RegisterTypeUnknown RegisterType = iota
	Coil
	DiscreteInput
	InputRegister
	HoldingRegister
	EPC
)

func (t RegisterType) String() string {
	switch t {
	case Coil:
		return "coil"
	case DiscreteInput:
		return "discrete_input"
	case InputRegister:
		return "input_register"
	case HoldingRegister:
		return "holding_register"
	case EPC:
		return "epc"
	default:
		return "unknown"
	}
}

// ReadOnly reports whether writes to this register type are rejected.
func (t RegisterType) ReadOnly() bool {
	return t == DiscreteInput || t == InputRegister
}

// RegisterAddress identifies a register or ECHONET property. Modbus
// adapters use Address/Count; the ECHONET adapter uses the EOJ/EPC
// fields instead.
type RegisterAddress struct {
	Type          RegisterType
	Address       uint32
	Count         uint16
	EOJClassGroup byte
	EOJClass      byte
	EOJInstance   byte
	EPCCode       byte
}

// Compare orders two RegisterAddresses lexicographically over
// (Type, Address, EOJClassGroup, EOJClass, EOJInstance, EPCCode, Count),
// matching the original's std::map ordering (§4.5) so addresses can be
// used as sorted map/slice keys.
func (a RegisterAddress) Compare(b RegisterAddress) int {
	if a.Type != b.Type {
		return int(a.Type) - int(b.Type)
	}
	if a.Address != b.Address {
		if a.Address < b.Address {
			return -1
		}
		return 1
	}
	if a.EOJClassGroup != b.EOJClassGroup {
		return int(a.EOJClassGroup) - int(b.EOJClassGroup)
	}
	if a.EOJClass != b.EOJClass {
		return int(a.EOJClass) - int(b.EOJClass)
	}
	if a.EOJInstance != b.EOJInstance {
		return int(a.EOJInstance) - int(b.EOJInstance)
	}
	if a.EPCCode != b.EPCCode {
		return int(a.EPCCode) - int(b.EPCCode)
	}
	return int(a.Count) - int(b.Count)
}

// Less reports whether a sorts before b, for use with sort.Slice.
func (a RegisterAddress) Less(b RegisterAddress) bool {
	return a.Compare(b) < 0
}

// ReadResult is the outcome of reading one register.
type ReadResult struct {
	Success      bool
	Value        RegisterValue
	ErrorMessage string
	ErrorCode    int
}

// WriteResult is the outcome of writing one register.
type WriteResult struct {
	Success      bool
	ErrorMessage string
	ErrorCode    int
}

// ErrorReadResult builds a failed ReadResult.
func ErrorReadResult(message string, code int) ReadResult {
	return ReadResult{ErrorMessage: message, ErrorCode: code}
}

// SuccessReadResult builds a successful ReadResult.
func SuccessReadResult(v RegisterValue) ReadResult {
	return ReadResult{Success: true, Value: v}
}

// ErrorWriteResult builds a failed WriteResult.
func ErrorWriteResult(message string, code int) WriteResult {
	return WriteResult{ErrorMessage: message, ErrorCode: code}
}

// SuccessWriteResult builds a successful WriteResult.
func SuccessWriteResult() WriteResult {
	return WriteResult{Success: true}
}

// DiscoveryCallback is invoked once per discovered device.
type DiscoveryCallback func(Info)

// StatusCallback is invoked on a device's online/offline transitions.
type StatusCallback func(deviceID string, online bool)
