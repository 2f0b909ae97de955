package modbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

// defaultTimeout bounds a single Modbus request/response round trip,
// applied to both RTU and TCP handlers.
const defaultTimeout = 1 * time.Second

// maxRetries and retryBackoff bound the per-operation retry budget (§4.7):
// up to maxRetries attempts per withSlaveID call, with linear backoff between
// attempts, mirroring the ECHONET adapter's sendRequestWithResponse policy.
const (
	maxRetries   = 3
	retryBackoff = 100 * time.Millisecond
)

// pollTickInterval is how often the shared polling task re-checks which
// devices are due; per-device cadence is governed by that device's
// PollConfig.Interval. defaultPollInterval applies when a device sets
// none, matching the original adapter's 5 s default.
const (
	pollTickInterval    = 1 * time.Second
	defaultPollInterval = 5 * time.Second
)

// statusMonitorInterval is the fixed cadence of the liveness probe (§4.7);
// unlike polling it is not configurable per device.
const statusMonitorInterval = 30 * time.Second

// statusMonitorRegister is read from every device to probe liveness: a
// single holding register is cheap and supported by every Modbus peer.
var statusMonitorRegister = device.RegisterAddress{Type: device.HoldingRegister, Address: 0, Count: 1}

// pollState remembers the last poll time per device so a single shared
// ticker can honor each device's own PollConfig.Interval without one
// goroutine per device.
type pollState struct {
	mu       sync.Mutex
	lastPoll map[string]time.Time
}

func newPollState() *pollState {
	return &pollState{lastPoll: make(map[string]time.Time)}
}

func (p *pollState) due(id string, interval time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastPoll[id]; ok && time.Since(last) < interval {
		return false
	}
	p.lastPoll[id] = time.Now()
	return true
}

// pollDevices enumerates devices with a configured PollConfig and, for
// those due, reads their polled addresses: success of any read in the
// group means online, full failure means offline (§4.7).
func pollDevices(devices []device.Info, state *pollState, read func(deviceID string, addrs []device.RegisterAddress) map[device.RegisterAddress]device.ReadResult, setStatus func(deviceID string, online bool)) {
	for _, info := range devices {
		if info.Poll == nil || len(info.Poll.Addresses) == 0 {
			continue
		}
		interval := info.Poll.Interval
		if interval <= 0 {
			interval = defaultPollInterval
		}
		if !state.due(info.ID, interval) {
			continue
		}

		results := read(info.ID, info.Poll.Addresses)
		online := false
		for _, r := range results {
			if r.Success {
				online = true
				break
			}
		}
		setStatus(info.ID, online)
	}
}

// monitorStatus reads statusMonitorRegister from every known device to
// probe liveness, independent of any configured polling (§4.7).
func monitorStatus(devices []device.Info, read func(deviceID string, addr device.RegisterAddress) device.ReadResult, setStatus func(deviceID string, online bool)) {
	for _, info := range devices {
		result := read(info.ID, statusMonitorRegister)
		setStatus(info.ID, result.Success)
	}
}

// modbusClient is the subset of goburrow/modbus.Client this package uses.
// A real modbus.Client satisfies it structurally; tests substitute a fake
// implementing just this interface.
type modbusClient interface {
	ReadCoils(address, quantity uint16) ([]byte, error)
	ReadDiscreteInputs(address, quantity uint16) ([]byte, error)
	ReadInputRegisters(address, quantity uint16) ([]byte, error)
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleCoil(address, value uint16) ([]byte, error)
	WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// handler is the subset of a goburrow/modbus client handler this package
// drives directly: connecting, closing, and selecting a slave id before
// each exchange. RTU and TCP handlers each get a thin wrapper satisfying
// this so the connection pool and its tests don't care which transport
// is underneath.
type handler interface {
	Connect() error
	Close() error
	SetSlaveID(id byte)
}

// connection is one shared transport (serial port or TCP socket) and the
// client/handler pair bound to it. mu serializes every exchange across
// the unit ids sharing the transport (§4.7).
type connection struct {
	mu       sync.Mutex
	h        handler
	client   modbusClient
	lastUsed time.Time
}

// withSlaveID selects unitID and issues fn against the shared client,
// making up to maxRetries attempts with linear backoff while the connect
// fails or fn returns an error (§4.7). Every ReadRegister, WriteRegister,
// ReadMultipleRegisters, and WriteMultipleRegisters call on both
// transports funnels through here, but their closures record exchange
// errors in the per-address results and return nil, so for them only a
// failed connect is retried; a failed exchange is reported after one
// attempt.
func (c *connection) withSlaveID(unitID byte, fn func(modbusClient) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h.SetSlaveID(unitID)

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = c.h.Connect(); err == nil {
			c.lastUsed = time.Now()
			if err = fn(c.client); err == nil {
				return nil
			}
		}
		if attempt < maxRetries {
			time.Sleep(retryBackoff * time.Duration(attempt))
		}
	}
	return err
}

// probeOnce issues a single non-retried exchange: used by discovery
// sweeps, where hundreds of unit ids are tried per candidate and a full
// retry budget per attempt would make the sweep impractically slow.
func (c *connection) probeOnce(unitID byte, fn func(modbusClient) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.h.SetSlaveID(unitID)
	if err := c.h.Connect(); err != nil {
		return err
	}
	c.lastUsed = time.Now()
	return fn(c.client)
}

func (c *connection) idleSince() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastUsed)
}

// readGroup issues one Modbus request covering group and distributes the
// response back to each address it contains, tagging results as raw
// Binary bytes (§4.7): interpretation into a typed DataType is the
// variable translator's job, not the adapter's, matching the ECHONET
// adapter's same raw-bytes-out contract.
func readGroup(client modbusClient, group RegisterGroup) map[device.RegisterAddress]device.ReadResult {
	results := make(map[device.RegisterAddress]device.ReadResult, len(group.Addresses))

	var raw []byte
	var err error
	switch group.Type {
	case device.Coil:
		raw, err = client.ReadCoils(uint16(group.Start), group.Count)
	case device.DiscreteInput:
		raw, err = client.ReadDiscreteInputs(uint16(group.Start), group.Count)
	case device.InputRegister:
		raw, err = client.ReadInputRegisters(uint16(group.Start), group.Count)
	case device.HoldingRegister:
		raw, err = client.ReadHoldingRegisters(uint16(group.Start), group.Count)
	default:
		err = fmt.Errorf("unsupported register type for Modbus: %s", group.Type)
	}

	if err != nil {
		for _, addr := range group.Addresses {
			results[addr] = device.ErrorReadResult(err.Error(), 0)
		}
		return results
	}

	for _, addr := range group.Addresses {
		switch group.Type {
		case device.Coil, device.DiscreteInput:
			bitOffset := int(addr.Address - group.Start)
			results[addr] = device.SuccessReadResult(device.RegisterValue{
				Type: device.Binary,
				Data: extractBits(raw, bitOffset, int(addr.Count)),
			})
		default:
			wordOffset := int(addr.Address-group.Start) * 2
			end := wordOffset + int(addr.Count)*2
			if end > len(raw) {
				results[addr] = device.ErrorReadResult("response shorter than expected for address", 0)
				continue
			}
			data := make([]byte, end-wordOffset)
			copy(data, raw[wordOffset:end])
			results[addr] = device.SuccessReadResult(device.RegisterValue{Type: device.Binary, Data: data})
		}
	}
	return results
}

// writeOne issues a single Modbus write for one address/value pair.
func writeOne(client modbusClient, addr device.RegisterAddress, value device.RegisterValue) device.WriteResult {
	var err error
	switch addr.Type {
	case device.Coil:
		_, err = client.WriteSingleCoil(uint16(addr.Address), valueToCoilValue(value))
	case device.HoldingRegister:
		words := valueToRegisters(value)
		if len(words) == 1 {
			_, err = client.WriteSingleRegister(uint16(addr.Address), words[0])
		} else {
			data := make([]byte, len(words)*2)
			for i, w := range words {
				data[i*2] = byte(w >> 8)
				data[i*2+1] = byte(w)
			}
			_, err = client.WriteMultipleRegisters(uint16(addr.Address), uint16(len(words)), data)
		}
	default:
		err = fmt.Errorf("register type %s is not writable", addr.Type)
	}

	if err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}
	return device.SuccessWriteResult()
}

// extractBits pulls count bits starting at bitOffset out of a Modbus
// packed-coil response (bits packed LSB-first within each byte, per the
// Modbus application protocol) into a minimal packed byte slice.
func extractBits(packed []byte, bitOffset, count int) []byte {
	out := make([]byte, (count+7)/8)
	for i := 0; i < count; i++ {
		srcBit := bitOffset + i
		byteIdx := srcBit / 8
		if byteIdx >= len(packed) {
			break
		}
		bit := (packed[byteIdx] >> uint(srcBit%8)) & 0x01
		if bit != 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
