package modbus

import (
	"fmt"
	"sync"
	"time"

	goburrow "github.com/goburrow/modbus"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
)

// rtuHandle adapts *goburrow.RTUClientHandler to the handler interface;
// SlaveId is an exported field on the real type, not a method, so this
// wrapper is the seam tests substitute a fake behind.
type rtuHandle struct{ h *goburrow.RTUClientHandler }

func (w rtuHandle) Connect() error     { return w.h.Connect() }
func (w rtuHandle) Close() error       { return w.h.Close() }
func (w rtuHandle) SetSlaveID(id byte) { w.h.SlaveId = id }

// RTUAdapter is the Modbus RTU device adapter.
type RTUAdapter struct {
	*device.Base

	connMu sync.Mutex
	conns  map[string]*connection

	// newConnection builds the handler/client pair for a serial port;
	// overridden in tests to avoid opening a real port.
	newConnection func(addr device.ModbusRTUAddress) *connection

	pollState *pollState
	stopCh    chan struct{}
	wg        sync.WaitGroup

	discoveryMu   sync.Mutex
	discoveryStop chan struct{}
}

// NewRTUAdapter creates a Modbus RTU adapter with no open ports yet.
func NewRTUAdapter() *RTUAdapter {
	return &RTUAdapter{
		Base:      device.NewBase(device.ProtocolModbusRTU),
		conns:     make(map[string]*connection),
		pollState: newPollState(),
		newConnection: func(addr device.ModbusRTUAddress) *connection {
			h := goburrow.NewRTUClientHandler(addr.Port)
			h.BaudRate = addr.BaudRate
			h.DataBits = addr.DataBits
			h.StopBits = addr.StopBits
			h.Parity = addr.Parity
			h.Timeout = defaultTimeout
			return &connection{h: rtuHandle{h}, client: goburrow.NewClient(h)}
		},
	}
}

// Initialize is a no-op: serial ports are opened lazily per device on
// first use so a misconfigured port for one device does not block the
// others from starting.
func (a *RTUAdapter) Initialize() error { return nil }

// Start marks the adapter running and launches the shared polling and
// status-monitor background tasks (§4.7).
func (a *RTUAdapter) Start() error {
	if a.IsRunning() {
		return nil
	}
	a.SetRunning(true)
	a.stopCh = make(chan struct{})

	a.wg.Add(2)
	go a.pollLoop()
	go a.statusMonitorLoop()

	return nil
}

// Stop closes every open serial port and marks all devices offline.
func (a *RTUAdapter) Stop() {
	if !a.IsRunning() {
		return
	}
	a.SetRunning(false)
	close(a.stopCh)
	a.wg.Wait()

	a.connMu.Lock()
	for port, conn := range a.conns {
		conn.h.Close()
		delete(a.conns, port)
	}
	a.connMu.Unlock()
	a.MarkAllOffline()
}

// pollLoop is the shared polling task (§4.7): every tick it reads the
// configured addresses of any due device and folds the result into an
// online/offline transition.
func (a *RTUAdapter) pollLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(pollTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			pollDevices(a.AllDevices(), a.pollState, a.ReadMultipleRegisters, a.UpdateDeviceStatus)
		}
	}
}

// statusMonitorLoop probes every device's liveness every
// statusMonitorInterval by reading holding register 0 (§4.7).
func (a *RTUAdapter) statusMonitorLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(statusMonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			monitorStatus(a.AllDevices(), a.ReadRegister, a.UpdateDeviceStatus)
		}
	}
}

// rtuDiscoveryPorts, rtuDiscoveryBaudRates, and rtuDiscoveryParities are
// the candidate serial configurations swept during RTU discovery (§4.7),
// matching the original adapter's common-port/baud-rate/parity lists.
// Variables, not constants, so tests can substitute a short candidate set.
var (
	rtuDiscoveryPorts = []string{
		"/dev/ttyS0", "/dev/ttyS1", "/dev/ttyS2", "/dev/ttyS3",
		"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2", "/dev/ttyUSB3",
		"/dev/ttyACM0", "/dev/ttyACM1", "/dev/ttyACM2", "/dev/ttyACM3",
	}
	rtuDiscoveryBaudRates = []int{9600, 19200, 38400, 57600, 115200}
	rtuDiscoveryParities  = []string{"N", "E", "O"}
	rtuDiscoveryMaxUnitID = 247
)

// StartDiscovery sweeps rtuDiscoveryPorts x rtuDiscoveryBaudRates x
// rtuDiscoveryParities (§4.7): for each combination whose port opens,
// every unit id 1..rtuDiscoveryMaxUnitID is probed with a single
// (non-retried) holding-register read, and each responding
// (port, baud, parity, unit) is reported exactly once via cb. The sweep
// runs in the background and ends when it completes, timeout elapses, or
// StopDiscovery is called.
func (a *RTUAdapter) StartDiscovery(cb device.DiscoveryCallback, timeout time.Duration) error {
	if a.DiscoveryInProgress() {
		return nil
	}
	a.SetDiscovering(true)

	stop := make(chan struct{})
	a.discoveryMu.Lock()
	a.discoveryStop = stop
	a.discoveryMu.Unlock()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	go func() {
		defer a.StopDiscovery()
		for _, port := range rtuDiscoveryPorts {
			if discoveryExpired(stop, deadline) {
				return
			}
			a.probePort(port, cb, stop, deadline)
		}
	}()

	return nil
}

// StopDiscovery ends the current sweep, if any.
func (a *RTUAdapter) StopDiscovery() {
	a.discoveryMu.Lock()
	if a.discoveryStop != nil {
		select {
		case <-a.discoveryStop:
		default:
			close(a.discoveryStop)
		}
	}
	a.discoveryMu.Unlock()
	a.SetDiscovering(false)
}

func discoveryExpired(stop <-chan struct{}, deadline time.Time) bool {
	select {
	case <-stop:
		return true
	default:
	}
	return !deadline.IsZero() && time.Now().After(deadline)
}

// probePort checks whether port can be opened at all before trying every
// baud/parity combination on it, mirroring the original adapter's
// open()-then-sweep structure.
func (a *RTUAdapter) probePort(port string, cb device.DiscoveryCallback, stop <-chan struct{}, deadline time.Time) {
	probe := a.newConnection(device.ModbusRTUAddress{Port: port, BaudRate: rtuDiscoveryBaudRates[0], DataBits: 8, StopBits: 1, Parity: rtuDiscoveryParities[0]})
	if err := probe.h.Connect(); err != nil {
		return
	}
	probe.h.Close()

	for _, baud := range rtuDiscoveryBaudRates {
		for _, parity := range rtuDiscoveryParities {
			if discoveryExpired(stop, deadline) {
				return
			}
			a.probeCombination(port, baud, parity, cb, stop, deadline)
		}
	}
}

// probeCombination opens one (port, baud, parity) connection and probes
// every candidate unit id with a single holding-register read, reporting
// each that responds.
func (a *RTUAdapter) probeCombination(port string, baud int, parity string, cb device.DiscoveryCallback, stop <-chan struct{}, deadline time.Time) {
	conn := a.newConnection(device.ModbusRTUAddress{Port: port, BaudRate: baud, DataBits: 8, StopBits: 1, Parity: parity})
	defer conn.h.Close()

	for unitID := 1; unitID <= rtuDiscoveryMaxUnitID; unitID++ {
		if discoveryExpired(stop, deadline) {
			return
		}

		err := conn.probeOnce(byte(unitID), func(client modbusClient) error {
			_, rerr := client.ReadHoldingRegisters(0, 1)
			return rerr
		})
		if err != nil {
			continue
		}

		cb(device.Info{
			ID:       fmt.Sprintf("modbus_rtu_%s_%d", port, unitID),
			Name:     "Modbus RTU Device",
			Protocol: device.ProtocolModbusRTU,
			Address:  device.ModbusRTUAddress{Port: port, BaudRate: baud, DataBits: 8, StopBits: 1, Parity: parity, UnitID: byte(unitID)},
			Online:   true,
			LastSeen: time.Now(),
		})
	}
}

func (a *RTUAdapter) connectionFor(deviceID string) (*connection, byte, error) {
	info, ok := a.DeviceInfo(deviceID)
	if !ok {
		return nil, 0, gwerr.New(gwerr.Device, "modbus.RTUAdapter", "device not found: "+deviceID)
	}
	addr, ok := info.Address.(device.ModbusRTUAddress)
	if !ok {
		return nil, 0, gwerr.New(gwerr.Device, "modbus.RTUAdapter", "device has no Modbus RTU address: "+deviceID)
	}

	a.connMu.Lock()
	conn, exists := a.conns[addr.Port]
	if !exists {
		conn = a.newConnection(addr)
		a.conns[addr.Port] = conn
	}
	a.connMu.Unlock()

	return conn, addr.UnitID, nil
}

// ReadRegister reads a single register from a device.
func (a *RTUAdapter) ReadRegister(deviceID string, addr device.RegisterAddress) device.ReadResult {
	results := a.ReadMultipleRegisters(deviceID, []device.RegisterAddress{addr})
	if result, ok := results[addr]; ok {
		return result
	}
	return device.ErrorReadResult("no result for address", 0)
}

// WriteRegister writes a single register on a device.
func (a *RTUAdapter) WriteRegister(deviceID string, addr device.RegisterAddress, value device.RegisterValue) device.WriteResult {
	if err := device.ValidateRegisterAddress(addr); err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}
	if err := device.ValidateWritable(addr); err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}
	conn, unitID, err := a.connectionFor(deviceID)
	if err != nil {
		return device.ErrorWriteResult(err.Error(), 0)
	}

	var result device.WriteResult
	werr := conn.withSlaveID(unitID, func(client modbusClient) error {
		result = writeOne(client, addr, value)
		return nil
	})
	if werr != nil {
		a.UpdateDeviceStatus(deviceID, false)
		return device.ErrorWriteResult(werr.Error(), 0)
	}
	a.UpdateDeviceStatus(deviceID, true)
	return result
}

// ReadMultipleRegisters groups addrs into contiguous ranges and issues
// one request per range (§4.7).
func (a *RTUAdapter) ReadMultipleRegisters(deviceID string, addrs []device.RegisterAddress) map[device.RegisterAddress]device.ReadResult {
	results := make(map[device.RegisterAddress]device.ReadResult, len(addrs))

	var valid []device.RegisterAddress
	for _, addr := range addrs {
		if err := device.ValidateRegisterAddress(addr); err != nil {
			results[addr] = device.ErrorReadResult(err.Error(), 0)
			continue
		}
		valid = append(valid, addr)
	}

	conn, unitID, err := a.connectionFor(deviceID)
	if err != nil {
		for _, addr := range valid {
			results[addr] = device.ErrorReadResult(err.Error(), 0)
		}
		return results
	}

	groups := groupRegisters(valid)
	allOK := true
	for _, group := range groups {
		var groupResults map[device.RegisterAddress]device.ReadResult
		werr := conn.withSlaveID(unitID, func(client modbusClient) error {
			groupResults = readGroup(client, group)
			return nil
		})
		if werr != nil {
			allOK = false
			for _, addr := range group.Addresses {
				results[addr] = device.ErrorReadResult(werr.Error(), 0)
			}
			continue
		}
		for addr, r := range groupResults {
			if !r.Success {
				allOK = false
			}
			results[addr] = r
		}
	}
	a.UpdateDeviceStatus(deviceID, allOK)
	return results
}

// WriteMultipleRegisters issues one write per address.
func (a *RTUAdapter) WriteMultipleRegisters(deviceID string, values map[device.RegisterAddress]device.RegisterValue) map[device.RegisterAddress]device.WriteResult {
	results := make(map[device.RegisterAddress]device.WriteResult, len(values))
	for addr, value := range values {
		results[addr] = a.WriteRegister(deviceID, addr, value)
	}
	return results
}

// ReadRegisterAsync runs ReadRegister on a goroutine.
func (a *RTUAdapter) ReadRegisterAsync(deviceID string, addr device.RegisterAddress) <-chan device.ReadResult {
	return device.RunReadAsync(func() device.ReadResult { return a.ReadRegister(deviceID, addr) })
}

// WriteRegisterAsync runs WriteRegister on a goroutine.
func (a *RTUAdapter) WriteRegisterAsync(deviceID string, addr device.RegisterAddress, value device.RegisterValue) <-chan device.WriteResult {
	return device.RunWriteAsync(func() device.WriteResult { return a.WriteRegister(deviceID, addr, value) })
}
