package modbus

import (
	"fmt"
	"sync"
	"time"

	goburrow "github.com/goburrow/modbus"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
)

const (
	tcpKeepaliveInterval = 60 * time.Second
	tcpIdleTimeout       = 5 * time.Minute
	tcpEvictionInterval  = 30 * time.Second
)

// tcpHandle adapts *goburrow.TCPClientHandler to the handler interface;
// SlaveId is an exported field on the real type, not a method, so this
// wrapper is the seam tests substitute a fake behind.
type tcpHandle struct{ h *goburrow.TCPClientHandler }

func (w tcpHandle) Connect() error     { return w.h.Connect() }
func (w tcpHandle) Close() error       { return w.h.Close() }
func (w tcpHandle) SetSlaveID(id byte) { w.h.SlaveId = id }

// TCPAdapter is the Modbus TCP device adapter. Idle connections are
// evicted after tcpIdleTimeout; a background task also pings every
// connection at tcpKeepaliveInterval to detect a dead peer early.
type TCPAdapter struct {
	*device.Base

	connMu sync.Mutex
	conns  map[string]*connection

	// newConnection builds the handler/client pair for a host:port;
	// overridden in tests to avoid dialing a real socket.
	newConnection func(addr device.ModbusTCPAddress) *connection

	pollState *pollState
	tasks     chan func()
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewTCPAdapter creates a Modbus TCP adapter with no open sockets yet.
func NewTCPAdapter() *TCPAdapter {
	return &TCPAdapter{
		Base:      device.NewBase(device.ProtocolModbusTCP),
		conns:     make(map[string]*connection),
		pollState: newPollState(),
		newConnection: func(addr device.ModbusTCPAddress) *connection {
			h := goburrow.NewTCPClientHandler(fmt.Sprintf("%s:%d", addr.IP, addr.Port))
			h.Timeout = defaultTimeout
			h.IdleTimeout = tcpIdleTimeout
			return &connection{h: tcpHandle{h}, client: goburrow.NewClient(h)}
		},
		tasks: make(chan func(), 64),
	}
}

// Initialize is a no-op; sockets are dialed lazily per device.
func (a *TCPAdapter) Initialize() error { return nil }

// Start launches the task-queue worker and the idle-eviction, keepalive,
// polling and status-monitor loops. Only keepalive pings go through the
// task queue and its single worker goroutine (§4.7, the same pattern as
// the ECHONET receive loop's single-goroutine dispatch); idle eviction
// runs on its own ticker, and device reads and writes run on the caller's
// goroutine. Each ping or device exchange holds the connection's mutex.
func (a *TCPAdapter) Start() error {
	if a.IsRunning() {
		return nil
	}
	a.SetRunning(true)
	a.stopCh = make(chan struct{})

	a.wg.Add(1)
	go a.worker()

	a.wg.Add(1)
	go a.evictionLoop()

	a.wg.Add(1)
	go a.keepaliveLoop()

	a.wg.Add(1)
	go a.pollLoop()

	a.wg.Add(1)
	go a.statusMonitorLoop()

	return nil
}

// Stop closes every open socket and marks all devices offline.
func (a *TCPAdapter) Stop() {
	if !a.IsRunning() {
		return
	}
	a.SetRunning(false)
	close(a.stopCh)
	a.wg.Wait()

	a.connMu.Lock()
	for key, conn := range a.conns {
		conn.h.Close()
		delete(a.conns, key)
	}
	a.connMu.Unlock()
	a.MarkAllOffline()
}

func (a *TCPAdapter) worker() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stopCh:
			return
		case task := <-a.tasks:
			task()
		}
	}
}

// keepaliveLoop submits a lightweight ping for every open connection to
// the shared task queue at tcpKeepaliveInterval, so pings never run
// concurrently with each other. Idle eviction is not on this queue.
func (a *TCPAdapter) keepaliveLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(tcpKeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.connMu.Lock()
			keys := make([]string, 0, len(a.conns))
			for key := range a.conns {
				keys = append(keys, key)
			}
			a.connMu.Unlock()

			for _, key := range keys {
				k := key
				select {
				case a.tasks <- func() { a.pingConnection(k) }:
				case <-a.stopCh:
					return
				}
			}
		}
	}
}

func (a *TCPAdapter) pingConnection(key string) {
	a.connMu.Lock()
	conn, ok := a.conns[key]
	a.connMu.Unlock()
	if !ok {
		return
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	if err := conn.h.Connect(); err != nil {
		conn.h.Close()
		return
	}
	conn.lastUsed = time.Now()
}

func (a *TCPAdapter) evictionLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(tcpEvictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.evictIdle()
		}
	}
}

// pollLoop is the shared polling task (§4.7): every tick it reads the
// configured addresses of any due device and folds the result into an
// online/offline transition.
func (a *TCPAdapter) pollLoop() {
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
func (a *TCPAdapter) statusMonitorLoop() {
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

func (a *TCPAdapter) evictIdle() {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	now := time.Now()
	for key, conn := range a.conns {
		conn.mu.Lock()
		idle := now.Sub(conn.lastUsed)
		conn.mu.Unlock()
		if idle >= tcpIdleTimeout {
			conn.h.Close()
			delete(a.conns, key)
		}
	}
}

// StartDiscovery health-probes each device already added to the adapter
// with one holding-register-0 read (under the normal retry budget) and
// reports each that responds via cb. It does not scan a subnet, runs
// synchronously, and does not use timeout.
func (a *TCPAdapter) StartDiscovery(cb device.DiscoveryCallback, timeout time.Duration) error {
	if a.DiscoveryInProgress() {
		return nil
	}
	a.SetDiscovering(true)
	defer a.SetDiscovering(false)

	for _, info := range a.AllDevices() {
		addr, ok := info.Address.(device.ModbusTCPAddress)
		if !ok {
			continue
		}
		conn, unitID, err := a.connectionFor(info.ID)
		if err != nil {
			continue
		}
		err = conn.withSlaveID(unitID, func(client modbusClient) error {
			_, err := client.ReadHoldingRegisters(0, 1)
			return err
		})
		if err == nil {
			cb(device.Info{ID: info.ID, Protocol: device.ProtocolModbusTCP, Address: addr, Online: true, LastSeen: time.Now()})
		}
	}
	return nil
}

// StopDiscovery is a no-op: StartDiscovery here runs synchronously.
func (a *TCPAdapter) StopDiscovery() {}

func (a *TCPAdapter) connectionFor(deviceID string) (*connection, byte, error) {
	info, ok := a.DeviceInfo(deviceID)
	if !ok {
		return nil, 0, gwerr.New(gwerr.Device, "modbus.TCPAdapter", "device not found: "+deviceID)
	}
	addr, ok := info.Address.(device.ModbusTCPAddress)
	if !ok {
		return nil, 0, gwerr.New(gwerr.Device, "modbus.TCPAdapter", "device has no Modbus TCP address: "+deviceID)
	}

	key := fmt.Sprintf("%s:%d", addr.IP, addr.Port)
	a.connMu.Lock()
	conn, exists := a.conns[key]
	if !exists {
		conn = a.newConnection(addr)
		a.conns[key] = conn
	}
	a.connMu.Unlock()

	return conn, addr.UnitID, nil
}

// ReadRegister reads a single register from a device.
func (a *TCPAdapter) ReadRegister(deviceID string, addr device.RegisterAddress) device.ReadResult {
	results := a.ReadMultipleRegisters(deviceID, []device.RegisterAddress{addr})
	if result, ok := results[addr]; ok {
		return result
	}
	return device.ErrorReadResult("no result for address", 0)
}

// WriteRegister writes a single register on a device.
func (a *TCPAdapter) WriteRegister(deviceID string, addr device.RegisterAddress, value device.RegisterValue) device.WriteResult {
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
// one request per range.
func (a *TCPAdapter) ReadMultipleRegisters(deviceID string, addrs []device.RegisterAddress) map[device.RegisterAddress]device.ReadResult {
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
func (a *TCPAdapter) WriteMultipleRegisters(deviceID string, values map[device.RegisterAddress]device.RegisterValue) map[device.RegisterAddress]device.WriteResult {
	results := make(map[device.RegisterAddress]device.WriteResult, len(values))
	for addr, value := range values {
		results[addr] = a.WriteRegister(deviceID, addr, value)
	}
	return results
}

// ReadRegisterAsync runs ReadRegister on a goroutine.
func (a *TCPAdapter) ReadRegisterAsync(deviceID string, addr device.RegisterAddress) <-chan device.ReadResult {
	return device.RunReadAsync(func() device.ReadResult { return a.ReadRegister(deviceID, addr) })
}

// WriteRegisterAsync runs WriteRegister on a goroutine.
func (a *TCPAdapter) WriteRegisterAsync(deviceID string, addr device.RegisterAddress, value device.RegisterValue) <-chan device.WriteResult {
	return device.RunWriteAsync(func() device.WriteResult { return a.WriteRegister(deviceID, addr, value) })
}
