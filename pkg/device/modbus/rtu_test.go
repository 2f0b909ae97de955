package modbus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

// fakeHandler satisfies handler without opening a real serial port/socket.
type fakeHandler struct {
	connectErr error
	slaveID    byte
	closed     bool
}

func (f *fakeHandler) Connect() error     { return f.connectErr }
func (f *fakeHandler) Close() error       { f.closed = true; return nil }
func (f *fakeHandler) SetSlaveID(id byte) { f.slaveID = id }

// fakeModbusClient satisfies modbusClient with canned responses per method.
type fakeModbusClient struct {
	holdingRegisters map[uint16][]byte
	readErr          error
	writeErr         error
	lastWriteAddr    uint16
	lastWriteValue   uint16
}

func (f *fakeModbusClient) ReadCoils(address, quantity uint16) ([]byte, error) { return nil, nil }
func (f *fakeModbusClient) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	return nil, nil
}
func (f *fakeModbusClient) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	return nil, nil
}
func (f *fakeModbusClient) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.holdingRegisters[address], nil
}
func (f *fakeModbusClient) WriteSingleCoil(address, value uint16) ([]byte, error) { return nil, nil }
func (f *fakeModbusClient) WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, nil
}
func (f *fakeModbusClient) WriteSingleRegister(address, value uint16) ([]byte, error) {
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	f.lastWriteAddr = address
	f.lastWriteValue = value
	return nil, nil
}
func (f *fakeModbusClient) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	return nil, nil
}

func newTestRTUAdapter(h *fakeHandler, c *fakeModbusClient) *RTUAdapter {
	a := NewRTUAdapter()
	a.newConnection = func(addr device.ModbusRTUAddress) *connection {
		return &connection{h: h, client: c}
	}
	return a
}

func rtuDevice(unitID byte) device.Info {
	return device.Info{
		ID:       "rtu-1",
		Protocol: device.ProtocolModbusRTU,
		Address:  device.ModbusRTUAddress{Port: "/dev/ttyUSB0", BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N", UnitID: unitID},
	}
}

func TestRTUAdapter_ReadRegister_Success(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{holdingRegisters: map[uint16][]byte{100: {0x00, 0x2A}}}
	a := newTestRTUAdapter(h, c)
	require.NoError(t, a.AddDevice(rtuDevice(3)))

	result := a.ReadRegister("rtu-1", device.RegisterAddress{Type: device.HoldingRegister, Address: 100, Count: 1})
	require.True(t, result.Success)
	assert.Equal(t, []byte{0x00, 0x2A}, result.Value.Data)
	assert.Equal(t, byte(3), h.slaveID)
	assert.True(t, a.IsDeviceOnline("rtu-1"))
}

func TestRTUAdapter_ReadRegister_ConnectFailureMarksOffline(t *testing.T) {
	h := &fakeHandler{connectErr: errors.New("port busy")}
	c := &fakeModbusClient{}
	a := newTestRTUAdapter(h, c)
	require.NoError(t, a.AddDevice(rtuDevice(1)))

	results := a.ReadMultipleRegisters("rtu-1", []device.RegisterAddress{{Type: device.HoldingRegister, Address: 100, Count: 1}})
	result := results[device.RegisterAddress{Type: device.HoldingRegister, Address: 100, Count: 1}]
	assert.False(t, result.Success)
	assert.False(t, a.IsDeviceOnline("rtu-1"))
}

func TestRTUAdapter_WriteRegister_RejectsReadOnly(t *testing.T) {
	a := newTestRTUAdapter(&fakeHandler{}, &fakeModbusClient{})
	require.NoError(t, a.AddDevice(rtuDevice(1)))

	result := a.WriteRegister("rtu-1", device.RegisterAddress{Type: device.InputRegister, Address: 100, Count: 1}, device.NewUint16Value(42))
	assert.False(t, result.Success)
}

func TestRTUAdapter_WriteRegister_Success(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{}
	a := newTestRTUAdapter(h, c)
	require.NoError(t, a.AddDevice(rtuDevice(2)))

	result := a.WriteRegister("rtu-1", device.RegisterAddress{Type: device.HoldingRegister, Address: 200, Count: 1}, device.NewUint16Value(0x1234))
	require.True(t, result.Success)
	assert.Equal(t, uint16(200), c.lastWriteAddr)
	assert.Equal(t, uint16(0x1234), c.lastWriteValue)
}

func TestRTUAdapter_StartDiscovery_SweepsCandidatesAndReportsResponders(t *testing.T) {
	origPorts, origBauds, origParities, origMaxUnit := rtuDiscoveryPorts, rtuDiscoveryBaudRates, rtuDiscoveryParities, rtuDiscoveryMaxUnitID
	defer func() {
		rtuDiscoveryPorts, rtuDiscoveryBaudRates, rtuDiscoveryParities, rtuDiscoveryMaxUnitID = origPorts, origBauds, origParities, origMaxUnit
	}()
	rtuDiscoveryPorts = []string{"/dev/ttyFAKE0"}
	rtuDiscoveryBaudRates = []int{9600}
	rtuDiscoveryParities = []string{"N"}
	rtuDiscoveryMaxUnitID = 2

	h := &fakeHandler{}
	c := &fakeModbusClient{holdingRegisters: map[uint16][]byte{0: {0x00, 0x00}}}
	a := newTestRTUAdapter(h, c)

	var seen []device.Info
	var mu sync.Mutex
	require.NoError(t, a.StartDiscovery(func(info device.Info) {
		mu.Lock()
		seen = append(seen, info)
		mu.Unlock()
	}, time.Second))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "modbus_rtu_/dev/ttyFAKE0_1", seen[0].ID)
	assert.Equal(t, "modbus_rtu_/dev/ttyFAKE0_2", seen[1].ID)
}

func TestRTUAdapter_StartDiscovery_SkipsUnopenablePort(t *testing.T) {
	origPorts, origBauds, origParities := rtuDiscoveryPorts, rtuDiscoveryBaudRates, rtuDiscoveryParities
	defer func() { rtuDiscoveryPorts, rtuDiscoveryBaudRates, rtuDiscoveryParities = origPorts, origBauds, origParities }()
	rtuDiscoveryPorts = []string{"/dev/ttyFAKE0"}
	rtuDiscoveryBaudRates = []int{9600}
	rtuDiscoveryParities = []string{"N"}

	h := &fakeHandler{connectErr: errors.New("no such device")}
	c := &fakeModbusClient{}
	a := newTestRTUAdapter(h, c)

	var called bool
	require.NoError(t, a.StartDiscovery(func(device.Info) { called = true }, 50*time.Millisecond))
	time.Sleep(60 * time.Millisecond)
	assert.False(t, called)
}

func TestRTUAdapter_Stop_ClosesConnectionsAndMarksOffline(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{holdingRegisters: map[uint16][]byte{100: {0x00, 0x01}}}
	a := newTestRTUAdapter(h, c)
	require.NoError(t, a.AddDevice(rtuDevice(1)))
	require.NoError(t, a.Start())
	a.ReadRegister("rtu-1", device.RegisterAddress{Type: device.HoldingRegister, Address: 100, Count: 1})

	a.Stop()
	assert.True(t, h.closed)
	assert.False(t, a.IsDeviceOnline("rtu-1"))
}
