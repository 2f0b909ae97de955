package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocppgw/ocpp-gateway/pkg/device"
)

func newTestTCPAdapter(h *fakeHandler, c *fakeModbusClient) *TCPAdapter {
	a := NewTCPAdapter()
	a.newConnection = func(addr device.ModbusTCPAddress) *connection {
		return &connection{h: h, client: c}
	}
	return a
}

func tcpDevice(unitID byte) device.Info {
	return device.Info{
		ID:       "tcp-1",
		Protocol: device.ProtocolModbusTCP,
		Address:  device.ModbusTCPAddress{IP: "10.0.0.5", Port: 502, UnitID: unitID},
	}
}

func TestTCPAdapter_ReadRegister_Success(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{holdingRegisters: map[uint16][]byte{10: {0x12, 0x34}}}
	a := newTestTCPAdapter(h, c)
	require.NoError(t, a.AddDevice(tcpDevice(1)))

	result := a.ReadRegister("tcp-1", device.RegisterAddress{Type: device.HoldingRegister, Address: 10, Count: 1})
	require.True(t, result.Success)
	assert.Equal(t, []byte{0x12, 0x34}, result.Value.Data)
}

func TestTCPAdapter_StartDiscovery_ProbesKnownDevices(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{holdingRegisters: map[uint16][]byte{0: {0x00, 0x00}}}
	a := newTestTCPAdapter(h, c)
	require.NoError(t, a.AddDevice(tcpDevice(1)))

	var seen []device.Info
	err := a.StartDiscovery(func(info device.Info) { seen = append(seen, info) }, 0)
	require.NoError(t, err)
	if assert.Len(t, seen, 1) {
		assert.Equal(t, "tcp-1", seen[0].ID)
		assert.True(t, seen[0].Online)
	}
}

func TestTCPAdapter_StartDiscovery_SkipsUnreachableDevices(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{readErr: assertErr}
	a := newTestTCPAdapter(h, c)
	require.NoError(t, a.AddDevice(tcpDevice(1)))

	var called bool
	err := a.StartDiscovery(func(device.Info) { called = true }, 0)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestTCPAdapter_EvictIdle_ClosesStaleConnections(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{holdingRegisters: map[uint16][]byte{10: {0x00, 0x01}}}
	a := newTestTCPAdapter(h, c)
	require.NoError(t, a.AddDevice(tcpDevice(1)))
	a.ReadRegister("tcp-1", device.RegisterAddress{Type: device.HoldingRegister, Address: 10, Count: 1})

	a.connMu.Lock()
	for _, conn := range a.conns {
		conn.lastUsed = conn.lastUsed.Add(-tcpIdleTimeout * 2)
	}
	a.connMu.Unlock()

	a.evictIdle()
	assert.True(t, h.closed)
	a.connMu.Lock()
	assert.Empty(t, a.conns)
	a.connMu.Unlock()
}

func TestTCPAdapter_PingConnection_ClosesOnFailedReconnect(t *testing.T) {
	h := &fakeHandler{}
	c := &fakeModbusClient{holdingRegisters: map[uint16][]byte{10: {0x00, 0x01}}}
	a := newTestTCPAdapter(h, c)
	require.NoError(t, a.AddDevice(tcpDevice(1)))
	a.ReadRegister("tcp-1", device.RegisterAddress{Type: device.HoldingRegister, Address: 10, Count: 1})

	h.connectErr = assertErr
	var key string
	a.connMu.Lock()
	for k := range a.conns {
		key = k
	}
	a.connMu.Unlock()

	a.pingConnection(key)
	assert.True(t, h.closed)
}

var assertErr = assertError("simulated failure")

type assertError string

func (e assertError) Error() string { return string(e) }
