package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase_AddDevice_RejectsDuplicate(t *testing.T) {
	b := NewBase(ProtocolModbusTCP)
	require.NoError(t, b.AddDevice(Info{ID: "d1"}))

	err := b.AddDevice(Info{ID: "d1"})
	assert.Error(t, err)
}

func TestBase_RemoveDevice_ClearsCallback(t *testing.T) {
	b := NewBase(ProtocolModbusTCP)
	require.NoError(t, b.AddDevice(Info{ID: "d1"}))

	called := false
	require.NoError(t, b.SetDeviceStatusCallback("d1", func(id string, online bool) { called = true }))

	require.NoError(t, b.RemoveDevice("d1"))
	_, exists := b.DeviceInfo("d1")
	assert.False(t, exists)

	err := b.SetDeviceStatusCallback("d1", func(id string, online bool) {})
	assert.Error(t, err, "device is gone, callback target no longer exists")
	assert.False(t, called)
}

func TestBase_UpdateDeviceStatus_OnlyCallsBackOnTransition(t *testing.T) {
	b := NewBase(ProtocolModbusTCP)
	require.NoError(t, b.AddDevice(Info{ID: "d1"}))

	var calls int
	require.NoError(t, b.SetDeviceStatusCallback("d1", func(id string, online bool) { calls++ }))

	b.UpdateDeviceStatus("d1", true)
	b.UpdateDeviceStatus("d1", true)
	assert.Equal(t, 1, calls, "redundant update must not re-invoke the callback")

	b.UpdateDeviceStatus("d1", false)
	assert.Equal(t, 2, calls)
	assert.False(t, b.IsDeviceOnline("d1"))
}

func TestBase_MarkAllOffline(t *testing.T) {
	b := NewBase(ProtocolModbusTCP)
	require.NoError(t, b.AddDevice(Info{ID: "d1"}))
	require.NoError(t, b.AddDevice(Info{ID: "d2"}))
	b.UpdateDeviceStatus("d1", true)
	b.UpdateDeviceStatus("d2", true)

	var offline []string
	require.NoError(t, b.SetDeviceStatusCallback("d1", func(id string, online bool) {
		if !online {
			offline = append(offline, id)
		}
	}))
	require.NoError(t, b.SetDeviceStatusCallback("d2", func(id string, online bool) {
		if !online {
			offline = append(offline, id)
		}
	}))

	b.MarkAllOffline()
	assert.ElementsMatch(t, []string{"d1", "d2"}, offline)
	assert.False(t, b.IsDeviceOnline("d1"))
	assert.False(t, b.IsDeviceOnline("d2"))
}

func TestRegisterAddress_Compare_Lexicographic(t *testing.T) {
	a := RegisterAddress{Type: HoldingRegister, Address: 100}
	c := RegisterAddress{Type: HoldingRegister, Address: 200}
	assert.True(t, a.Less(c))
	assert.False(t, c.Less(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestValidateRegisterAddress_ModbusBounds(t *testing.T) {
	assert.NoError(t, ValidateRegisterAddress(RegisterAddress{Type: HoldingRegister, Address: 100, Count: 1}))
	assert.Error(t, ValidateRegisterAddress(RegisterAddress{Type: HoldingRegister, Address: 100, Count: 200}))
	assert.Error(t, ValidateRegisterAddress(RegisterAddress{Type: Coil, Address: 100, Count: 3000}))
}

func TestValidateRegisterAddress_EchonetRequiresClassAndEPC(t *testing.T) {
	assert.Error(t, ValidateRegisterAddress(RegisterAddress{Type: EPC}))
	assert.NoError(t, ValidateRegisterAddress(RegisterAddress{Type: EPC, EOJClassGroup: 0x02, EPCCode: 0x80}))
}

func TestValidateWritable_RejectsReadOnlyTypes(t *testing.T) {
	assert.Error(t, ValidateWritable(RegisterAddress{Type: DiscreteInput}))
	assert.Error(t, ValidateWritable(RegisterAddress{Type: InputRegister}))
	assert.NoError(t, ValidateWritable(RegisterAddress{Type: HoldingRegister}))
}

func TestRunReadAsync_DeliversResult(t *testing.T) {
	ch := RunReadAsync(func() ReadResult {
		return SuccessReadResult(NewUint16Value(42))
	})
	result := <-ch
	assert.True(t, result.Success)
	assert.Equal(t, uint16(42), result.Value.Uint16())
}
