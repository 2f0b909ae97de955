package evse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlugInChargingCycle(t *testing.T) {
	m := New(1, 1)

	var statuses []ConnectorStatus
	m.SetStatusChangeCallback(func(connectorID int, status ConnectorStatus, errorCode string) {
		statuses = append(statuses, status)
	})

	var events []string
	m.SetTransactionEventCallback(func(eventType, triggerReason, transactionID string, connectorID int, idTag string, seqNo int, meterValue float64) {
		events = append(events, eventType+":"+triggerReason)
	})

	require.True(t, m.ProcessEvent(PlugIn, ""))
	assert.Equal(t, Preparing, m.State())
	assert.Equal(t, ConnectorOccupied, m.ConnectorStatus())

	require.True(t, m.ProcessEvent(AuthorizeStart, "TAG001"))
	assert.Equal(t, Charging, m.State())
	require.NotNil(t, m.Transaction())
	assert.Equal(t, "TAG001", m.Transaction().IDTag)

	require.True(t, m.ProcessEvent(StopCharging, ""))
	assert.Equal(t, Finishing, m.State())
	assert.Nil(t, m.Transaction())

	require.True(t, m.ProcessEvent(PlugOut, ""))
	assert.Equal(t, Available, m.State())
	assert.Equal(t, ConnectorAvailable, m.ConnectorStatus())

	assert.Equal(t, []string{"Started:Authorized", "Ended:Local"}, events)
	assert.Equal(t, ConnectorOccupied, statuses[0])
}

func TestStartedAndEndedEvents_CarryCurrentMeterValue(t *testing.T) {
	m := New(1, 1)
	m.SetVariable(Variable{Name: "MeterValue.Energy.Active.Import.Register", Value: "150", DataType: "float"})

	var meterValues []float64
	m.SetTransactionEventCallback(func(eventType, triggerReason, transactionID string, connectorID int, idTag string, seqNo int, meterValue float64) {
		if eventType == "Started" || eventType == "Ended" {
			meterValues = append(meterValues, meterValue)
		}
	})

	require.True(t, m.ProcessEvent(PlugIn, ""))
	require.True(t, m.ProcessEvent(AuthorizeStart, "TAG001"))
	require.True(t, m.ProcessEvent(StopCharging, ""))

	assert.Equal(t, []float64{150, 150}, meterValues)
}

func TestProjectConnectorStatus_MatchesTable(t *testing.T) {
	cases := []struct {
		state State
		want  ConnectorStatus
	}{
		{Available, ConnectorAvailable},
		{Preparing, ConnectorOccupied},
		{Charging, ConnectorOccupied},
		{SuspendedEV, ConnectorOccupied},
		{SuspendedEVSE, ConnectorOccupied},
		{Finishing, ConnectorOccupied},
		{Reserved, ConnectorReserved},
		{Unavailable, ConnectorUnavailable},
		{Faulted, ConnectorFaulted},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, projectConnectorStatus(c.state), "state %v", c.state)
	}
}

func TestTransaction_NeverDoubleActiveOnSameConnector(t *testing.T) {
	m := New(1, 1)
	require.True(t, m.ProcessEvent(PlugIn, ""))
	require.True(t, m.ProcessEvent(AuthorizeStart, "TAG001"))
	first := m.Transaction()
	require.NotNil(t, first)

	// A second AuthorizeStart is not a valid transition from Charging, so
	// it must be rejected without replacing the active transaction.
	ok := m.ProcessEvent(AuthorizeStart, "TAG002")
	assert.False(t, ok)
	assert.Same(t, first, m.Transaction())
}

func TestAuthorizeStop_UsesDeAuthorizedReason(t *testing.T) {
	m := New(1, 1)
	var reasons []string
	m.SetTransactionEventCallback(func(eventType, triggerReason, transactionID string, connectorID int, idTag string, seqNo int, meterValue float64) {
		if eventType == "Ended" {
			reasons = append(reasons, triggerReason)
		}
	})

	require.True(t, m.ProcessEvent(PlugIn, ""))
	require.True(t, m.ProcessEvent(AuthorizeStart, "TAG001"))
	require.True(t, m.ProcessEvent(AuthorizeStop, ""))

	assert.Equal(t, []string{"DeAuthorized"}, reasons)
}

func TestAuthorizeStart_RejectsMissingIDTag(t *testing.T) {
	m := New(1, 1)
	require.True(t, m.ProcessEvent(PlugIn, ""))

	ok := m.ProcessEvent(AuthorizeStart, "")
	assert.False(t, ok)
	assert.Equal(t, Preparing, m.State())
}

func TestInvalidEventInStateIsRejectedWithoutEffect(t *testing.T) {
	m := New(1, 1)
	ok := m.ProcessEvent(StopCharging, "")
	assert.False(t, ok)
	assert.Equal(t, Available, m.State())
}

func TestSuspendAndResumeCharging(t *testing.T) {
	m := New(1, 1)
	require.True(t, m.ProcessEvent(PlugIn, ""))
	require.True(t, m.ProcessEvent(AuthorizeStart, "TAG001"))

	require.True(t, m.ProcessEvent(SuspendChargingEV, ""))
	assert.Equal(t, SuspendedEV, m.State())
	assert.NotNil(t, m.Transaction(), "transaction survives a suspend")

	require.True(t, m.ProcessEvent(ResumeCharging, ""))
	assert.Equal(t, Charging, m.State())
}

func TestFaultDuringChargingStopsTransactionWithFaultedReason(t *testing.T) {
	m := New(1, 1)
	var reasons []string
	m.SetTransactionEventCallback(func(eventType, triggerReason, transactionID string, connectorID int, idTag string, seqNo int, meterValue float64) {
		if eventType == "Ended" {
			reasons = append(reasons, triggerReason)
		}
	})

	require.True(t, m.ProcessEvent(PlugIn, ""))
	require.True(t, m.ProcessEvent(AuthorizeStart, "TAG001"))
	require.True(t, m.ProcessEvent(FaultDetected, ""))

	assert.Equal(t, Faulted, m.State())
	assert.Nil(t, m.Transaction())
	assert.Equal(t, []string{"Faulted"}, reasons)
}

func TestFaultClearedReturnsToAvailable(t *testing.T) {
	m := New(1, 1)
	require.True(t, m.ProcessEvent(FaultDetected, ""))
	assert.Equal(t, Faulted, m.State())

	require.True(t, m.ProcessEvent(FaultCleared, ""))
	assert.Equal(t, Available, m.State())
}

func TestReservationFlow(t *testing.T) {
	m := New(1, 1)
	require.True(t, m.ProcessEvent(Reserve, ""))
	assert.Equal(t, Reserved, m.State())
	assert.Equal(t, ConnectorReserved, m.ConnectorStatus())

	require.True(t, m.ProcessEvent(CancelReservation, ""))
	assert.Equal(t, Available, m.State())
}

func TestMeterValueTimer_StartsOnChargingAndStopsOnExit(t *testing.T) {
	m := New(1, 1)
	m.SetVariable(Variable{Name: "MeterValue.Energy.Active.Import.Register", Value: "100", DataType: "float"})
	m.SetMeterValueInterval(10 * time.Millisecond)

	var samples []float64
	m.SetMeterValueCallback(func(connectorID int, value float64) {
		samples = append(samples, value)
	})

	require.True(t, m.ProcessEvent(PlugIn, ""))
	require.True(t, m.ProcessEvent(AuthorizeStart, "TAG001"))

	time.Sleep(35 * time.Millisecond)
	require.True(t, m.ProcessEvent(StopCharging, ""))

	count := len(samples)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, len(samples), "timer must not keep firing after leaving Charging")
	assert.Greater(t, count, 0)
}
