package evse

import (
	"sync"
	"time"
)

// StatusChangeCallback is invoked when the projected ConnectorStatus
// changes.
type StatusChangeCallback func(connectorID int, status ConnectorStatus, errorCode string)

// MeterValueCallback is invoked once per meter-value timer tick while
// Charging.
type MeterValueCallback func(connectorID int, value float64)

// TransactionEventCallback is invoked on transaction Started/Updated/Ended
// transitions (§4.4).
type TransactionEventCallback func(eventType, triggerReason, transactionID string, connectorID int, idTag string, seqNo int, meterValue float64)

// transitions maps (State, Event) to the resulting State. Entries absent
// from this table are invalid in that state and are rejected without
// effect.
var transitions = map[State]map[Event]State{
	Available: {
		PlugIn:         Preparing,
		Reserve:        Reserved,
		SetUnavailable: Unavailable,
		FaultDetected:  Faulted,
	},
	Preparing: {
		PlugOut:        Available,
		AuthorizeStart: Charging,
		SetUnavailable: Unavailable,
		FaultDetected:  Faulted,
	},
	Charging: {
		AuthorizeStop:       Finishing,
		StopCharging:        Finishing,
		SuspendChargingEV:   SuspendedEV,
		SuspendChargingEVSE: SuspendedEVSE,
		FaultDetected:       Faulted,
	},
	SuspendedEV: {
		AuthorizeStop:  Finishing,
		StopCharging:   Finishing,
		ResumeCharging: Charging,
		FaultDetected:  Faulted,
	},
	SuspendedEVSE: {
		AuthorizeStop:  Finishing,
		StopCharging:   Finishing,
		ResumeCharging: Charging,
		FaultDetected:  Faulted,
	},
	Finishing: {
		PlugOut:       Available,
		FaultDetected: Faulted,
	},
	Reserved: {
		PlugIn:            Preparing,
		CancelReservation: Available,
		SetUnavailable:    Unavailable,
		FaultDetected:     Faulted,
	},
	Unavailable: {
		SetAvailable:  Available,
		FaultDetected: Faulted,
	},
	Faulted: {
		FaultCleared: Available,
	},
}

// Machine is the per-connector EVSE state machine.
type Machine struct {
	mu sync.Mutex

	evseID      int
	connectorID int

	state           State
	connectorStatus ConnectorStatus
	transaction     *Transaction

	variables *variableStore

	onStatusChange     StatusChangeCallback
	onMeterValue       MeterValueCallback
	onTransactionEvent TransactionEventCallback

	heartbeat          *machineTimer
	meterValue         *machineTimer
	meterValueInterval time.Duration
}

// New creates a Machine for the given EVSE/connector pair, starting in
// Available.
func New(evseID, connectorID int) *Machine {
	m := &Machine{
		evseID:          evseID,
		connectorID:     connectorID,
		state:           Available,
		connectorStatus: ConnectorAvailable,
		variables:       newVariableStore(),
	}
	m.heartbeat = newMachineTimer(func() { /* no side effect beyond existence, §4.4 */ })
	m.meterValue = newMachineTimer(m.onMeterValueTick)
	return m
}

// SetStatusChangeCallback installs the connector-status callback.
func (m *Machine) SetStatusChangeCallback(cb StatusChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStatusChange = cb
}

// SetMeterValueCallback installs the meter-sample callback.
func (m *Machine) SetMeterValueCallback(cb MeterValueCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onMeterValue = cb
}

// SetTransactionEventCallback installs the transaction-event callback.
func (m *Machine) SetTransactionEventCallback(cb TransactionEventCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransactionEvent = cb
}

// EVSEID returns the EVSE id this machine belongs to.
func (m *Machine) EVSEID() int { return m.evseID }

// ConnectorID returns the connector id this machine belongs to.
func (m *Machine) ConnectorID() int { return m.connectorID }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ConnectorStatus returns the current projected connector status.
func (m *Machine) ConnectorStatus() ConnectorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectorStatus
}

// Transaction returns a copy of the active transaction, or nil if none.
func (m *Machine) Transaction() *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transaction == nil {
		return nil
	}
	cp := *m.transaction
	return &cp
}

// SetVariable installs or replaces a device variable.
func (m *Machine) SetVariable(v Variable) {
	m.variables.Set(v)
}

// Variable returns the named variable.
func (m *Machine) Variable(name string) (Variable, bool) {
	return m.variables.Get(name)
}

// ProcessEvent applies event to the machine. idTag is only consulted for
// AuthorizeStart/AuthorizeStop; it is ignored otherwise. Returns false
// without effect if the event is invalid in the current state, or if
// AuthorizeStart fails validation (no idTag, or a transaction already
// active).
func (m *Machine) ProcessEvent(event Event, idTag string) bool {
	return m.processEventAt(event, idTag, time.Now())
}

func (m *Machine) processEventAt(event Event, idTag string, now time.Time) bool {
	m.mu.Lock()

	next, ok := transitions[m.state][event]
	if !ok {
		m.mu.Unlock()
		return false
	}

	from := m.state

	if next == Charging && event == AuthorizeStart {
		if idTag == "" || (m.transaction != nil && m.transaction.Status == TransactionActive) {
			m.mu.Unlock()
			return false
		}
	}

	var txEvent *transactionEventPayload

	if next == Charging && event == AuthorizeStart {
		m.transaction = newTransaction(idTag, now)
		txEvent = &transactionEventPayload{
			eventType:     "Started",
			triggerReason: "Authorized",
			transactionID: m.transaction.ID,
			idTag:         idTag,
			seqNo:         m.transaction.SequenceNumber(),
		}
	}

	if next == Finishing {
		reason := "Local"
		if event == AuthorizeStop {
			reason = "DeAuthorized"
		}
		txEvent = m.endTransactionLocked(reason, now)
	}

	if next == Faulted && (from == Charging || from == SuspendedEV || from == SuspendedEVSE) {
		txEvent = m.endTransactionLocked("Faulted", now)
	}

	m.state = next
	newStatus := projectConnectorStatus(next)
	statusChanged := newStatus != m.connectorStatus
	m.connectorStatus = newStatus

	statusCb := m.onStatusChange
	txCb := m.onTransactionEvent
	connectorID := m.connectorID

	m.mu.Unlock()

	if statusChanged && statusCb != nil {
		statusCb(connectorID, newStatus, "")
	}
	if txEvent != nil && txCb != nil {
		meterValue, _ := m.currentMeterValue()
		txCb(txEvent.eventType, txEvent.triggerReason, txEvent.transactionID, connectorID, txEvent.idTag, txEvent.seqNo, meterValue)
	}

	if next == Charging && from != Charging {
		m.StartMeterValueTimer(0)
	}
	if from == Charging && next != Charging {
		m.StopMeterValueTimer()
	}

	return true
}

type transactionEventPayload struct {
	eventType     string
	triggerReason string
	transactionID string
	idTag         string
	seqNo         int
}

// endTransactionLocked ends the active transaction, if any, and returns
// the Ended event payload to emit. Caller must hold m.mu.
func (m *Machine) endTransactionLocked(reason string, now time.Time) *transactionEventPayload {
	if m.transaction == nil {
		return nil
	}
	t := m.transaction
	t.end(TransactionCompleted, now)
	payload := &transactionEventPayload{
		eventType:     "Ended",
		triggerReason: reason,
		transactionID: t.ID,
		idTag:         t.IDTag,
		seqNo:         t.SequenceNumber(),
	}
	m.transaction = nil
	return payload
}

func (m *Machine) addMeterValue(value float64, now time.Time) {
	m.mu.Lock()
	var t *Transaction
	if m.transaction != nil {
		m.transaction.addMeterValue(value, now)
		t = m.transaction
	}
	cb := m.onTransactionEvent
	meterCb := m.onMeterValue
	connectorID := m.connectorID
	m.mu.Unlock()

	if meterCb != nil {
		meterCb(connectorID, value)
	}
	if t != nil && cb != nil {
		cb("Updated", "MeterValue", t.ID, connectorID, t.IDTag, t.SequenceNumber(), value)
	}
}
