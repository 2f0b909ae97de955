// Package clientmanager wires the WebSocket transport, the OCPP message
// processor, and the per-connector EVSE state machines into a single OCPP
// client (§4.3's "owner" of a Transport, generalizing the original's
// OcppClientManager).
package clientmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/config"
	"github.com/ocppgw/ocpp-gateway/pkg/evse"
	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
	"github.com/ocppgw/ocpp-gateway/pkg/ocpp"
	"github.com/ocppgw/ocpp-gateway/pkg/ocpp/processor"
	"github.com/ocppgw/ocpp-gateway/pkg/transport"
)

// TransportFactory builds a Transport bound to cb; implementations own the
// concrete WebSocket connection (none is wired in this module, §4.3
// non-goal). Tests substitute a fake factory building a fake Transport.
type TransportFactory func(cfg transport.Config, cb transport.Callbacks) transport.Transport

// ClientManager owns one OCPP station's connection to the CSMS and its
// managed connectors.
type ClientManager struct {
	cfg       config.OcppClientConfig
	newWS     TransportFactory
	ws        transport.Transport
	proc      *processor.Processor
	heartbeat *repeatingTimer

	mu       sync.Mutex
	machines map[int]*evse.Machine // keyed by connectorID
}

// New creates a ClientManager for cfg. The processor's offline queue is
// bounded by queueCfg; the transport itself is not constructed until
// Start.
func New(cfg config.OcppClientConfig, queueCfg processor.Config, newWS TransportFactory) *ClientManager {
	cm := &ClientManager{
		cfg:      cfg,
		newWS:    newWS,
		proc:     processor.New(queueCfg),
		machines: make(map[int]*evse.Machine),
	}
	cm.registerHandlers()
	return cm
}

// Start builds the transport and begins connecting.
func (cm *ClientManager) Start() error {
	tcfg := transport.Config{
		URL:                  cm.cfg.CsmsURL,
		CACertPath:           cm.cfg.CaCertPath,
		ClientCertPath:       cm.cfg.ClientCertPath,
		ClientKeyPath:        cm.cfg.ClientKeyPath,
		VerifyPeer:           cm.cfg.VerifyPeer,
		ConnectTimeout:       cm.cfg.ConnectTimeout,
		ReconnectInterval:    cm.cfg.ReconnectInterval,
		MaxReconnectInterval: cm.cfg.MaxReconnectInterval,
		MaxReconnectAttempts: cm.cfg.MaxReconnectAttempts,
		HeartbeatInterval:    cm.cfg.HeartbeatInterval,
	}
	cm.ws = cm.newWS(tcfg, transport.Callbacks{
		OnOpen:        cm.onWebSocketConnect,
		OnTextMessage: cm.onWebSocketMessage,
		OnClose:       cm.onWebSocketClose,
		OnError:       cm.onWebSocketError,
	})
	cm.proc.SetSender(cm.ws)
	return cm.ws.Connect()
}

// Stop closes the transport and cancels the heartbeat timer.
func (cm *ClientManager) Stop() {
	if cm.heartbeat != nil {
		cm.heartbeat.Stop()
	}
	if cm.ws != nil {
		cm.ws.Close("client manager stopping")
	}
}

// IsConnected reports whether the transport is in the Connected state.
func (cm *ClientManager) IsConnected() bool {
	return cm.ws != nil && cm.ws.State() == transport.Connected
}

// QueueSize returns the number of messages waiting in the offline queue.
func (cm *ClientManager) QueueSize() int {
	return cm.proc.QueueSize()
}

func (cm *ClientManager) onWebSocketConnect(success bool) {
	if !success {
		logger.Warn("CSMS connection attempt failed")
		return
	}
	cm.proc.SetConnected(true)
	if err := cm.sendBootNotification("PowerUp"); err != nil {
		logger.Error("failed to send BootNotification", logger.Err(err))
	}
}

func (cm *ClientManager) onWebSocketMessage(text string) {
	ctx := context.Background()
	reply, err := cm.proc.HandleInbound(ctx, []byte(text))
	if err != nil {
		logger.ErrorCtx(ctx, "failed to handle inbound message", logger.Err(err))
		return
	}
	if reply != nil {
		cm.ws.Send(string(reply))
	}
}

func (cm *ClientManager) onWebSocketClose(reason string) {
	logger.Info("CSMS connection closed", "reason", reason)
	cm.proc.SetConnected(false)
	if cm.heartbeat != nil {
		cm.heartbeat.Stop()
	}
}

func (cm *ClientManager) onWebSocketError(message string, code string) {
	logger.Error("CSMS transport error", "message", message, "code", code)
}

// sendBootNotification sends a BootNotification for the given reason. The
// processor's result handler, onResult, starts the heartbeat timer once the
// CSMS accepts it.
func (cm *ClientManager) sendBootNotification(reason string) error {
	call, err := ocpp.NewBootNotificationCall(reason, cm.cfg.ChargePointModel, cm.cfg.ChargePointVendor)
	if err != nil {
		return err
	}
	return cm.proc.SendCall(call)
}

// sendHeartbeat sends a Heartbeat Call.
func (cm *ClientManager) sendHeartbeat() {
	call, err := ocpp.NewHeartbeatCall()
	if err != nil {
		logger.Error("failed to build Heartbeat call", logger.Err(err))
		return
	}
	if err := cm.proc.SendCall(call); err != nil {
		logger.Error("failed to send Heartbeat", logger.Err(err))
	}
}

// onResult is the processor ResultHandler: on a BootNotification Accepted
// response it (re)starts the heartbeat timer at the CSMS-supplied interval,
// falling back to the configured interval when that interval is not
// positive (E1). A response that fails to parse is logged and ignored.
func (cm *ClientManager) onResult(action ocpp.Action, payload []byte) {
	if action != ocpp.ActionBootNotification {
		return
	}
	var resp ocpp.BootNotificationResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		logger.Error("failed to parse BootNotification response", logger.Err(err))
		return
	}
	if resp.Status != "Accepted" {
		logger.Warn("BootNotification rejected by CSMS", "status", resp.Status)
		return
	}

	interval := time.Duration(resp.Interval) * time.Second
	if interval <= 0 {
		interval = cm.cfg.HeartbeatInterval
	}
	if cm.heartbeat == nil {
		cm.heartbeat = newRepeatingTimer(cm.sendHeartbeat)
	}
	cm.heartbeat.Start(interval)
}

// AddEvse registers a new connector, creating its state machine and wiring
// its status/meter/transaction callbacks to outbound OCPP messages.
func (cm *ClientManager) AddEvse(evseID, connectorID int) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.machines[connectorID]; exists {
		return gwerr.NewConfigValidation("clientmanager.AddEvse", fmt.Sprintf("connector %d already registered", connectorID))
	}

	m := evse.New(evseID, connectorID)
	m.SetStatusChangeCallback(cm.onEvseStatusChange)
	m.SetMeterValueCallback(cm.onEvseMeterValue)
	m.SetTransactionEventCallback(cm.onEvseTransactionEvent)
	cm.machines[connectorID] = m
	return nil
}

// RemoveEvse unregisters a connector.
func (cm *ClientManager) RemoveEvse(connectorID int) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if _, exists := cm.machines[connectorID]; !exists {
		return gwerr.New(gwerr.Device, "clientmanager.RemoveEvse", fmt.Sprintf("connector %d not registered", connectorID))
	}
	delete(cm.machines, connectorID)
	return nil
}

// GetEvseStateMachine returns the state machine for connectorID.
func (cm *ClientManager) GetEvseStateMachine(connectorID int) (*evse.Machine, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	m, ok := cm.machines[connectorID]
	return m, ok
}

// ProcessEvseEvent applies event to the named connector's state machine.
func (cm *ClientManager) ProcessEvseEvent(connectorID int, event evse.Event, idTag string) bool {
	m, ok := cm.GetEvseStateMachine(connectorID)
	if !ok {
		return false
	}
	return m.ProcessEvent(event, idTag)
}

func (cm *ClientManager) findByTransactionID(transactionID string) (*evse.Machine, bool) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, m := range cm.machines {
		if tx := m.Transaction(); tx != nil && tx.ID == transactionID {
			return m, true
		}
	}
	return nil, false
}

// onEvseStatusChange sends a StatusNotification when a connector's
// projected status changes.
func (cm *ClientManager) onEvseStatusChange(connectorID int, status evse.ConnectorStatus, errorCode string) {
	m, ok := cm.GetEvseStateMachine(connectorID)
	if !ok {
		return
	}
	call, err := ocpp.NewStatusNotificationCall(m.EVSEID(), connectorID, status.String(), time.Now())
	if err != nil {
		logger.Error("failed to build StatusNotification call", logger.Err(err))
		return
	}
	if err := cm.proc.SendCall(call); err != nil {
		logger.Error("failed to send StatusNotification", logger.Err(err))
	}
}

// onEvseMeterValue sends a MeterValues report for one sampled reading.
func (cm *ClientManager) onEvseMeterValue(connectorID int, value float64) {
	m, ok := cm.GetEvseStateMachine(connectorID)
	if !ok {
		return
	}
	call, err := ocpp.NewMeterValuesCall(ocpp.MeterValuesRequest{
		EvseID: m.EVSEID(),
		MeterValue: []ocpp.MeterValue{{
			Timestamp:    ocpp.FormatTimestamp(time.Now()),
			SampledValue: []ocpp.SampledValue{{Value: value, Measurand: "Energy.Active.Import.Register"}},
		}},
	})
	if err != nil {
		logger.Error("failed to build MeterValues call", logger.Err(err))
		return
	}
	if err := cm.proc.SendCall(call); err != nil {
		logger.Error("failed to send MeterValues", logger.Err(err))
	}
}

// onEvseTransactionEvent sends a TransactionEvent report for a
// Started/Updated/Ended transition.
func (cm *ClientManager) onEvseTransactionEvent(eventType, triggerReason, transactionID string, connectorID int, idTag string, seqNo int, meterValue float64) {
	m, ok := cm.GetEvseStateMachine(connectorID)
	if !ok {
		return
	}

	req := ocpp.TransactionEventRequest{
		EventType:       eventType,
		Timestamp:       ocpp.FormatTimestamp(time.Now()),
		TriggerReason:   triggerReason,
		SeqNo:           seqNo,
		TransactionInfo: ocpp.TransactionInfo{TransactionID: transactionID},
		Evse:            &ocpp.EVSE{ID: m.EVSEID(), ConnectorID: connectorID},
	}
	if meterValue != 0 {
		req.MeterValue = []ocpp.MeterValue{{
			Timestamp:    req.Timestamp,
			SampledValue: []ocpp.SampledValue{{Value: meterValue, Measurand: "Energy.Active.Import.Register"}},
		}}
	}

	call, err := ocpp.NewTransactionEventCall(req)
	if err != nil {
		logger.Error("failed to build TransactionEvent call", logger.Err(err))
		return
	}
	if err := cm.proc.SendCall(call); err != nil {
		logger.Error("failed to send TransactionEvent", logger.Err(err))
	}
}
