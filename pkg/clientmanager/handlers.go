package clientmanager

import (
	"context"
	"encoding/json"

	"github.com/ocppgw/ocpp-gateway/internal/logger"
	"github.com/ocppgw/ocpp-gateway/pkg/evse"
	"github.com/ocppgw/ocpp-gateway/pkg/ocpp"
)

// registerHandlers wires the inbound CSMS-initiated actions this station
// supports, plus the BootNotification result handler that arms the
// heartbeat timer.
func (cm *ClientManager) registerHandlers() {
	cm.proc.RegisterHandler(ocpp.ActionRemoteStartTransaction, cm.handleRemoteStartTransaction)
	cm.proc.RegisterHandler(ocpp.ActionRemoteStopTransaction, cm.handleRemoteStopTransaction)
	cm.proc.RegisterHandler(ocpp.ActionUnlockConnector, cm.handleUnlockConnector)
	cm.proc.RegisterHandler(ocpp.ActionTriggerMessage, cm.handleTriggerMessage)
	cm.proc.RegisterHandler(ocpp.ActionSetChargingProfile, cm.handleSetChargingProfile)
	cm.proc.RegisterHandler(ocpp.ActionDataTransfer, cm.handleDataTransfer)
	cm.proc.SetResultHandler(cm.onResult)
}

func (cm *ClientManager) handleRemoteStartTransaction(_ context.Context, call *ocpp.Call) (any, ocpp.ErrorCode, string) {
	var req ocpp.RemoteStartTransactionRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, ocpp.ErrorFormationViolation, "malformed RemoteStartTransaction payload"
	}
	if req.EvseID == nil {
		return ocpp.RemoteStartTransactionResponse{Status: "Rejected"}, "", ""
	}

	connectorID := *req.EvseID
	m, ok := cm.GetEvseStateMachine(connectorID)
	if !ok {
		return ocpp.RemoteStartTransactionResponse{Status: "Rejected"}, "", ""
	}

	status := "Accepted"
	if !m.ProcessEvent(evse.AuthorizeStart, req.IDToken.IDToken) {
		status = "Rejected"
	}
	return ocpp.RemoteStartTransactionResponse{Status: status}, "", ""
}

func (cm *ClientManager) handleRemoteStopTransaction(_ context.Context, call *ocpp.Call) (any, ocpp.ErrorCode, string) {
	var req ocpp.RemoteStopTransactionRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, ocpp.ErrorFormationViolation, "malformed RemoteStopTransaction payload"
	}

	m, ok := cm.findByTransactionID(req.TransactionID)
	if !ok {
		return ocpp.RemoteStopTransactionResponse{Status: "Rejected"}, "", ""
	}

	status := "Accepted"
	if !m.ProcessEvent(evse.AuthorizeStop, "") {
		status = "Rejected"
	}
	return ocpp.RemoteStopTransactionResponse{Status: status}, "", ""
}

// handleUnlockConnector always reports success; no physical connector lock
// is modeled.
func (cm *ClientManager) handleUnlockConnector(_ context.Context, call *ocpp.Call) (any, ocpp.ErrorCode, string) {
	var req ocpp.UnlockConnectorRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, ocpp.ErrorFormationViolation, "malformed UnlockConnector payload"
	}
	return ocpp.UnlockConnectorResponse{Status: "Unlocked"}, "", ""
}

// handleTriggerMessage re-sends the requested message immediately.
func (cm *ClientManager) handleTriggerMessage(_ context.Context, call *ocpp.Call) (any, ocpp.ErrorCode, string) {
	var req ocpp.TriggerMessageRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, ocpp.ErrorFormationViolation, "malformed TriggerMessage payload"
	}

	switch req.RequestedMessage {
	case "BootNotification":
		go func() {
			if err := cm.sendBootNotification("Triggered"); err != nil {
				logger.Error("failed to send triggered BootNotification", logger.Err(err))
			}
		}()
	case "Heartbeat":
		go cm.sendHeartbeat()
	case "StatusNotification":
		if req.Evse != nil {
			if m, ok := cm.GetEvseStateMachine(req.Evse.ConnectorID); ok {
				go cm.onEvseStatusChange(req.Evse.ConnectorID, m.ConnectorStatus(), "")
			}
		}
	default:
		return ocpp.TriggerMessageResponse{Status: "NotImplemented"}, "", ""
	}
	return ocpp.TriggerMessageResponse{Status: "Accepted"}, "", ""
}

// handleSetChargingProfile acknowledges a profile for a known EVSE. The
// profile body itself is opaque to this gateway's translation layer; it is
// logged, not interpreted.
func (cm *ClientManager) handleSetChargingProfile(_ context.Context, call *ocpp.Call) (any, ocpp.ErrorCode, string) {
	var req ocpp.SetChargingProfileRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, ocpp.ErrorFormationViolation, "malformed SetChargingProfile payload"
	}

	if _, ok := cm.GetEvseStateMachine(req.EvseID); !ok {
		return ocpp.SetChargingProfileResponse{Status: "Rejected"}, "", ""
	}

	logger.Debug("charging profile installed", "evse_id", req.EvseID, "profile", string(req.ChargingProfile))
	return ocpp.SetChargingProfileResponse{Status: "Accepted"}, "", ""
}

// handleDataTransfer accepts any vendor-specific payload without
// interpreting it; no vendor extension is implemented by this gateway.
func (cm *ClientManager) handleDataTransfer(_ context.Context, call *ocpp.Call) (any, ocpp.ErrorCode, string) {
	var req ocpp.DataTransferRequest
	if err := json.Unmarshal(call.Payload, &req); err != nil {
		return nil, ocpp.ErrorFormationViolation, "malformed DataTransfer payload"
	}

	logger.Debug("data transfer received", "vendor_id", req.VendorID, "message_id", req.MessageID)
	return ocpp.DataTransferResponse{Status: "Accepted"}, "", ""
}
