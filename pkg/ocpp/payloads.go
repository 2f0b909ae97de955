package ocpp

import (
	"encoding/json"
	"time"

	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
)

// Payload shapes for the actions this gateway sends or handles (§4.1,
// §6.1). Payloads are opaque JSON trees inside the codec; these structs
// are the builders/parsers action-specific code uses on either side of
// that boundary.

// ChargingStation describes the charging station in BootNotification.
type ChargingStation struct {
	Model           string `json:"model"`
	VendorName      string `json:"vendorName"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`
}

// BootNotificationRequest is the outbound BootNotification payload.
type BootNotificationRequest struct {
	Reason          string          `json:"reason"`
	ChargingStation ChargingStation `json:"chargingStation"`
}

// BootNotificationResponse is the CSMS's reply to BootNotification.
type BootNotificationResponse struct {
	CurrentTime string `json:"currentTime"`
	Interval    int    `json:"interval"`
	Status      string `json:"status"`
}

// HeartbeatRequest is the (empty) outbound Heartbeat payload.
type HeartbeatRequest struct{}

// HeartbeatResponse carries the CSMS's clock.
type HeartbeatResponse struct {
	CurrentTime string `json:"currentTime"`
}

// StatusNotificationRequest reports a connector's status on transition.
type StatusNotificationRequest struct {
	Timestamp       string `json:"timestamp"`
	ConnectorStatus string `json:"connectorStatus"`
	EvseID          int    `json:"evseId"`
	ConnectorID     int    `json:"connectorId"`
}

// EVSE identifies an EVSE, optionally narrowed to one connector.
type EVSE struct {
	ID          int `json:"id"`
	ConnectorID int `json:"connectorId,omitempty"`
}

// TransactionInfo carries transaction identity and charging state.
type TransactionInfo struct {
	TransactionID string `json:"transactionId"`
	ChargingState string `json:"chargingState,omitempty"`
	StoppedReason string `json:"stoppedReason,omitempty"`
}

// UnitOfMeasure names a sampled value's unit.
type UnitOfMeasure struct {
	Unit string `json:"unit"`
}

// SampledValue is one measurement within a MeterValue.
type SampledValue struct {
	Value         float64        `json:"value"`
	Context       string         `json:"context,omitempty"`
	Measurand     string         `json:"measurand,omitempty"`
	UnitOfMeasure *UnitOfMeasure `json:"unitOfMeasure,omitempty"`
}

// MeterValue is a timestamped set of sampled values.
type MeterValue struct {
	Timestamp    string         `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

// TransactionEventRequest reports a transaction's Started/Updated/Ended
// lifecycle events.
type TransactionEventRequest struct {
	EventType       string          `json:"eventType"`
	Timestamp       string          `json:"timestamp"`
	TriggerReason   string          `json:"triggerReason"`
	SeqNo           int             `json:"seqNo"`
	TransactionInfo TransactionInfo `json:"transactionInfo"`
	Evse            *EVSE           `json:"evse,omitempty"`
	MeterValue      []MeterValue    `json:"meterValue,omitempty"`
}

// MeterValuesRequest reports periodic telemetry for an EVSE.
type MeterValuesRequest struct {
	EvseID     int          `json:"evseId"`
	MeterValue []MeterValue `json:"meterValue"`
}

// IDToken identifies the holder of an authorization credential.
type IDToken struct {
	IDToken string `json:"idToken"`
	Type    string `json:"type"`
}

// AuthorizeRequest asks the CSMS whether an idToken is authorized.
type AuthorizeRequest struct {
	IDToken IDToken `json:"idToken"`
}

// IDTokenInfo carries the CSMS's authorization verdict.
type IDTokenInfo struct {
	Status string `json:"status"`
}

// AuthorizeResponse is the CSMS's authorization verdict.
type AuthorizeResponse struct {
	IDTokenInfo IDTokenInfo `json:"idTokenInfo"`
}

// DataTransferRequest carries a vendor-specific payload in either direction.
type DataTransferRequest struct {
	VendorID  string          `json:"vendorId"`
	MessageID string          `json:"messageId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DataTransferResponse carries the peer's vendor-specific reply.
type DataTransferResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// RemoteStartTransactionRequest is an inbound request to start charging.
type RemoteStartTransactionRequest struct {
	IDToken IDToken `json:"idToken"`
	EvseID  *int    `json:"evseId,omitempty"`
}

// RemoteStartTransactionResponse acknowledges a remote start request.
type RemoteStartTransactionResponse struct {
	Status string `json:"status"`
}

// RemoteStopTransactionRequest is an inbound request to stop a transaction.
type RemoteStopTransactionRequest struct {
	TransactionID string `json:"transactionId"`
}

// RemoteStopTransactionResponse acknowledges a remote stop request.
type RemoteStopTransactionResponse struct {
	Status string `json:"status"`
}

// UnlockConnectorRequest is an inbound request to release a connector lock.
type UnlockConnectorRequest struct {
	EvseID      int `json:"evseId"`
	ConnectorID int `json:"connectorId"`
}

// UnlockConnectorResponse reports the outcome of an unlock request.
type UnlockConnectorResponse struct {
	Status string `json:"status"`
}

// TriggerMessageRequest asks the station to (re)send a specific message.
type TriggerMessageRequest struct {
	RequestedMessage string `json:"requestedMessage"`
	Evse             *EVSE  `json:"evse,omitempty"`
}

// TriggerMessageResponse acknowledges a trigger request.
type TriggerMessageResponse struct {
	Status string `json:"status"`
}

// SetChargingProfileRequest installs a charging profile on an EVSE. The
// profile body itself is out of scope for this gateway's translation layer
// and is passed through opaquely.
type SetChargingProfileRequest struct {
	EvseID          int             `json:"evseId"`
	ChargingProfile json.RawMessage `json:"chargingProfile"`
}

// SetChargingProfileResponse acknowledges a SetChargingProfile request.
type SetChargingProfileResponse struct {
	Status string `json:"status"`
}

// Message factory helpers (§4.1 "action-specific message builders"). Each
// wraps json.Marshal with the action's Call framing so callers never hand-
// assemble payload bytes.

func newCall(action Action, payload any) (*Call, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.newCall", "failed to marshal payload", err)
	}
	return &Call{ID: NewMessageID(), Action: action, Payload: data}, nil
}

// NewBootNotificationCall builds a BootNotification Call for the given reason.
func NewBootNotificationCall(reason, model, vendor string) (*Call, error) {
	return newCall(ActionBootNotification, BootNotificationRequest{
		Reason:          reason,
		ChargingStation: ChargingStation{Model: model, VendorName: vendor},
	})
}

// NewHeartbeatCall builds a Heartbeat Call.
func NewHeartbeatCall() (*Call, error) {
	return newCall(ActionHeartbeat, HeartbeatRequest{})
}

// NewStatusNotificationCall builds a StatusNotification Call for a connector transition.
func NewStatusNotificationCall(evseID, connectorID int, status string, at time.Time) (*Call, error) {
	return newCall(ActionStatusNotification, StatusNotificationRequest{
		Timestamp:       FormatTimestamp(at),
		ConnectorStatus: status,
		EvseID:          evseID,
		ConnectorID:     connectorID,
	})
}

// NewTransactionEventCall builds a TransactionEvent Call.
func NewTransactionEventCall(req TransactionEventRequest) (*Call, error) {
	return newCall(ActionTransactionEvent, req)
}

// NewMeterValuesCall builds a MeterValues Call.
func NewMeterValuesCall(req MeterValuesRequest) (*Call, error) {
	return newCall(ActionMeterValues, req)
}

// NewAuthorizeCall builds an Authorize Call.
func NewAuthorizeCall(idToken, tokenType string) (*Call, error) {
	return newCall(ActionAuthorize, AuthorizeRequest{IDToken: IDToken{IDToken: idToken, Type: tokenType}})
}

// NewCallResult builds a CallResult in reply to call with the given payload.
func NewCallResult(call *Call, payload any) (*CallResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.NewCallResult", "failed to marshal payload", err)
	}
	return &CallResult{ID: call.ID, Payload: data}, nil
}

// NewCallError builds a CallError in reply to call.
func NewCallError(call *Call, code ErrorCode, description string) *CallError {
	return &CallError{ID: call.ID, Code: code, Description: description, Details: json.RawMessage("{}")}
}
