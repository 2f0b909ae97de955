package ocpp

// Action identifies an OCPP 2.0.1 Call action (§3.1). The closed set below
// covers every action this gateway sends or handles; any other string is a
// syntactically valid but unknown action (§4.1).
type Action string

const (
	ActionAuthorize             Action = "Authorize"
	ActionBootNotification      Action = "BootNotification"
	ActionCancelReservation     Action = "CancelReservation"
	ActionChangeAvailability    Action = "ChangeAvailability"
	ActionClearCache            Action = "ClearCache"
	ActionClearChargingProfile  Action = "ClearChargingProfile"
	ActionDataTransfer          Action = "DataTransfer"
	ActionGetCompositeSchedule  Action = "GetCompositeSchedule"
	ActionGetConfiguration      Action = "GetConfiguration"
	ActionGetDiagnostics        Action = "GetDiagnostics"
	ActionGetLocalListVersion   Action = "GetLocalListVersion"
	ActionHeartbeat             Action = "Heartbeat"
	ActionMeterValues           Action = "MeterValues"
	ActionRemoteStartTransaction Action = "RemoteStartTransaction"
	ActionRemoteStopTransaction  Action = "RemoteStopTransaction"
	ActionReset                 Action = "Reset"
	ActionSendLocalList          Action = "SendLocalList"
	ActionSetChargingProfile     Action = "SetChargingProfile"
	ActionStatusNotification     Action = "StatusNotification"
	ActionTransactionEvent       Action = "TransactionEvent"
	ActionTriggerMessage         Action = "TriggerMessage"
	ActionUnlockConnector        Action = "UnlockConnector"
	ActionUpdateFirmware         Action = "UpdateFirmware"
)

var knownActions = map[Action]bool{
	ActionAuthorize:              true,
	ActionBootNotification:       true,
	ActionCancelReservation:      true,
	ActionChangeAvailability:     true,
	ActionClearCache:             true,
	ActionClearChargingProfile:   true,
	ActionDataTransfer:           true,
	ActionGetCompositeSchedule:   true,
	ActionGetConfiguration:       true,
	ActionGetDiagnostics:         true,
	ActionGetLocalListVersion:    true,
	ActionHeartbeat:              true,
	ActionMeterValues:            true,
	ActionRemoteStartTransaction: true,
	ActionRemoteStopTransaction:  true,
	ActionReset:                  true,
	ActionSendLocalList:          true,
	ActionSetChargingProfile:     true,
	ActionStatusNotification:     true,
	ActionTransactionEvent:       true,
	ActionTriggerMessage:         true,
	ActionUnlockConnector:        true,
	ActionUpdateFirmware:         true,
}

// Known reports whether a is one of the closed set of recognized actions.
func (a Action) Known() bool {
	return knownActions[a]
}
