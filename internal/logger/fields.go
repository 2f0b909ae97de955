package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the OCPP, EVSE, and
// device-adapter layers. Use these keys consistently so log aggregation and
// querying stays uniform across packages.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// OCPP message layer
	// ========================================================================
	KeyMessageID = "message_id" // OCPP Call/Result/Error id
	KeyAction    = "action"     // OCPP action name
	KeyErrorCode = "error_code" // OCPP CallError code, or domain gwerr.Code
	KeyDirection = "direction"  // inbound, outbound

	// ========================================================================
	// EVSE / connector
	// ========================================================================
	KeyEvseID        = "evse_id"
	KeyConnectorID   = "connector_id"
	KeyState         = "state"         // EvseState
	KeyEvent         = "event"         // EvseEvent
	KeyTransactionID = "transaction_id"

	// ========================================================================
	// Device adapter
	// ========================================================================
	KeyDeviceID   = "device_id"
	KeyProtocol   = "protocol"   // echonet_lite, modbus_rtu, modbus_tcp
	KeyRegister   = "register"   // register address, formatted
	KeyTID        = "tid"        // ECHONET Lite transaction id
	KeyUnitID     = "unit_id"    // Modbus unit id
	KeyConnKey    = "conn_key"   // pool key (serial port or ip:port)
	KeyOnline     = "online"

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"
)

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DeviceID returns a slog.Attr for a device identifier
func DeviceID(id string) slog.Attr {
	return slog.String(KeyDeviceID, id)
}

// EvseID returns a slog.Attr for an EVSE identifier
func EvseID(id int) slog.Attr {
	return slog.Int(KeyEvseID, id)
}

// ConnectorID returns a slog.Attr for a connector identifier
func ConnectorID(id int) slog.Attr {
	return slog.Int(KeyConnectorID, id)
}

// Attempt returns a slog.Attr for the current retry attempt
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
