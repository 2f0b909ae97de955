// Package gwerr is a leaf package with no internal dependencies, providing
// the domain error taxonomy shared by the OCPP codec, the message
// processor, the EVSE state machine, the device adapters, and the variable
// translator.
//
// Import graph: gwerr <- everything else; gwerr imports nothing internal.
package gwerr

import (
	"errors"
	"fmt"
)

// Code represents the category of a gateway error, per the propagation
// policy's taxonomy.
type Code int

const (
	// ConfigValidation indicates bad input from the config collaborator.
	ConfigValidation Code = iota + 1

	// Network indicates transport send/recv failures.
	Network

	// Protocol indicates a malformed OCPP frame, unexpected message type,
	// or unknown pending id.
	Protocol

	// Device indicates a remote device reported a failure.
	Device

	// Timeout indicates a deadline expired (OCPP ack, ECHONET Lite
	// response, Modbus round-trip).
	Timeout

	// Security indicates a TLS verify failure, certificate error, or auth
	// rejection.
	Security

	// Internal indicates a broken precondition or invariant violation.
	Internal

	// Translation indicates a variable-translator failure.
	Translation
)

// String returns a human-readable name for the error code.
func (c Code) String() string {
	switch c {
	case ConfigValidation:
		return "ConfigValidation"
	case Network:
		return "Network"
	case Protocol:
		return "Protocol"
	case Device:
		return "Device"
	case Timeout:
		return "Timeout"
	case Security:
		return "Security"
	case Internal:
		return "Internal"
	case Translation:
		return "Translation"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is the gateway's domain error type. Op names the failing operation
// (e.g. "modbus.readRegister"); DeviceID and Address are populated when the
// failure is attributable to a specific device/register; OSCode carries an
// underlying OS-level error code when one is available (§7).
type Error struct {
	Code     Code
	Op       string
	Message  string
	DeviceID string
	Address  string
	OSCode   int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.DeviceID != "" {
		msg = fmt.Sprintf("%s (device=%s)", msg, e.DeviceID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a *Error with the same Code, supporting
// errors.Is(err, gwerr.ErrProtocol) style sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels usable with errors.Is to test the category of an error without
// inspecting fields.
var (
	ErrConfigValidation = &Error{Code: ConfigValidation}
	ErrNetwork          = &Error{Code: Network}
	ErrProtocol         = &Error{Code: Protocol}
	ErrDevice           = &Error{Code: Device}
	ErrTimeout          = &Error{Code: Timeout}
	ErrSecurity         = &Error{Code: Security}
	ErrInternal         = &Error{Code: Internal}
	ErrTranslation      = &Error{Code: Translation}
)

// New builds an *Error for the given code.
func New(code Code, op, message string) *Error {
	return &Error{Code: code, Op: op, Message: message}
}

// Wrap builds an *Error for the given code, wrapping an underlying error.
func Wrap(code Code, op, message string, err error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

// WithDevice returns a copy of e annotated with a device id.
func (e *Error) WithDevice(deviceID string) *Error {
	clone := *e
	clone.DeviceID = deviceID
	return &clone
}

// WithAddress returns a copy of e annotated with a register address string.
func (e *Error) WithAddress(address string) *Error {
	clone := *e
	clone.Address = address
	return &clone
}

// WithOSCode returns a copy of e annotated with an underlying OS error code.
func (e *Error) WithOSCode(code int) *Error {
	clone := *e
	clone.OSCode = code
	return &clone
}

// NewConfigValidation creates a ConfigValidation error.
func NewConfigValidation(op, message string) *Error {
	return New(ConfigValidation, op, message)
}

// NewNetwork creates a Network error, optionally wrapping an I/O error.
func NewNetwork(op, message string, err error) *Error {
	return Wrap(Network, op, message, err)
}

// NewProtocol creates a Protocol error.
func NewProtocol(op, message string) *Error {
	return New(Protocol, op, message)
}

// NewDevice creates a Device error.
func NewDevice(op, message, deviceID string) *Error {
	return New(Device, op, message).WithDevice(deviceID)
}

// NewTimeout creates a Timeout error.
func NewTimeout(op, message string) *Error {
	return New(Timeout, op, message)
}

// NewSecurity creates a Security error.
func NewSecurity(op, message string) *Error {
	return New(Security, op, message)
}

// NewInternal creates an Internal error.
func NewInternal(op, message string) *Error {
	return New(Internal, op, message)
}

// NewTranslation creates a Translation error.
func NewTranslation(op, message string) *Error {
	return New(Translation, op, message)
}
