package ocpp

// ErrorCode is the closed set of OCPP CallError codes (§3.1).
type ErrorCode string

const (
	ErrorNotImplemented                 ErrorCode = "NotImplemented"
	ErrorNotSupported                   ErrorCode = "NotSupported"
	ErrorInternalError                  ErrorCode = "InternalError"
	ErrorProtocolError                  ErrorCode = "ProtocolError"
	ErrorSecurityError                  ErrorCode = "SecurityError"
	ErrorFormationViolation             ErrorCode = "FormationViolation"
	ErrorPropertyConstraintViolation    ErrorCode = "PropertyConstraintViolation"
	ErrorOccurrenceConstraintViolation  ErrorCode = "OccurrenceConstraintViolation"
	ErrorTypeConstraintViolation        ErrorCode = "TypeConstraintViolation"
	ErrorGenericError                   ErrorCode = "GenericError"
)
