package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped logging context threaded through the
// OCPP message processor and the EVSE state machines it drives.
type LogContext struct {
	TraceID       string
	SpanID        string
	EvseID        int
	ConnectorID   int
	DeviceID      string
	TransactionID string
	StartTime     time.Time
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext, stamped with the current time for
// later duration calculation.
func NewLogContext() *LogContext {
	return &LogContext{StartTime: time.Now()}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithEvse returns a copy with the evse/connector set
func (lc *LogContext) WithEvse(evseID, connectorID int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.EvseID = evseID
		clone.ConnectorID = connectorID
	}
	return clone
}

// WithDevice returns a copy with the device id set
func (lc *LogContext) WithDevice(deviceID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.DeviceID = deviceID
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
