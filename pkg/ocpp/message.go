package ocpp

import "encoding/json"

// MessageType is the wire-level tag distinguishing Call, CallResult and
// CallError (§4.1).
type MessageType int

const (
	MessageTypeCall       MessageType = 2
	MessageTypeCallResult MessageType = 3
	MessageTypeCallError  MessageType = 4
)

// Message is the tagged union of Call, CallResult and CallError (§3.1).
type Message interface {
	messageType() MessageType
	MessageID() string
}

// Call is an outbound or inbound request: [2, id, action, payload].
type Call struct {
	ID      string
	Action  Action
	Payload json.RawMessage
}

func (c *Call) messageType() MessageType { return MessageTypeCall }
func (c *Call) MessageID() string        { return c.ID }

// CallResult is a successful response to a Call: [3, id, payload].
type CallResult struct {
	ID      string
	Payload json.RawMessage
}

func (r *CallResult) messageType() MessageType { return MessageTypeCallResult }
func (r *CallResult) MessageID() string         { return r.ID }

// CallError is a failed response to a Call: [4, id, code, description, details].
type CallError struct {
	ID          string
	Code        ErrorCode
	Description string
	Details     json.RawMessage
}

func (e *CallError) messageType() MessageType { return MessageTypeCallError }
func (e *CallError) MessageID() string         { return e.ID }

var (
	_ Message = (*Call)(nil)
	_ Message = (*CallResult)(nil)
	_ Message = (*CallError)(nil)
)
