package ocpp

import (
	"encoding/json"
	"fmt"

	"github.com/ocppgw/ocpp-gateway/pkg/gwerr"
)

// Parse decodes a wire-form JSON array into a Message (§4.1). It returns a
// gwerr Protocol error when the outer value is not an array, the type tag
// is not 2/3/4, or a required slot is missing or has the wrong JSON type.
// An unrecognized action does not fail parsing; it surfaces as an Action
// whose Known() is false.
func Parse(raw []byte) (Message, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.Parse", "not a JSON array", err)
	}
	if len(elems) < 3 {
		return nil, gwerr.NewProtocol("ocpp.Parse", "message array too short")
	}

	var msgType int
	if err := json.Unmarshal(elems[0], &msgType); err != nil {
		return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.Parse", "type is not an integer", err)
	}

	var id string
	if err := json.Unmarshal(elems[1], &id); err != nil {
		return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.Parse", "id is not a string", err)
	}

	switch MessageType(msgType) {
	case MessageTypeCall:
		if len(elems) != 4 {
			return nil, gwerr.NewProtocol("ocpp.Parse", "Call requires exactly 4 elements")
		}
		var action string
		if err := json.Unmarshal(elems[2], &action); err != nil {
			return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.Parse", "action is not a string", err)
		}
		return &Call{ID: id, Action: Action(action), Payload: elems[3]}, nil

	case MessageTypeCallResult:
		if len(elems) != 3 {
			return nil, gwerr.NewProtocol("ocpp.Parse", "CallResult requires exactly 3 elements")
		}
		return &CallResult{ID: id, Payload: elems[2]}, nil

	case MessageTypeCallError:
		if len(elems) != 5 {
			return nil, gwerr.NewProtocol("ocpp.Parse", "CallError requires exactly 5 elements")
		}
		var code, description string
		if err := json.Unmarshal(elems[2], &code); err != nil {
			return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.Parse", "code is not a string", err)
		}
		if err := json.Unmarshal(elems[3], &description); err != nil {
			return nil, gwerr.Wrap(gwerr.Protocol, "ocpp.Parse", "description is not a string", err)
		}
		return &CallError{ID: id, Code: ErrorCode(code), Description: description, Details: elems[4]}, nil

	default:
		return nil, gwerr.New(gwerr.Protocol, "ocpp.Parse", fmt.Sprintf("unknown message type %d", msgType))
	}
}

// Serialize encodes a Message to its wire-form JSON array (§4.1).
func Serialize(m Message) ([]byte, error) {
	switch v := m.(type) {
	case *Call:
		payload := v.Payload
		if payload == nil {
			payload = json.RawMessage("{}")
		}
		return json.Marshal([]interface{}{int(MessageTypeCall), v.ID, string(v.Action), payload})

	case *CallResult:
		payload := v.Payload
		if payload == nil {
			payload = json.RawMessage("{}")
		}
		return json.Marshal([]interface{}{int(MessageTypeCallResult), v.ID, payload})

	case *CallError:
		details := v.Details
		if details == nil {
			details = json.RawMessage("{}")
		}
		return json.Marshal([]interface{}{int(MessageTypeCallError), v.ID, string(v.Code), v.Description, details})

	default:
		return nil, gwerr.NewInternal("ocpp.Serialize", "unknown message implementation")
	}
}
