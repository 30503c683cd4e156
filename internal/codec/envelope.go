// Package codec implements the OCPP 1.6-J wire framing codec: a tagged
// JSON-array envelope with three variants (Call, CallResult, CallError), and
// the two-phase decode (envelope first, payload second) that the untagged
// payload ADT in internal/ocpp requires.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/ocpp-central/station/internal/ocpp"
)

// ErrorKind classifies a decode failure the way §7 of the protocol contract
// does, so the session engine can switch on kind instead of string-matching
// error messages.
type ErrorKind string

const (
	// FramingError is a top-level JSON parse failure; the peer's frame is
	// unidentifiable and nothing is echoed back.
	FramingError ErrorKind = "FramingError"
	// ProtocolError is a well-formed JSON array with a bad type-id or
	// element count.
	ProtocolError ErrorKind = "ProtocolError"
	// NotSupported is an unknown or unimplemented action.
	NotSupported ErrorKind = "NotSupported"
	// FormationViolation is a payload that does not structurally match the
	// expected direction for its action.
	FormationViolation ErrorKind = "FormationViolation"
)

// DecodeError carries enough context to let the dispatcher synthesize the
// matching CallError without re-deriving it from a bare error string.
type DecodeError struct {
	Kind      ErrorKind
	MessageID string // may be empty if the envelope never yielded one
	Action    string // raw action string, for NotSupported
	Details   map[string]interface{}
	Cause     error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("codec: %s", e.Kind)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// MessageTypeID mirrors ocpp.MessageType but lives in the codec so envelope
// length/type-id checks don't need to import dispatch-layer concerns.
type MessageTypeID int

const (
	TypeCall       MessageTypeID = 2
	TypeCallResult MessageTypeID = 3
	TypeCallError  MessageTypeID = 4
)

// Call is a decoded, not-yet-payload-typed inbound request.
type Call struct {
	MessageID string
	Action    string // raw string; caller resolves against ocpp.ParseAction
	Payload   json.RawMessage
}

// CallResult is a decoded, not-yet-payload-typed inbound response.
type CallResult struct {
	MessageID string
	Payload   json.RawMessage
}

// CallErrorFrame is a decoded inbound error frame.
type CallErrorFrame struct {
	MessageID        string
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// Envelope is the result of decoding the outer array: exactly one of Call,
// CallResult, or CallError is non-nil, keyed by the observed MessageTypeID.
type Envelope struct {
	TypeID     MessageTypeID
	Call       *Call
	CallResult *CallResult
	CallError  *CallErrorFrame
}

// DecodeEnvelope parses text into an Envelope without touching the payload
// shape. Payload decoding is the job of DecodeRequestPayload and
// DecodeResponsePayload (payload.go) — collapsing
// the two phases would force backtracking once the action string, itself an
// envelope element, is known to select the payload variant.
func DecodeEnvelope(text []byte) (*Envelope, *DecodeError) {
	var raw []json.RawMessage
	if err := json.Unmarshal(text, &raw); err != nil {
		return nil, &DecodeError{Kind: FramingError, Cause: err}
	}
	if len(raw) == 0 {
		return nil, &DecodeError{Kind: FramingError, Cause: fmt.Errorf("empty array")}
	}

	var typeID int
	if err := json.Unmarshal(raw[0], &typeID); err != nil {
		return nil, &DecodeError{Kind: ProtocolError, Cause: fmt.Errorf("messageTypeId is not an integer: %w", err)}
	}

	// The array's arity, not the declared type-id, determines which shape the
	// peer meant: a 4-element array is Call-shaped (messageId at raw[1])
	// regardless of what type-id it carries. A type-id that disagrees with
	// the arity-implied shape is a type-id mismatch against that shape, not a
	// length mismatch against the type-id's own shape — e.g. a 4-element
	// array with type-id 3 is a Call with the wrong type-id, not an
	// undersized CallResult.
	switch len(raw) {
	case 4:
		if MessageTypeID(typeID) != TypeCall {
			return nil, typeMismatchError(raw, TypeCall, typeID, "Call")
		}
		return decodeCall(raw)
	case 3:
		if MessageTypeID(typeID) != TypeCallResult {
			return nil, typeMismatchError(raw, TypeCallResult, typeID, "CallResult")
		}
		return decodeCallResult(raw)
	case 5:
		if MessageTypeID(typeID) != TypeCallError {
			return nil, typeMismatchError(raw, TypeCallError, typeID, "CallError")
		}
		return decodeCallError(raw)
	default:
		switch MessageTypeID(typeID) {
		case TypeCall:
			return decodeCall(raw)
		case TypeCallResult:
			return decodeCallResult(raw)
		case TypeCallError:
			return decodeCallError(raw)
		default:
			return nil, &DecodeError{
				Kind:    ProtocolError,
				Details: map[string]interface{}{"received": typeID},
				Cause:   fmt.Errorf("unknown messageTypeId %d", typeID),
			}
		}
	}
}

// typeMismatchError reports a type-id that disagrees with the shape implied
// by the array's arity. The message id is still recoverable from raw[1]
// since that position is common to all three shapes.
func typeMismatchError(raw []json.RawMessage, expected MessageTypeID, received int, shape string) *DecodeError {
	return &DecodeError{
		Kind:      ProtocolError,
		MessageID: messageIDOrEmpty(raw, 1),
		Details:   map[string]interface{}{"expected": int(expected), "received": received},
		Cause:     fmt.Errorf("Invalid MessageTypeId for %s", shape),
	}
}

func decodeCall(raw []json.RawMessage) (*Envelope, *DecodeError) {
	if len(raw) != 4 {
		msgID := messageIDOrEmpty(raw, 1)
		return nil, &DecodeError{
			Kind:      ProtocolError,
			MessageID: msgID,
			Details:   map[string]interface{}{"expected": 4, "received": len(raw)},
			Cause:     fmt.Errorf("Call requires 4 elements, got %d", len(raw)),
		}
	}
	var msgID, action string
	if err := json.Unmarshal(raw[1], &msgID); err != nil {
		return nil, &DecodeError{Kind: ProtocolError, Cause: fmt.Errorf("messageId is not a string: %w", err)}
	}
	if err := json.Unmarshal(raw[2], &action); err != nil {
		return nil, &DecodeError{Kind: ProtocolError, MessageID: msgID, Cause: fmt.Errorf("action is not a string: %w", err)}
	}
	return &Envelope{
		TypeID: TypeCall,
		Call: &Call{
			MessageID: msgID,
			Action:    action,
			Payload:   raw[3],
		},
	}, nil
}

func decodeCallResult(raw []json.RawMessage) (*Envelope, *DecodeError) {
	if len(raw) != 3 {
		msgID := messageIDOrEmpty(raw, 1)
		return nil, &DecodeError{
			Kind:      ProtocolError,
			MessageID: msgID,
			Details:   map[string]interface{}{"expected": 3, "received": len(raw)},
			Cause:     fmt.Errorf("CallResult requires 3 elements, got %d", len(raw)),
		}
	}
	var msgID string
	if err := json.Unmarshal(raw[1], &msgID); err != nil {
		return nil, &DecodeError{Kind: ProtocolError, Cause: fmt.Errorf("messageId is not a string: %w", err)}
	}
	return &Envelope{
		TypeID:     TypeCallResult,
		CallResult: &CallResult{MessageID: msgID, Payload: raw[2]},
	}, nil
}

func decodeCallError(raw []json.RawMessage) (*Envelope, *DecodeError) {
	if len(raw) != 5 {
		msgID := messageIDOrEmpty(raw, 1)
		return nil, &DecodeError{
			Kind:      ProtocolError,
			MessageID: msgID,
			Details:   map[string]interface{}{"expected": 5, "received": len(raw)},
			Cause:     fmt.Errorf("CallError requires 5 elements, got %d", len(raw)),
		}
	}
	var msgID, code, desc string
	if err := json.Unmarshal(raw[1], &msgID); err != nil {
		return nil, &DecodeError{Kind: ProtocolError, Cause: fmt.Errorf("messageId is not a string: %w", err)}
	}
	_ = json.Unmarshal(raw[2], &code)
	_ = json.Unmarshal(raw[3], &desc)
	return &Envelope{
		TypeID: TypeCallError,
		CallError: &CallErrorFrame{
			MessageID:        msgID,
			ErrorCode:        code,
			ErrorDescription: desc,
			ErrorDetails:     raw[4],
		},
	}, nil
}

func messageIDOrEmpty(raw []json.RawMessage, idx int) string {
	if idx >= len(raw) {
		return ""
	}
	var s string
	_ = json.Unmarshal(raw[idx], &s)
	return s
}

// EncodeCall serializes a Call frame exactly as the positional array of §4.1:
// no wrapping object, no trailing nulls.
func EncodeCall(messageID string, action ocpp.Action, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{int(TypeCall), messageID, action, payload})
}

// EncodeCallResult serializes a CallResult frame.
func EncodeCallResult(messageID string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{int(TypeCallResult), messageID, payload})
}

// EncodeCallError serializes a CallError frame. details is always an object,
// defaulting to an empty one when nil.
func EncodeCallError(messageID, code, description string, details map[string]interface{}) ([]byte, error) {
	if details == nil {
		details = map[string]interface{}{}
	}
	return json.Marshal([]interface{}{int(TypeCallError), messageID, code, description, details})
}
