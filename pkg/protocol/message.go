package protocol

import (
	"bytes"
	"encoding/json"
)

// Version is the envelope version tag carried on every message.
const Version = "2.0"

// Kind identifies the variant of a protocol message.
type Kind int

const (
	KindRequest Kind = iota
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Message is the wire envelope. It is a tagged union with three variants:
// Request (id + method), Notification (method, no id), and Response
// (id + exactly one of result/error). The id is kept as raw JSON so it is
// echoed back byte-for-byte regardless of the caller's id type.
type Message struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      json.RawMessage        `json:"id,omitempty"`
	Method  string                 `json:"method,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Result  interface{}            `json:"result,omitempty"`
	Error   *RPCError              `json:"error,omitempty"`
}

// Kind classifies the message. Callers should only rely on this after a
// successful Decode, which guarantees the variant is well-formed.
func (m *Message) Kind() Kind {
	if m.Method != "" {
		if len(m.ID) == 0 {
			return KindNotification
		}
		return KindRequest
	}
	return KindResponse
}

// IDString renders the request id for logging. Returns "" when absent.
func (m *Message) IDString() string {
	if len(m.ID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.ID, &s); err == nil {
		return s
	}
	return string(m.ID)
}

// IDEquals reports whether two raw ids are byte-identical after trimming
// insignificant whitespace.
func IDEquals(a, b json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b))
}

// NewRequest builds a Request message with a string id.
func NewRequest(id, method string, params map[string]interface{}) *Message {
	raw, _ := json.Marshal(id)
	return &Message{JSONRPC: Version, ID: raw, Method: method, Params: params}
}

// NewNotification builds a Notification message. No response is ever owed.
func NewNotification(method string, params map[string]interface{}) *Message {
	return &Message{JSONRPC: Version, Method: method, Params: params}
}

// NewResult builds a success Response echoing the given raw id.
func NewResult(id json.RawMessage, result interface{}) *Message {
	return &Message{JSONRPC: Version, ID: id, Result: result}
}

// NewError builds an error Response echoing the given raw id.
func NewError(id json.RawMessage, rpcErr *RPCError) *Message {
	return &Message{JSONRPC: Version, ID: id, Error: rpcErr}
}
