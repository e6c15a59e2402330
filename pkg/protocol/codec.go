package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes a message into one self-delimited JSON frame. It
// enforces the union invariants: requests and notifications carry a method,
// responses carry an id and exactly one of result/error.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode: nil message")
	}
	if m.JSONRPC == "" {
		m.JSONRPC = Version
	}
	switch m.Kind() {
	case KindRequest, KindNotification:
		// method presence is what classified it; nothing more to check
	case KindResponse:
		if len(m.ID) == 0 {
			return nil, fmt.Errorf("encode: response without id")
		}
		if (m.Result == nil) == (m.Error == nil) {
			return nil, fmt.Errorf("encode: response must carry exactly one of result/error")
		}
	}
	return json.Marshal(m)
}

// EncodeSSE wraps the JSON frame as a single server-sent event, one event
// per message.
func EncodeSSE(m *Message) ([]byte, error) {
	frame, err := Encode(m)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(frame) + 16)
	buf.WriteString("data: ")
	buf.Write(frame)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// rawEnvelope mirrors Message with raw members so Decode can distinguish
// absent fields from null/zero ones.
type rawEnvelope struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      json.RawMessage        `json:"id"`
	Method  *string                `json:"method"`
	Params  map[string]interface{} `json:"params"`
	Result  json.RawMessage        `json:"result"`
	Error   *RPCError              `json:"error"`
}

// Decode parses one frame into a message, rejecting anything that is not a
// well-formed variant of the union. It returns *DecodeError on rejection and
// never panics; a malformed frame must not take the connection down.
func Decode(frame []byte) (*Message, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Reason: "empty frame"}
	}
	if trimmed[0] != '{' {
		return nil, &DecodeError{Reason: "frame is not a JSON object"}
	}

	var raw rawEnvelope
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &DecodeError{Reason: err.Error(), ID: extractID(trimmed)}
	}

	id := normalizeID(raw.ID)
	hasMethod := raw.Method != nil && *raw.Method != ""
	hasResult := len(bytes.TrimSpace(raw.Result)) > 0 && string(bytes.TrimSpace(raw.Result)) != "null"
	hasError := raw.Error != nil

	msg := &Message{
		JSONRPC: raw.JSONRPC,
		ID:      id,
		Params:  raw.Params,
		Error:   raw.Error,
	}
	if msg.JSONRPC == "" {
		msg.JSONRPC = Version
	}
	if hasMethod {
		msg.Method = *raw.Method
	}

	switch {
	case hasMethod && !hasResult && !hasError:
		// request or notification, classified by id presence
		return msg, nil
	case !hasMethod && len(id) > 0:
		if hasResult == hasError {
			return nil, &DecodeError{Reason: "response must carry exactly one of result/error", ID: id}
		}
		if hasResult {
			var result interface{}
			if err := json.Unmarshal(raw.Result, &result); err != nil {
				return nil, &DecodeError{Reason: "malformed result member", ID: id}
			}
			msg.Result = result
		}
		return msg, nil
	case !hasMethod && (hasResult || hasError):
		return nil, &DecodeError{Reason: "response missing id"}
	case !hasMethod:
		return nil, &DecodeError{Reason: "missing method", ID: id}
	default:
		return nil, &DecodeError{Reason: "frame mixes request and response members", ID: id}
	}
}

// DecodeSSE strips the SSE framing produced by EncodeSSE and decodes the
// payload. Frames without a data field are rejected.
func DecodeSSE(event []byte) (*Message, error) {
	for _, line := range bytes.Split(event, []byte("\n")) {
		if data, ok := bytes.CutPrefix(line, []byte("data: ")); ok {
			return Decode(data)
		}
		if data, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			return Decode(data)
		}
	}
	return nil, &DecodeError{Reason: "event carries no data field"}
}

// normalizeID treats JSON null the same as an absent id.
func normalizeID(id json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(id)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	return trimmed
}

// extractID makes a best-effort attempt to pull an id out of a frame that
// failed full decoding, so the error response can still be targeted.
func extractID(frame []byte) []byte {
	var partial struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(frame, &partial); err != nil {
		return nil
	}
	return normalizeID(partial.ID)
}
