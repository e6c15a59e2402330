package protocol

import "fmt"

// JSON-RPC error codes, plus the gateway's domain codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeToolUnavailable marks invocations refused because no live
	// automation session exists (degraded mode). The error data carries
	// the string code "unavailable" so clients can branch on it without
	// parsing integers.
	CodeToolUnavailable = -32010

	// CodeToolError marks a tool that executed but failed. It is a
	// structured result of the protocol, not a protocol fault; the
	// channel and session remain usable.
	CodeToolError = -32011
)

// RPCError is the error member of a Response.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// MethodNotFound builds the canonical unknown-method error.
func MethodNotFound(method string) *RPCError {
	return &RPCError{
		Code:    CodeMethodNotFound,
		Message: fmt.Sprintf("method not found: %s", method),
	}
}

// ToolUnavailable builds the degraded-mode invocation error.
func ToolUnavailable(tool string) *RPCError {
	return &RPCError{
		Code:    CodeToolUnavailable,
		Message: fmt.Sprintf("tool %s unavailable: no automation session", tool),
		Data:    map[string]interface{}{"code": "unavailable", "tool": tool},
	}
}

// DecodeError reports a frame that could not be decoded into a well-formed
// message. The connection must survive it: if ID is non-empty the caller can
// answer with a targeted error response, otherwise the frame is logged and
// dropped.
type DecodeError struct {
	Reason string
	ID     []byte // raw id, when one could be extracted from the frame
}

func (e *DecodeError) Error() string {
	return "decode: " + e.Reason
}
