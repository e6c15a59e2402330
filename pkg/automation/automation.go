package automation

import (
	"context"
	"errors"
	"fmt"
)

// Config holds the engine settings, read once at process start.
type Config struct {
	Headless    bool   `json:"headless" mapstructure:"headless"`
	NoSandbox   bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath  string `json:"chrome_path" mapstructure:"chrome_path"`
	CDPPort     int    `json:"cdp_port" mapstructure:"cdp_port"`
	ArtifactDir string `json:"artifact_dir" mapstructure:"artifact_dir"`
	MaxSessions int    `json:"max_sessions" mapstructure:"max_sessions"`
}

// Factory opens automation sessions. It performs no retries itself; retry
// policy belongs to the caller, which must not retry more than once.
type Factory interface {
	Open(ctx context.Context, cfg Config) (Session, error)
}

// Session is one open handle onto the automation engine. Invoke executes a
// named tool; Close is idempotent and safe after a prior failure.
type Session interface {
	Invoke(ctx context.Context, tool string, params map[string]interface{}) (*ToolResult, error)
	Close() error
}

// ToolResult is the success payload of an invocation. Simulated marks
// results produced without touching a real engine so they can never be
// mistaken for the real thing.
type ToolResult struct {
	Status    string                 `json:"status"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Simulated bool                   `json:"simulated,omitempty"`
}

// Engine error codes.
const (
	CodeEngineUnavailable = "engine_unavailable"
	CodeResourceExhausted = "resource_exhausted"
)

// EngineError reports a failure to establish a session: the engine could
// not be reached at all, or it refused the session.
type EngineError struct {
	Code    string
	Message string
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s: %s", e.Code, e.Message)
}

// IsEngineUnavailable reports whether err means the engine could not be
// reached or initialized.
func IsEngineUnavailable(err error) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr) && engineErr.Code == CodeEngineUnavailable
}

// IsResourceExhausted reports whether err means the engine refused the
// session, e.g. a concurrency cap.
func IsResourceExhausted(err error) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr) && engineErr.Code == CodeResourceExhausted
}

// Tool error codes.
const (
	CodeUnknownTool      = "unknown_tool"
	CodeInvalidParams    = "invalid_params"
	CodeElementNotFound  = "element_not_found"
	CodeNavigationFailed = "navigation_failed"
	CodeScriptFailed     = "script_failed"
	CodeTargetNotFound   = "target_not_found"
	CodeSessionClosed    = "session_closed"
)

// ToolError reports that a tool executed (or was dispatched) and failed.
// It is a structured result, not a session fault: the session stays usable.
type ToolError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool: %s: %s", e.Code, e.Message)
}

// ErrSessionClosed is returned by Invoke on a session that has been closed.
var ErrSessionClosed = &ToolError{
	Code:    CodeSessionClosed,
	Message: "automation session is closed",
}
