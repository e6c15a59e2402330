package automation

import "context"

// UnavailableFactory always fails with engine_unavailable. The gateway
// installs it when no browser engine is configured so connections still
// come up in degraded mode instead of failing outright.
type UnavailableFactory struct {
	Reason string
}

func (f UnavailableFactory) Open(ctx context.Context, cfg Config) (Session, error) {
	reason := f.Reason
	if reason == "" {
		reason = "no automation engine configured"
	}
	return nil, &EngineError{
		Code:    CodeEngineUnavailable,
		Message: reason,
	}
}

// SimulatedSession returns canned results for any known tool without
// touching a browser. Every result carries Simulated so callers can tell
// it apart from real engine output.
type SimulatedSession struct{}

func (SimulatedSession) Invoke(ctx context.Context, tool string, params map[string]interface{}) (*ToolResult, error) {
	if _, ok := toolHandlers[tool]; !ok {
		return nil, &ToolError{
			Code:    CodeUnknownTool,
			Message: "unknown tool " + tool,
		}
	}
	data := map[string]interface{}{"tool": tool}
	if len(params) > 0 {
		data["params"] = params
	}
	return &ToolResult{
		Status:    "ok",
		Data:      data,
		Simulated: true,
	}, nil
}

func (SimulatedSession) Close() error { return nil }
