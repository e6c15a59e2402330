package automation

import "fmt"

// stringParam pulls a required string out of a JSON-decoded param map.
func stringParam(params map[string]interface{}, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", &ToolError{
			Code:    CodeInvalidParams,
			Message: fmt.Sprintf("missing required parameter %q", key),
			Details: map[string]interface{}{"parameter": key},
		}
	}
	value, ok := raw.(string)
	if !ok || value == "" {
		return "", &ToolError{
			Code:    CodeInvalidParams,
			Message: fmt.Sprintf("parameter %q must be a non-empty string", key),
			Details: map[string]interface{}{"parameter": key},
		}
	}
	return value, nil
}

func stringParamOr(params map[string]interface{}, key, fallback string) string {
	if value, ok := params[key].(string); ok && value != "" {
		return value
	}
	return fallback
}

// intParamOr tolerates the float64 that encoding/json produces for numbers.
func intParamOr(params map[string]interface{}, key string, fallback int) int {
	switch value := params[key].(type) {
	case float64:
		return int(value)
	case int:
		return value
	default:
		return fallback
	}
}

func boolParamOr(params map[string]interface{}, key string, fallback bool) bool {
	if value, ok := params[key].(bool); ok {
		return value
	}
	return fallback
}
