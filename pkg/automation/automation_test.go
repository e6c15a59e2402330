package automation

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyeon/webgate/pkg/catalog"
)

func TestUnavailableFactory(t *testing.T) {
	t.Run("default reason", func(t *testing.T) {
		_, err := UnavailableFactory{}.Open(context.Background(), Config{})
		require.Error(t, err)
		assert.True(t, IsEngineUnavailable(err))
		assert.False(t, IsResourceExhausted(err))
	})

	t.Run("custom reason", func(t *testing.T) {
		_, err := UnavailableFactory{Reason: "engine disabled"}.Open(context.Background(), Config{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "engine disabled")
		assert.True(t, IsEngineUnavailable(err))
	})
}

func TestEngineErrorClassification(t *testing.T) {
	exhausted := &EngineError{Code: CodeResourceExhausted, Message: "cap reached"}
	assert.True(t, IsResourceExhausted(exhausted))
	assert.False(t, IsEngineUnavailable(exhausted))
	assert.False(t, IsEngineUnavailable(nil))

	tool := &ToolError{Code: CodeUnknownTool, Message: "nope"}
	assert.False(t, IsEngineUnavailable(tool))
}

func TestSessionClosedInvoke(t *testing.T) {
	sess := &rodSession{closed: true}

	_, err := sess.Invoke(context.Background(), "browser_navigate", map[string]interface{}{"url": "https://example.com"})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeSessionClosed, toolErr.Code)
}

func TestSessionCloseIdempotent(t *testing.T) {
	sess := &rodSession{pages: map[string]*rod.Page{}}

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func TestUnknownToolRejectedBeforeDispatch(t *testing.T) {
	sess := &rodSession{pages: map[string]*rod.Page{}}

	_, err := sess.Invoke(context.Background(), "browser_teleport", nil)
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeUnknownTool, toolErr.Code)
}

func TestHandlersCoverCatalog(t *testing.T) {
	handled := make(map[string]bool)
	for _, name := range HandledTools() {
		handled[name] = true
	}

	cat, err := catalog.Browser()
	require.NoError(t, err)
	for _, desc := range cat.List() {
		assert.True(t, handled[desc.Name], "no handler for catalog tool %s", desc.Name)
	}
	assert.Equal(t, cat.Len(), len(handled), "handlers and catalog diverged")
}

// handlerParams lists, per tool, a params map using exactly the keys the
// handlers read. Every map must pass schema validation, otherwise the
// advertised schemas and the dispatch code have drifted apart.
var handlerParams = map[string]map[string]interface{}{
	"browser_navigate":        {"url": "https://example.com", "timeout": 10},
	"browser_snapshot":        {"max_length": 500, "timeout": 10},
	"browser_click":           {"selector": "#go", "timeout": 10},
	"browser_type":            {"selector": "#q", "text": "hi", "clear": false, "submit": true, "timeout": 10},
	"browser_wait_for":        {"selector": ".done", "timeout": 10},
	"browser_take_screenshot": {"full_page": true, "timeout": 10},
	"browser_tab_new":         {"url": "https://example.com"},
	"browser_tab_close":       {"target_id": "abc"},
	"browser_close":           {},
}

func TestCatalogAcceptsHandlerParams(t *testing.T) {
	cat, err := catalog.Browser()
	require.NoError(t, err)

	for _, desc := range cat.List() {
		params, ok := handlerParams[desc.Name]
		require.True(t, ok, "no handler params for %s", desc.Name)

		t.Run(desc.Name, func(t *testing.T) {
			assert.NoError(t, cat.Validate(desc.Name, params))
		})
	}

	t.Run("camelCase spellings are rejected", func(t *testing.T) {
		assert.Error(t, cat.Validate("browser_snapshot", map[string]interface{}{"maxLength": 500}))
		assert.Error(t, cat.Validate("browser_take_screenshot", map[string]interface{}{"fullPage": true}))
		assert.Error(t, cat.Validate("browser_tab_close", map[string]interface{}{"targetId": "abc"}))
	})

	t.Run("tab close works without a target id", func(t *testing.T) {
		assert.NoError(t, cat.Validate("browser_tab_close", map[string]interface{}{}))
	})
}

func TestCatalogDefaultsMatchHandlerFallbacks(t *testing.T) {
	cat, err := catalog.Browser()
	require.NoError(t, err)

	schemaDefault := func(tool, param string) interface{} {
		desc, ok := cat.Describe(tool)
		require.True(t, ok, "tool %s not in catalog", tool)
		props, ok := desc.InputSchema["properties"].(map[string]interface{})
		require.True(t, ok)
		prop, ok := props[param].(map[string]interface{})
		require.True(t, ok, "param %s not declared on %s", param, tool)
		return prop["default"]
	}

	assert.Equal(t, maxSnapshotChars, schemaDefault("browser_snapshot", "max_length"))
	assert.Equal(t, true, schemaDefault("browser_type", "clear"))
	assert.Equal(t, false, schemaDefault("browser_type", "submit"))
	assert.Equal(t, false, schemaDefault("browser_take_screenshot", "full_page"))

	timeoutSecs := int(defaultActionTimeout.Seconds())
	for _, tool := range []string{"browser_navigate", "browser_snapshot", "browser_click", "browser_type", "browser_wait_for", "browser_take_screenshot"} {
		assert.Equal(t, timeoutSecs, schemaDefault(tool, "timeout"), "timeout default for %s", tool)
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Run("under the limit", func(t *testing.T) {
		text, truncated := truncateRunes("short", 10)
		assert.Equal(t, "short", text)
		assert.False(t, truncated)
	})

	t.Run("cuts on a rune boundary", func(t *testing.T) {
		text, truncated := truncateRunes("héllo wörld", 6)
		assert.Equal(t, "héllo ", text)
		assert.True(t, truncated)
		assert.True(t, utf8.ValidString(text))
	})

	t.Run("multibyte only", func(t *testing.T) {
		text, truncated := truncateRunes("日本語テキスト", 3)
		assert.Equal(t, "日本語", text)
		assert.True(t, truncated)
		assert.True(t, utf8.ValidString(text))
	})

	t.Run("zero limit disables truncation", func(t *testing.T) {
		text, truncated := truncateRunes("anything", 0)
		assert.Equal(t, "anything", text)
		assert.False(t, truncated)
	})
}

func TestSimulatedSession(t *testing.T) {
	sess := SimulatedSession{}

	t.Run("known tool", func(t *testing.T) {
		result, err := sess.Invoke(context.Background(), "browser_snapshot", map[string]interface{}{"max_length": 100})
		require.NoError(t, err)
		assert.True(t, result.Simulated)
		assert.Equal(t, "ok", result.Status)
		assert.Equal(t, "browser_snapshot", result.Data["tool"])
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := sess.Invoke(context.Background(), "browser_teleport", nil)
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, CodeUnknownTool, toolErr.Code)
	})

	t.Run("close is a no-op", func(t *testing.T) {
		require.NoError(t, sess.Close())
		require.NoError(t, sess.Close())
	})
}

func TestParamHelpers(t *testing.T) {
	params := map[string]interface{}{
		"url":     "https://example.com",
		"timeout": float64(15),
		"clear":   false,
		"empty":   "",
	}

	t.Run("required string", func(t *testing.T) {
		value, err := stringParam(params, "url")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", value)

		_, err = stringParam(params, "missing")
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, CodeInvalidParams, toolErr.Code)

		_, err = stringParam(params, "empty")
		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, CodeInvalidParams, toolErr.Code)
	})

	t.Run("numbers arrive as float64", func(t *testing.T) {
		assert.Equal(t, 15, intParamOr(params, "timeout", 30))
		assert.Equal(t, 30, intParamOr(params, "missing", 30))
	})

	t.Run("bool with default", func(t *testing.T) {
		assert.False(t, boolParamOr(params, "clear", true))
		assert.True(t, boolParamOr(params, "missing", true))
	})

	t.Run("string with default", func(t *testing.T) {
		assert.Equal(t, "about:blank", stringParamOr(params, "missing", "about:blank"))
		assert.Equal(t, "about:blank", stringParamOr(params, "empty", "about:blank"))
	})
}

func TestActionTimeout(t *testing.T) {
	assert.Equal(t, defaultActionTimeout, actionTimeout(map[string]interface{}{}))
	assert.Equal(t, defaultActionTimeout, actionTimeout(map[string]interface{}{"timeout": float64(0)}))

	custom := actionTimeout(map[string]interface{}{"timeout": float64(5)})
	assert.Equal(t, int64(5), int64(custom.Seconds()))
}
