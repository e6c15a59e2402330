package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Request(t *testing.T) {
	t.Run("should decode well-formed request", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":"1","method":"browser_navigate","params":{"url":"https://example.com"}}`))
		require.NoError(t, err)
		assert.Equal(t, KindRequest, msg.Kind())
		assert.Equal(t, "browser_navigate", msg.Method)
		assert.Equal(t, "1", msg.IDString())
		assert.Equal(t, "https://example.com", msg.Params["url"])
	})

	t.Run("should preserve numeric id verbatim", func(t *testing.T) {
		msg, err := Decode([]byte(`{"id":42,"method":"ping"}`))
		require.NoError(t, err)
		assert.Equal(t, KindRequest, msg.Kind())
		assert.Equal(t, json.RawMessage(`42`), msg.ID)
	})

	t.Run("should default version tag", func(t *testing.T) {
		msg, err := Decode([]byte(`{"id":"1","method":"ping"}`))
		require.NoError(t, err)
		assert.Equal(t, Version, msg.JSONRPC)
	})
}

func TestDecode_Notification(t *testing.T) {
	msg, err := Decode([]byte(`{"jsonrpc":"2.0","method":"heartbeat","params":{"status":"alive"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindNotification, msg.Kind())
	assert.Empty(t, msg.ID)
}

func TestDecode_Response(t *testing.T) {
	t.Run("should decode result response", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":"7","result":{"status":"ok"}}`))
		require.NoError(t, err)
		assert.Equal(t, KindResponse, msg.Kind())
		result, ok := msg.Result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "ok", result["status"])
	})

	t.Run("should decode error response", func(t *testing.T) {
		msg, err := Decode([]byte(`{"jsonrpc":"2.0","id":"7","error":{"code":-32601,"message":"nope"}}`))
		require.NoError(t, err)
		require.NotNil(t, msg.Error)
		assert.Equal(t, CodeMethodNotFound, msg.Error.Code)
	})

	t.Run("should reject response with result and error", func(t *testing.T) {
		_, err := Decode([]byte(`{"id":"7","result":{},"error":{"code":1,"message":"x"}}`))
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
	})

	t.Run("should reject response with neither result nor error", func(t *testing.T) {
		_, err := Decode([]byte(`{"jsonrpc":"2.0","id":"7"}`))
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, []byte(`"7"`), decodeErr.ID)
	})

	t.Run("should reject response without id", func(t *testing.T) {
		_, err := Decode([]byte(`{"result":{"status":"ok"}}`))
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
	})
}

func TestDecode_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		frame string
	}{
		{"not json", `this is not json`},
		{"json array", `[1,2,3]`},
		{"empty frame", ``},
		{"truncated object", `{"id":"1","method":`},
		{"null id treated as absent", `{"id":null}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := Decode([]byte(tc.frame))
			assert.Nil(t, msg)
			var decodeErr *DecodeError
			assert.ErrorAs(t, err, &decodeErr)
		})
	}
}

func TestDecode_RecoverableID(t *testing.T) {
	// Broken frame from which the id can still be extracted, so the caller
	// can answer with a targeted error response.
	_, err := Decode([]byte(`{"id":"abc","method":"x","result":{}}`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, []byte(`"abc"`), decodeErr.ID)
}

func TestEncode(t *testing.T) {
	t.Run("should round-trip a request", func(t *testing.T) {
		frame, err := Encode(NewRequest("9", "browser_click", map[string]interface{}{"selector": "#go"}))
		require.NoError(t, err)

		msg, err := Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, KindRequest, msg.Kind())
		assert.Equal(t, "browser_click", msg.Method)
		assert.Equal(t, "#go", msg.Params["selector"])
	})

	t.Run("should reject response carrying both members", func(t *testing.T) {
		msg := NewResult(json.RawMessage(`"1"`), map[string]interface{}{})
		msg.Error = &RPCError{Code: CodeInternalError, Message: "boom"}
		_, err := Encode(msg)
		assert.Error(t, err)
	})

	t.Run("should reject response carrying neither member", func(t *testing.T) {
		_, err := Encode(&Message{ID: json.RawMessage(`"1"`)})
		assert.Error(t, err)
	})

	t.Run("should reject nil message", func(t *testing.T) {
		_, err := Encode(nil)
		assert.Error(t, err)
	})
}

func TestEncodeSSE(t *testing.T) {
	event, err := EncodeSSE(NewNotification("initialized", map[string]interface{}{"server": "webgate"}))
	require.NoError(t, err)
	assert.True(t, len(event) > 8)
	assert.Equal(t, "data: ", string(event[:6]))
	assert.Equal(t, "\n\n", string(event[len(event)-2:]))

	msg, err := DecodeSSE(event)
	require.NoError(t, err)
	assert.Equal(t, KindNotification, msg.Kind())
	assert.Equal(t, "initialized", msg.Method)
}

func TestIDEquals(t *testing.T) {
	assert.True(t, IDEquals(json.RawMessage(`"1"`), json.RawMessage(` "1" `)))
	assert.False(t, IDEquals(json.RawMessage(`"1"`), json.RawMessage(`1`)))
}
