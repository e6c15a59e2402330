package gateway

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/hyeon/webgate/pkg/protocol"
)

// sseTransport pushes frames as server-sent events over a held-open GET
// response. The write mutex keeps frames whole and FIFO per channel.
type sseTransport struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
	done    chan struct{}
}

func newSSETransport(w http.ResponseWriter) (*sseTransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseTransport{
		w:       w,
		flusher: flusher,
		done:    make(chan struct{}),
	}, nil
}

func (t *sseTransport) Send(msg *protocol.Message) error {
	frame, err := protocol.EncodeSSE(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("sse transport closed")
	}
	if _, err := t.w.Write(frame); err != nil {
		return fmt.Errorf("write sse frame: %w", err)
	}
	t.flusher.Flush()
	return nil
}

// Close releases the handler goroutine holding the response open.
func (t *sseTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.done)
	return nil
}

func (t *sseTransport) Kind() string { return "sse" }

// Done is closed when the transport has been shut down; the HTTP handler
// blocks on it to keep the stream open.
func (t *sseTransport) Done() <-chan struct{} { return t.done }

// wsTransport sends frames as websocket text messages.
type wsTransport struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Send(msg *protocol.Message) error {
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("websocket transport closed")
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write websocket frame: %w", err)
	}
	return nil
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

func (t *wsTransport) Kind() string { return "websocket" }
