package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/hyeon/webgate/pkg/automation"
	"github.com/hyeon/webgate/pkg/protocol"
)

// ConnState tracks where a client connection is in its lifecycle.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateNegotiating
	StateActive
	StateDraining
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateNegotiating:
		return "negotiating"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the exclusively-owned outbound write handle of one client
// connection. Send serializes frames; implementations guarantee FIFO frame
// order on the channel. Close terminates the channel and is the only
// server-side way to do so.
type Transport interface {
	Send(msg *protocol.Message) error
	Close() error
	Kind() string
}

// ClientConnection is one client channel: a transport, an optional
// automation session, and lifecycle state. A nil Session means the
// connection is degraded; it stays Active and tool requests get
// unavailable errors.
type ClientConnection struct {
	ID           string
	Transport    Transport
	ConnectedAt  time.Time
	RemoteAddr   string
	Degraded     bool

	mu              sync.Mutex
	state           ConnState
	session         automation.Session
	lastActivity    time.Time
	heartbeatCancel context.CancelFunc
}

func (c *ClientConnection) setHeartbeatCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeatCancel = cancel
}

// stopHeartbeat cancels the heartbeat timer; safe to call repeatedly.
func (c *ClientConnection) stopHeartbeat() {
	c.mu.Lock()
	cancel := c.heartbeatCancel
	c.heartbeatCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// State returns the current lifecycle state.
func (c *ClientConnection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState advances the state machine; it never moves backwards out of
// Draining or Closed.
func (c *ClientConnection) setState(next ConnState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state >= StateDraining && next < c.state {
		return false
	}
	if c.state == StateClosed {
		return false
	}
	c.state = next
	return true
}

// beginDrain moves the connection into Draining exactly once. The first
// caller gets true and owns teardown; later callers get false.
func (c *ClientConnection) beginDrain() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state >= StateDraining {
		return false
	}
	c.state = StateDraining
	return true
}

// Session returns the automation session, or nil when degraded.
func (c *ClientConnection) Session() automation.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *ClientConnection) setSession(sess automation.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = sess
}

// takeSession removes and returns the session so drain can close it
// exactly once.
func (c *ClientConnection) takeSession() automation.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	sess := c.session
	c.session = nil
	return sess
}

// Touch records channel activity for the health report.
func (c *ClientConnection) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

// LastActivity returns the time of the last frame in either direction.
func (c *ClientConnection) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// ClientInfo is the health-report view of one connection.
type ClientInfo struct {
	ID           string    `json:"id"`
	Transport    string    `json:"transport"`
	State        string    `json:"state"`
	Degraded     bool      `json:"degraded"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity"`
	RemoteAddr   string    `json:"remote_addr,omitempty"`
}

// Info snapshots the connection for reporting.
func (c *ClientConnection) Info() ClientInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ClientInfo{
		ID:           c.ID,
		Transport:    c.Transport.Kind(),
		State:        c.state.String(),
		Degraded:     c.Degraded,
		ConnectedAt:  c.ConnectedAt,
		LastActivity: c.lastActivity,
		RemoteAddr:   c.RemoteAddr,
	}
}
