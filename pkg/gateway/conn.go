package gateway

import (
	"context"
	"errors"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/hyeon/webgate/internal/tracing"
	"github.com/hyeon/webgate/pkg/automation"
	"github.com/hyeon/webgate/pkg/protocol"
)

// acceptConnection builds a ClientConnection around an accepted transport,
// registers it, and runs negotiation. Callers get back an Active (possibly
// degraded) connection with its heartbeat running.
func (s *Server) acceptConnection(transport Transport, remoteAddr string) *ClientConnection {
	id, _ := gonanoid.New()
	conn := &ClientConnection{
		ID:          id,
		Transport:   transport,
		ConnectedAt: time.Now(),
		RemoteAddr:  remoteAddr,
	}
	conn.Touch()
	conn.setState(StateNegotiating)
	s.registry.Register(conn)

	s.logger.Info().
		Str("client_id", id).
		Str("transport", transport.Kind()).
		Str("remote", remoteAddr).
		Msg("client connected")

	s.negotiate(conn)
	s.startHeartbeat(conn)
	return conn
}

// negotiate attempts to open an automation session, retrying at most once,
// then moves the connection to Active. A sustained factory failure leaves
// the connection Active but degraded: staying connected with reduced
// capability beats refusing service.
func (s *Server) negotiate(conn *ClientConnection) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := s.factory.Open(ctx, s.engineCfg)
	if err != nil && !automation.IsResourceExhausted(err) {
		s.logger.Warn().
			Err(err).
			Str("client_id", conn.ID).
			Msg("session open failed, retrying once")
		sess, err = s.factory.Open(ctx, s.engineCfg)
	}

	if err != nil {
		conn.Degraded = true
		s.logger.Warn().
			Err(err).
			Str("client_id", conn.ID).
			Msg("no automation session, connection degraded")
	} else {
		conn.setSession(sess)
	}
	conn.setState(StateActive)

	// The first two frames on every channel, in this order.
	s.sendOrDrain(conn, protocol.NewNotification("initialized", map[string]interface{}{
		"client_id": conn.ID,
		"server":    serverName,
		"version":   serverVersion,
		"degraded":  conn.Degraded,
	}))
	s.sendOrDrain(conn, protocol.NewNotification("tools/list", map[string]interface{}{
		"tools": s.catalog.List(),
	}))
}

// handleFrame processes one inbound frame. Malformed frames are answered
// when an id could be recovered and logged otherwise; they never close the
// channel.
func (s *Server) handleFrame(conn *ClientConnection, frame []byte) {
	conn.Touch()

	msg, err := protocol.Decode(frame)
	if err != nil {
		var decErr *protocol.DecodeError
		if errors.As(err, &decErr) && len(decErr.ID) > 0 {
			s.sendOrDrain(conn, protocol.NewError(decErr.ID, &protocol.RPCError{
				Code:    protocol.CodeInvalidRequest,
				Message: decErr.Reason,
			}))
			return
		}
		s.logger.Warn().
			Err(err).
			Str("client_id", conn.ID).
			Msg("dropping malformed frame")
		return
	}

	switch msg.Kind() {
	case protocol.KindRequest:
		s.inFlight.Add(1)
		go func() {
			defer s.inFlight.Done()
			s.sendOrDrain(conn, s.serveRequest(conn, msg))
		}()
	case protocol.KindNotification:
		s.logger.Debug().
			Str("client_id", conn.ID).
			Str("method", msg.Method).
			Msg("client notification")
	default:
		// Clients do not send responses; log and move on.
		s.logger.Debug().
			Str("client_id", conn.ID).
			Msg("ignoring unexpected response frame from client")
	}
}

// serveRequest executes one Request and returns the Response that must be
// written to the same channel with the request's id echoed verbatim.
func (s *Server) serveRequest(conn *ClientConnection, req *protocol.Message) *protocol.Message {
	switch req.Method {
	case "ping":
		return protocol.NewResult(req.ID, map[string]interface{}{"pong": true})
	case "tools/list":
		return protocol.NewResult(req.ID, map[string]interface{}{
			"tools": s.catalog.List(),
		})
	}

	if _, known := s.catalog.Describe(req.Method); !known {
		return protocol.NewError(req.ID, protocol.MethodNotFound(req.Method))
	}
	return s.invokeTool(conn, req.ID, req.Method, req.Params)
}

// validateParams checks a request against the tool's compiled schema.
// Simple mode advertises schemas without enforcing them.
func (s *Server) validateParams(tool string, params map[string]interface{}) error {
	if !s.validate {
		return nil
	}
	return s.catalog.Validate(tool, params)
}

// invokeTool runs one tool against the connection's session and maps the
// outcome onto the wire error model.
func (s *Server) invokeTool(conn *ClientConnection, id []byte, tool string, params map[string]interface{}) *protocol.Message {
	if err := s.validateParams(tool, params); err != nil {
		return protocol.NewError(id, &protocol.RPCError{
			Code:    protocol.CodeInvalidParams,
			Message: err.Error(),
			Data:    map[string]interface{}{"tool": tool},
		})
	}

	sess := conn.Session()
	if sess == nil {
		return protocol.NewError(id, protocol.ToolUnavailable(tool))
	}

	ctx := tracing.NewInvocationContext(context.Background(), conn.ID, tool)
	logger := tracing.LoggerFromContext(ctx, s.logger)

	started := time.Now()
	result, err := sess.Invoke(ctx, tool, params)
	if err != nil {
		var toolErr *automation.ToolError
		if errors.As(err, &toolErr) {
			if toolErr.Code == automation.CodeSessionClosed {
				return protocol.NewError(id, protocol.ToolUnavailable(tool))
			}
			return protocol.NewError(id, &protocol.RPCError{
				Code:    protocol.CodeToolError,
				Message: toolErr.Message,
				Data: map[string]interface{}{
					"code":    toolErr.Code,
					"tool":    tool,
					"details": toolErr.Details,
				},
			})
		}
		return protocol.NewError(id, &protocol.RPCError{
			Code:    protocol.CodeInternalError,
			Message: err.Error(),
		})
	}

	logger.Debug().
		Dur("elapsed", time.Since(started)).
		Msg("tool invoked")

	payload := map[string]interface{}{"status": result.Status}
	for k, v := range result.Data {
		payload[k] = v
	}
	if result.Simulated {
		payload["simulated"] = true
	}
	return protocol.NewResult(id, payload)
}

// sendOrDrain writes a frame; a transport failure is the signal that the
// channel is gone, so the connection is drained.
func (s *Server) sendOrDrain(conn *ClientConnection, msg *protocol.Message) {
	if msg == nil {
		return
	}
	if err := conn.Transport.Send(msg); err != nil {
		s.logger.Debug().
			Err(err).
			Str("client_id", conn.ID).
			Msg("transport write failed")
		s.drain(conn)
	}
}

// startHeartbeat emits heartbeat notifications on their own timer,
// independent of in-flight invocations. The ticker dies with the
// connection's drain context.
func (s *Server) startHeartbeat(conn *ClientConnection) {
	if s.heartbeatInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn.setHeartbeatCancel(cancel)

	s.heartbeats.Add(1)
	go func() {
		defer s.heartbeats.Done()

		ticker := time.NewTicker(s.heartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				beat := protocol.NewNotification("heartbeat", map[string]interface{}{
					"timestamp": time.Now().Unix(),
				})
				if err := conn.Transport.Send(beat); err != nil {
					s.drain(conn)
					return
				}
			}
		}
	}()
}

// drain tears a connection down exactly once: heartbeat stopped, session
// closed, registry entry removed, transport closed, in that order. The
// session close happening before unregistration is what keeps Invoke on a
// dead connection an error rather than a race.
func (s *Server) drain(conn *ClientConnection) {
	if !conn.beginDrain() {
		return
	}
	conn.stopHeartbeat()

	if sess := conn.takeSession(); sess != nil {
		if err := sess.Close(); err != nil {
			s.logger.Warn().
				Err(err).
				Str("client_id", conn.ID).
				Msg("session close failed")
		}
	}

	s.registry.Unregister(conn.ID)
	if err := conn.Transport.Close(); err != nil {
		s.logger.Debug().
			Err(err).
			Str("client_id", conn.ID).
			Msg("transport close failed")
	}
	conn.setState(StateClosed)

	s.logger.Info().
		Str("client_id", conn.ID).
		Msg("client disconnected")
}
