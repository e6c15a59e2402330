package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hyeon/webgate/internal/tracing"
	"github.com/hyeon/webgate/pkg/automation"
	"github.com/hyeon/webgate/pkg/catalog"
	"github.com/hyeon/webgate/pkg/protocol"
)

const (
	serverName    = "webgate"
	serverVersion = "1.0.0"

	// clientHeader routes a POSTed request onto an open streaming channel.
	clientHeader = "X-Webgate-Client"
)

// Operating modes.
const (
	ModeFull   = "full"
	ModeSimple = "simple"
)

// Server is the Tool Gateway: it accepts streaming channels, negotiates
// automation sessions for them, and dispatches tool requests.
type Server struct {
	host              string
	port              int
	mode              string
	heartbeatInterval time.Duration
	server            *http.Server
	upgrader          websocket.Upgrader
	registry          *Registry
	catalog           *catalog.Catalog
	factory           automation.Factory
	engineCfg         automation.Config
	reporter          *Reporter
	broadcaster       *Broadcaster
	logger            zerolog.Logger
	validate          bool

	directMu      sync.Mutex
	directSession automation.Session

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlight       sync.WaitGroup
	heartbeats     sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	Host              string
	Port              int
	Mode              string
	HeartbeatInterval time.Duration
	Catalog           *catalog.Catalog
	Factory           automation.Factory
	Engine            automation.Config
	Logger            zerolog.Logger
}

// NewServer creates a gateway server. In simple mode the factory is forced
// to the always-unavailable one and request validation is skipped, so the
// two modes share a single state machine.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeFull
	}
	if cfg.Mode != ModeFull && cfg.Mode != ModeSimple {
		return nil, fmt.Errorf("unknown mode: %q", cfg.Mode)
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}

	factory := cfg.Factory
	if cfg.Mode == ModeSimple || factory == nil {
		factory = automation.UnavailableFactory{Reason: "gateway running in simple mode"}
	}

	registry := NewRegistry()
	s := &Server{
		host:              cfg.Host,
		port:              cfg.Port,
		mode:              cfg.Mode,
		heartbeatInterval: cfg.HeartbeatInterval,
		registry:          registry,
		catalog:           cfg.Catalog,
		factory:           factory,
		engineCfg:         cfg.Engine,
		logger:            cfg.Logger,
		validate:          cfg.Mode == ModeFull,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.reporter = NewReporter(registry, cfg.Catalog, cfg.Logger)
	s.broadcaster = NewBroadcaster(registry, cfg.Logger)

	return s, nil
}

// Handler builds the full route table with CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/execute", s.handleExecute)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/", s.handleInfo)
	return withCORS(mux)
}

// Start begins serving. It does not block.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("addr", s.server.Addr).
		Str("mode", s.mode).
		Int("tools", s.catalog.Len()).
		Msg("starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("gateway server error")
		}
	}()

	s.reporter.Start()
	return nil
}

// Stop drains every connection and shuts the HTTP server down. Connections
// are torn down session-first so no invoke can land on a half-closed one.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("shutting down gateway server")
	s.reporter.Stop()

	s.broadcaster.Broadcast("shutdown", map[string]interface{}{
		"message": "server is shutting down",
	})

	for _, conn := range s.registry.Snapshot() {
		s.drain(conn)
	}
	s.closeDirectSession()

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		s.heartbeats.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("shutdown timeout, abandoning in-flight requests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	s.logger.Info().Msg("gateway server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// handleMCP serves the primary endpoint: GET opens the streaming channel,
// POST submits one request frame.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleStream(w, r)
	case http.MethodPost:
		s.handleSubmit(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStream holds the response open as a server-sent event channel.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	transport, err := newSSETransport(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn := s.acceptConnection(transport, r.RemoteAddr)

	select {
	case <-transport.Done():
	case <-r.Context().Done():
		s.drain(conn)
	}
}

// handleSubmit accepts one frame over POST. With the client header the
// response goes out on that client's channel and the POST returns 202;
// without it the request is serviced synchronously.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	traceID := r.Header.Get("X-Trace-Id")
	if traceID == "" {
		traceID = tracing.NewTraceID()
	}
	logger := tracing.LoggerFromContext(tracing.WithTraceID(r.Context(), traceID), s.logger)

	if clientID := r.Header.Get(clientHeader); clientID != "" {
		conn, ok := s.registry.Get(clientID)
		if !ok || conn.State() != StateActive {
			writeJSON(w, http.StatusNotFound, map[string]interface{}{
				"error": fmt.Sprintf("no active channel for client %q", clientID),
			})
			return
		}
		logger.Debug().Str("client_id", clientID).Msg("frame routed to channel")
		s.handleFrame(conn, body)
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"accepted":  true,
			"client_id": clientID,
		})
		return
	}

	logger.Debug().Msg("serving channel-less request")
	s.serveSynchronous(w, body)
}

// serveSynchronous answers a channel-less request in the POST body itself.
func (s *Server) serveSynchronous(w http.ResponseWriter, body []byte) {
	msg, err := protocol.Decode(body)
	if err != nil {
		id := json.RawMessage("null")
		if decErr, ok := err.(*protocol.DecodeError); ok && len(decErr.ID) > 0 {
			id = decErr.ID
		}
		writeMessage(w, http.StatusBadRequest, protocol.NewError(id, &protocol.RPCError{
			Code:    protocol.CodeParseError,
			Message: err.Error(),
		}))
		return
	}

	switch msg.Kind() {
	case protocol.KindNotification:
		w.WriteHeader(http.StatusAccepted)
	case protocol.KindRequest:
		s.inFlight.Add(1)
		defer s.inFlight.Done()
		writeMessage(w, http.StatusOK, s.serveDirectRequest(msg))
	default:
		writeMessage(w, http.StatusBadRequest, protocol.NewError(msg.ID, &protocol.RPCError{
			Code:    protocol.CodeInvalidRequest,
			Message: "expected a request frame",
		}))
	}
}

// serveDirectRequest runs a request against the shared channel-less
// session, used by clients that only speak plain request/response POSTs.
func (s *Server) serveDirectRequest(req *protocol.Message) *protocol.Message {
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
	if err := s.validateParams(req.Method, req.Params); err != nil {
		return protocol.NewError(req.ID, &protocol.RPCError{
			Code:    protocol.CodeInvalidParams,
			Message: err.Error(),
			Data:    map[string]interface{}{"tool": req.Method},
		})
	}

	sess, err := s.getDirectSession()
	if err != nil {
		return protocol.NewError(req.ID, protocol.ToolUnavailable(req.Method))
	}
	conn := &ClientConnection{ID: "direct", Transport: nil}
	conn.setSession(sess)
	resp := s.invokeTool(conn, req.ID, req.Method, req.Params)

	// A browser_close here tears the shared session down, and a cached
	// session reported closed is useless to every later request. Retire it
	// either way so the next synchronous POST opens a fresh one.
	if req.Method == "browser_close" || (resp.Error != nil && resp.Error.Code == protocol.CodeToolUnavailable) {
		s.retireDirectSession(sess)
	}
	return resp
}

// getDirectSession lazily opens the session shared by synchronous POSTs.
func (s *Server) getDirectSession() (automation.Session, error) {
	s.directMu.Lock()
	defer s.directMu.Unlock()
	if s.directSession != nil {
		return s.directSession, nil
	}
	sess, err := s.factory.Open(context.Background(), s.engineCfg)
	if err != nil {
		return nil, err
	}
	s.directSession = sess
	return sess, nil
}

// retireDirectSession drops the cached direct session if it is still the
// given one. Close is idempotent, so closing an already-closed session is
// harmless.
func (s *Server) retireDirectSession(sess automation.Session) {
	s.directMu.Lock()
	if s.directSession == sess {
		s.directSession = nil
	}
	s.directMu.Unlock()
	if err := sess.Close(); err != nil {
		s.logger.Debug().Err(err).Msg("direct session retire close failed")
	}
}

func (s *Server) closeDirectSession() {
	s.directMu.Lock()
	sess := s.directSession
	s.directSession = nil
	s.directMu.Unlock()
	if sess != nil {
		if err := sess.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("direct session close failed")
		}
	}
}

// handleWebSocket runs the same connection state machine over a websocket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := s.acceptConnection(newWSTransport(wsConn), r.RemoteAddr)

	go func() {
		defer s.drain(conn)
		for {
			_, frame, err := wsConn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug().Err(err).Str("client_id", conn.ID).Msg("websocket read error")
				}
				return
			}
			s.handleFrame(conn, frame)
		}
	}()
}

// handleTools returns the catalog in one payload for non-streaming clients.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.catalog.List(),
		"count": s.catalog.Len(),
	})
}

// handleExecute is the synchronous fallback invocation. Simple mode
// returns an explicitly simulated result so callers can never mistake it
// for real engine output.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Tool   string                 `json:"tool"`
		Params map[string]interface{} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Tool == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "body must be {tool, params} with a non-empty tool",
		})
		return
	}
	if _, known := s.catalog.Describe(req.Tool); !known {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": fmt.Sprintf("unknown tool %q", req.Tool),
		})
		return
	}

	var sess automation.Session
	if s.mode == ModeSimple {
		sess = automation.SimulatedSession{}
	} else {
		var err error
		sess, err = s.getDirectSession()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error": "automation engine unavailable",
			})
			return
		}
	}

	s.inFlight.Add(1)
	defer s.inFlight.Done()

	result, err := sess.Invoke(r.Context(), req.Tool, req.Params)
	if err != nil {
		var toolErr *automation.ToolError
		if errors.As(err, &toolErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error": toolErr.Message,
				"code":  toolErr.Code,
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	payload := map[string]interface{}{
		"tool":   req.Tool,
		"status": result.Status,
	}
	if len(result.Data) > 0 {
		payload["data"] = result.Data
	}
	if result.Simulated {
		payload["simulated"] = true
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleHealth reports liveness and connection counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reporter.Health())
}

// handleInfo reports server identity and the endpoint map.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/info" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    serverName,
		"version": serverVersion,
		"mode":    s.mode,
		"tools":   s.catalog.Len(),
		"endpoints": map[string]string{
			"mcp":     "/mcp",
			"ws":      "/ws",
			"tools":   "/tools",
			"execute": "/execute",
			"health":  "/health",
			"info":    "/info",
		},
	})
}

// Registry exposes the connection registry, mainly for the reporter and
// tests.
func (s *Server) Registry() *Registry { return s.registry }

// withCORS allows any origin on every route.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+clientHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg *protocol.Message) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(frame)
}
