// Package gateway is the HTTP and WebSocket front of the chatbot. It
// owns the wire protocol, the storefront REST endpoints, and the
// Messenger and Zapier webhooks; all conversation logic lives in the
// agent package.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/agent"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/commerce"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/domain"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/version"
)

var ErrClientClosed = errors.New("client connection closed")

const (
	// replayLimit caps how much history a reconnect replays.
	replayLimit = 100

	// heartbeatInterval paces the server:metrics event per connection.
	heartbeatInterval = 20 * time.Second

	handshakeTimeout = 10 * time.Second
	maxFramePayload  = 4 * 1024 * 1024
)

// Server is the chatbot gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	runner   *agent.Runner
	shop     *commerce.Client
	store    agent.ConversationStore
	version  string
	eventSeq atomic.Int64

	startedAt  time.Time
	httpServer *http.Server
	upgrader   websocket.Upgrader
	connLimit  *connRateLimiter
	fbHTTP     *http.Client
}

// connRateLimiter throttles connection attempts per IP so a
// misbehaving client cannot spin the handshake in a loop.
type connRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

const connRateMaxIPs = 10000

func newConnRateLimiter() *connRateLimiter {
	return &connRateLimiter{limiters: make(map[string]*rate.Limiter)}
}

func (l *connRateLimiter) allow(remoteAddr string) bool {
	host, _, _ := net.SplitHostPort(remoteAddr)
	if host == "" {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[host]
	if !ok {
		if len(l.limiters) >= connRateMaxIPs {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(time.Second), 5)
		l.limiters[host] = lim
	}
	return lim.Allow()
}

// New creates a gateway server over the conversation engine.
func New(cfg config.Config, runner *agent.Runner, shop *commerce.Client, store agent.ConversationStore, log *logging.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log.Sub("gateway"),
		clients:   NewClientRegistry(log.Sub("clients")),
		handlers:  make(map[string]RequestHandler),
		runner:    runner,
		shop:      shop,
		store:     store,
		version:   version.Version,
		connLimit: newConnRateLimiter(),
		fbHTTP:    &http.Client{Timeout: 15 * time.Second},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.Server.AllowedOrigins),
		},
	}

	runner.SetImageResolver(newUploadResolver(cfg.Server.UploadDir, s.fbHTTP))

	s.registerRPCHandlers()
	return s
}

// checkWebSocketOrigin validates WebSocket Origin headers. A missing
// Origin means same-origin or a non-browser client and is allowed;
// anything else must match the configured list.
func checkWebSocketOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the list of registered RPC method names.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	return methods
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan", "auto":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for HTTP and WebSocket connections. It blocks
// until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg.Server)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.startedAt = time.Now()
	s.runner.Sessions().StartEviction(ctx, time.Minute)

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("bind", s.cfg.Server.Bind).
		Bool("store", s.shop.IsConfigured()).
		Int("methods", len(s.handlers)).
		Msg("gateway server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the full HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.Server.AllowedOrigins)
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.connLimit.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("connection rate limited")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxFramePayload)

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("new websocket connection")

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("handshake failed")
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		client.Close()
	}()

	heartbeatCtx, stopHeartbeat := context.WithCancel(r.Context())
	defer stopHeartbeat()
	go s.heartbeat(heartbeatCtx, client)

	s.readLoop(client)
}

// handshake reads the connect request, resolves the session, and
// replies with hello plus either a greeting or a history replay.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("reading connect: %w", err)
	}

	var frame Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("parsing connect frame: %w", err)
	}
	if frame.Type != FrameTypeRequest || frame.Method != "connect" {
		sendErrorAndClose(conn, frame.ID, "protocol_error", "expected connect request")
		return nil, fmt.Errorf("expected connect request, got type=%s method=%s", frame.Type, frame.Method)
	}

	var params ConnectParams
	if len(frame.Params) > 0 {
		if err := json.Unmarshal(frame.Params, &params); err != nil {
			sendErrorAndClose(conn, frame.ID, "invalid_params", "invalid connect params")
			return nil, fmt.Errorf("parsing connect params: %w", err)
		}
	}

	sessionID := params.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conn.SetReadDeadline(time.Time{})

	entry, created := s.runner.Sessions().GetOrCreate(sessionID)
	if params.Locale != "" {
		entry.Do(func(sess *domain.Session) { sess.Locale = params.Locale })
	}

	client := NewClient(conn, sessionID, s.log.Sub("ws"))

	hello := HelloOK{
		Protocol:  ProtocolVersion,
		SessionID: sessionID,
		Created:   created,
		Server: ServerInfo{
			Version: s.version,
			Commit:  version.Commit,
			ConnID:  client.ConnID,
		},
		Features: Features{
			Methods: s.Methods(),
			Events: []string{
				EventMessage, EventTyping, EventHistory,
				EventMetrics, EventConfirm, EventOrderOptions,
			},
		},
	}
	resp, err := NewResponse(frame.ID, hello)
	if err != nil {
		return nil, fmt.Errorf("creating hello response: %w", err)
	}
	if err := conn.WriteJSON(resp); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("session", sessionID).
		Bool("created", created).
		Msg("client connected")

	em := &wsEmitter{client: client, seq: &s.eventSeq}
	if created {
		s.greet(entry, em)
	} else {
		s.replay(client, entry, params.LastTS)
	}

	return client, nil
}

// greet opens a brand-new conversation.
func (s *Server) greet(entry *agent.SessionEntry, em agent.Emitter) {
	entry.Do(func(sess *domain.Session) {
		m := sess.AppendBot(agent.Greeting, time.Now())
		s.store.SaveMessage(sess.ID, m)
		em.Message(m, false)
	})
}

// replay sends the stored history newer than the client's watermark as
// one batch so a reconnect restores the transcript.
func (s *Server) replay(client *Client, entry *agent.SessionEntry, lastTS int64) {
	history := s.store.RecentMessages(client.SessionID, replayLimit)
	if len(history) == 0 {
		entry.Do(func(sess *domain.Session) {
			history = sess.MessagesSince(lastTS)
		})
	} else if lastTS > 0 {
		newer := history[:0]
		for _, m := range history {
			if m.TS > lastTS {
				newer = append(newer, m)
			}
		}
		history = newer
	}
	if len(history) == 0 {
		return
	}
	client.SendEvent(EventHistory, map[string]any{"messages": history}, s.eventSeq.Add(1))
}

// heartbeat emits connection metrics until the connection goes away.
func (s *Server) heartbeat(ctx context.Context, client *Client) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entry, _ := s.runner.Sessions().GetOrCreate(client.SessionID)
			var stage string
			entry.Do(func(sess *domain.Session) { stage = sess.Stage })
			payload := map[string]any{
				"sessionId": client.SessionID,
				"stage":     stage,
				"elapsedMs": time.Since(entry.LastSeen()).Milliseconds(),
			}
			if err := client.SendEvent(EventMetrics, payload, s.eventSeq.Add(1)); err != nil {
				return
			}
		}
	}
}

// readLoop processes incoming frames from a connected client.
func (s *Server) readLoop(client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("read error")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(client, frame)
	}
}

// dispatch routes a request frame to its handler. Handlers run on
// their own goroutine so a long model turn never blocks the read loop;
// per-session ordering is enforced by the engine's turn lock.
func (s *Server) dispatch(client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    "method_not_found",
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	rc := &RequestContext{
		Client: client,
		Frame:  frame,
		Server: s,
	}
	go handler(rc)
}

// sendErrorAndClose sends an error response and closes the connection.
func sendErrorAndClose(conn *websocket.Conn, reqID, code, message string) {
	errFrame := NewErrorResponse(reqID, ErrorShape{
		Code:    code,
		Message: message,
	})
	conn.WriteJSON(errFrame)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, message))
}
