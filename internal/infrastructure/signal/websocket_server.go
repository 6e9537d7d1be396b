package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"relaychat/internal/core/domain"
	"relaychat/internal/core/ports"
	"relaychat/internal/core/services"
	"relaychat/internal/infrastructure/middleware"
	"relaychat/pkg/config"
	"relaychat/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrMissingToken = errors.New("token is required")

// IdentityResolver extracts the identity a handshake claims.
type IdentityResolver func(r *http.Request) (domain.UserID, error)

// QueryIdentity trusts the userId (or user_id) query parameter as given.
func QueryIdentity() IdentityResolver {
	return func(r *http.Request) (domain.UserID, error) {
		q := r.URL.Query()
		id := q.Get("userId")
		if id == "" {
			id = q.Get("user_id")
		}
		return domain.UserID(id), nil
	}
}

type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// TokenIdentity takes the identity from a signed token passed as ?token=,
// a bearer header or the auth cookie.
func TokenIdentity(validator TokenValidator, cookieName string) IdentityResolver {
	return func(r *http.Request) (domain.UserID, error) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = middleware.TokenFromRequest(r, cookieName)
		}
		if token == "" {
			return "", ErrMissingToken
		}
		claims, err := validator.ValidateToken(token)
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	}
}

type Options struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	AllowedOrigins []string

	RateLimitEnabled     bool
	ConnectionsPerMinute int
	MessagesPerSecond    float64
	MessageBurst         int
	MaxConcurrent        int // 0 means unlimited
	MaxMessageSize       int64
}

func OptionsFromConfig(cfg *config.Config) Options {
	ws := cfg.RateLimiting.WebSocket
	return Options{
		PingInterval:         cfg.Signal.PingInterval,
		PongTimeout:          cfg.Signal.PongTimeout,
		WriteTimeout:         cfg.Signal.WriteTimeout,
		SendBuffer:           cfg.Signal.SendBuffer,
		AllowedOrigins:       cfg.Signal.AllowedOrigins,
		RateLimitEnabled:     cfg.RateLimiting.Enabled,
		ConnectionsPerMinute: ws.ConnectionsPerMinute,
		MessagesPerSecond:    ws.MessagesPerSecond,
		MessageBurst:         ws.Burst,
		MaxConcurrent:        ws.MaxConcurrent,
		MaxMessageSize:       ws.MaxMessageSizeBytes,
	}
}

func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// WebSocketServer accepts relay connections and feeds their frames to the
// lifecycle handler and signaling router.
type WebSocketServer struct {
	lifecycle ports.LifecycleHandler
	router    ports.SignalingRouter
	registry  ports.ConnectionRegistry
	metrics   ports.RelayMetrics
	resolve   IdentityResolver

	opts        Options
	upgrader    websocket.Upgrader
	connLimiter *middleware.KeyedLimiter
	slots       chan struct{}

	mu      sync.Mutex
	live    map[*wsConnection]struct{}
	closing bool
	wg      sync.WaitGroup

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	lifecycle ports.LifecycleHandler,
	router ports.SignalingRouter,
	registry ports.ConnectionRegistry,
	metrics ports.RelayMetrics,
	resolve IdentityResolver,
	opts Options,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	if resolve == nil {
		resolve = QueryIdentity()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &WebSocketServer{
		lifecycle: lifecycle,
		router:    router,
		registry:  registry,
		metrics:   metrics,
		resolve:   resolve,
		opts:      opts,
		live:      make(map[*wsConnection]struct{}),
		logger:    logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	if opts.RateLimitEnabled && opts.ConnectionsPerMinute > 0 {
		s.connLimiter = middleware.NewKeyedLimiter(
			rate.Every(time.Minute/time.Duration(opts.ConnectionsPerMinute)),
			opts.ConnectionsPerMinute,
		)
	}
	if opts.RateLimitEnabled && opts.MaxConcurrent > 0 {
		s.slots = make(chan struct{}, opts.MaxConcurrent)
	}
	return s
}

func (s *WebSocketServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.isClosing() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	if s.connLimiter != nil && !s.connLimiter.Allow(middleware.ClientIP(r)) {
		s.metrics.HandshakeRejected("rate_limited")
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	if s.slots != nil {
		select {
		case s.slots <- struct{}{}:
			defer func() { <-s.slots }()
		default:
			s.metrics.HandshakeRejected("capacity")
			http.Error(w, "connection limit reached", http.StatusServiceUnavailable)
			return
		}
	}

	identity, idErr := s.resolve(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	ws := newWSConnection(identity, conn, s.opts, s.logger)
	if !s.track(ws) {
		ws.Close(ReasonShutdown)
		ws.writePump()
		return
	}
	defer s.untrack(ws)

	go ws.writePump()
	defer func() {
		ws.Close("")
		<-ws.stopped
	}()

	ctx := r.Context()

	if idErr != nil {
		s.metrics.HandshakeRejected("invalid_token")
		s.logger.Warnw("rejected websocket handshake", "remote_addr", r.RemoteAddr, "error", idErr)
		ws.Close(ReasonMissingIdentity)
		return
	}

	session, err := s.lifecycle.Connect(ctx, identity, ws)
	if err != nil {
		s.logger.Warnw("rejected websocket handshake", "remote_addr", r.RemoteAddr, "error", err)
		ws.Close(ReasonMissingIdentity)
		return
	}

	ws.session = session
	s.logger.Infow("client connected", "user_id", identity, "session_id", session)

	s.readPump(ctx, ws)

	s.lifecycle.Disconnect(ctx, identity, session)
	s.logger.Infow("client disconnected", "user_id", identity, "session_id", session, "reason", ws.reason())
}

func (s *WebSocketServer) readPump(ctx context.Context, ws *wsConnection) {
	conn := ws.conn
	if s.opts.MaxMessageSize > 0 {
		conn.SetReadLimit(s.opts.MaxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))
		return nil
	})

	var limiter *rate.Limiter
	if s.opts.RateLimitEnabled && s.opts.MessagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.MessageBurst)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				s.logger.Debugw("websocket read failed", "user_id", ws.identity, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.opts.PongTimeout))

		if limiter != nil && !limiter.Allow() {
			s.reject(ws, errors.New("rate limit exceeded"))
			continue
		}
		s.handleFrame(ctx, ws, raw)
	}
}

func (s *WebSocketServer) handleFrame(ctx context.Context, ws *wsConnection, raw []byte) {
	frame, err := parseFrame(raw)
	if err != nil {
		s.reject(ws, err)
		return
	}

	ctx, span := tracing.TraceSignalFrame(ctx, frame.Event, ws.identity.String())
	defer span.End()
	span.SetAttributes(tracing.SessionIDKey.String(ws.session.String()))

	env, err := decodeEnvelope(frame)
	if err != nil {
		tracing.RecordError(ctx, err)
		s.reject(ws, err)
		return
	}
	span.SetAttributes(
		tracing.SignalKindKey.String(env.Kind.String()),
		tracing.TargetIDKey.String(env.To.String()),
	)

	outcome := s.router.Route(ctx, ws, env)
	span.SetAttributes(tracing.OutcomeKey.String(outcome.String()))
}

func (s *WebSocketServer) reject(ws *wsConnection, err error) {
	s.logger.Debugw("rejected frame", "user_id", ws.identity, "error", err)
	if sendErr := ws.Send(domain.ErrorEvent(err.Error())); sendErr != nil {
		s.metrics.SendDropped()
	}
}

func (s *WebSocketServer) track(ws *wsConnection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.live[ws] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *WebSocketServer) untrack(ws *wsConnection) {
	s.mu.Lock()
	delete(s.live, ws)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *WebSocketServer) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// ConnectionCount reports open sockets, including ones not yet registered.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// PruneLimiters forgets per-IP handshake buckets idle for longer than idle.
func (s *WebSocketServer) PruneLimiters(idle time.Duration) int {
	if s.connLimiter == nil {
		return 0
	}
	return s.connLimiter.Prune(idle)
}

// Shutdown refuses new handshakes, closes every live connection and waits
// for their handlers to finish or ctx to expire.
func (s *WebSocketServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	conns := make([]*wsConnection, 0, len(s.live))
	for ws := range s.live {
		conns = append(conns, ws)
	}
	s.mu.Unlock()

	s.logger.Infow("closing websocket connections", "count", len(conns))
	for _, ws := range conns {
		ws.Close(ReasonShutdown)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":       "healthy",
		"timestamp":    time.Now().Unix(),
		"connections":  s.ConnectionCount(),
		"online_users": s.registry.Count(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Warnw("health response write failed", "remote_addr", r.RemoteAddr, "error", err)
	}
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()                                   {}
func (noopMetrics) ConnectionClosed()                                   {}
func (noopMetrics) HandshakeRejected(string)                            {}
func (noopMetrics) OnlineUsers(int)                                     {}
func (noopMetrics) PresenceAnnounced()                                  {}
func (noopMetrics) SignalRouted(domain.SignalKind, domain.RouteOutcome) {}
func (noopMetrics) SendDropped()                                        {}
