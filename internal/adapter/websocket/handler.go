package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/streamrelay/internal/adapter/metrics"
	"github.com/pscheid92/streamrelay/internal/domain"
	"github.com/pscheid92/streamrelay/internal/platform/correlation"
)

const (
	// CloseForbidden is sent after an authentication_failure frame.
	CloseForbidden = 4403

	subscribeTimeout = 5 * time.Second
	publishTimeout   = 2 * time.Second
	readLimit        = 64 * 1024
)

type Config struct {
	// AuthTimeout bounds how long a connection may stay unauthenticated.
	AuthTimeout time.Duration
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades stream connections and drives each one through
// AwaitingAuth, Authenticated and Closed.
type Handler struct {
	verifier    domain.TokenVerifier
	bus         domain.Bus
	registry    domain.GroupRegistry
	metrics     *metrics.WebSocketMetrics
	clock       clockwork.Clock
	authTimeout time.Duration
	upgrader    websocket.Upgrader

	mu       sync.Mutex
	shutdown bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	active   sync.WaitGroup
}

func NewHandler(verifier domain.TokenVerifier, bus domain.Bus, registry domain.GroupRegistry, m *metrics.WebSocketMetrics, clock clockwork.Clock, cfg Config) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		verifier:    verifier,
		bus:         bus,
		registry:    registry,
		metrics:     m,
		clock:       clock,
		authTimeout: cfg.AuthTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Serve upgrades the request and runs the connection until it closes.
// Upgrade failures have already been answered with an HTTP error.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request, streamID string) error {
	h.mu.Lock()
	if h.shutdown {
		h.mu.Unlock()
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return errors.New("handler is shut down")
	}
	h.active.Add(1)
	h.mu.Unlock()
	defer h.active.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.ConnectionsTotal.WithLabelValues("upgrade_failed").Inc()
		return fmt.Errorf("websocket upgrade failed: %w", err)
	}

	c := h.newConnection(r.Context(), conn, streamID)
	c.run()
	return nil
}

// Shutdown closes every open connection with a going-away frame and waits
// for their cleanup, or for ctx to expire.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.shutdown = true
	h.cancel()
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for stream connections: %w", ctx.Err())
	}
}

type connection struct {
	h        *Handler
	id       string
	streamID string
	conn     *websocket.Conn
	writer   *clientWriter
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
	opened   time.Time

	authenticated bool
	identity      domain.Identity
	joined        bool
	sub           domain.Subscription

	closeOnce sync.Once
}

func (h *Handler) newConnection(reqCtx context.Context, conn *websocket.Conn, streamID string) *connection {
	id := uuid.NewString()

	ctx, cancel := context.WithCancel(h.baseCtx)
	if corrID, ok := correlation.ID(reqCtx); ok {
		ctx = correlation.WithID(ctx, corrID)
	}
	ctx = correlation.WithConnection(ctx, streamID, id)

	conn.SetReadLimit(readLimit)

	c := &connection{
		h:        h,
		id:       id,
		streamID: streamID,
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
		logger:   slog.With("component", "stream_connection"),
		opened:   h.clock.Now(),
	}
	c.writer = newClientWriter(conn, h.clock, func() {
		h.metrics.MessagesDropped.WithLabelValues("ping_failed").Inc()
	})
	return c
}

// run is the connection's single event loop. Inbound frames, bus events
// and the auth deadline are handled strictly one at a time.
func (c *connection) run() {
	defer c.close()

	c.h.metrics.ActiveConnections.Inc()
	c.h.metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
	c.logger.DebugContext(c.ctx, "Stream connection opened")

	frames := make(chan []byte)
	go c.readPump(frames)

	authTimer := c.h.clock.NewTimer(c.h.authTimeout)
	defer authTimer.Stop()

	var events <-chan domain.Event
	for {
		select {
		case data, ok := <-frames:
			if !ok {
				return
			}
			if !c.handleFrame(data) {
				return
			}
			if c.sub != nil && events == nil {
				events = c.sub.Events()
				authTimer.Stop()
			}

		case ev, ok := <-events:
			if !ok {
				c.logger.WarnContext(c.ctx, "Bus subscription ended")
				c.writer.closeWith(websocket.CloseGoingAway, "subscription ended")
				return
			}
			if !c.deliver(ev) {
				return
			}

		case <-authTimer.Chan():
			if !c.authenticated {
				c.h.metrics.AuthResults.WithLabelValues("timeout").Inc()
				c.logger.InfoContext(c.ctx, "Authentication timed out", "timeout", c.h.authTimeout)
				c.reject(CloseForbidden, "authentication timeout")
				return
			}

		case <-c.writer.exitedChan():
			return

		case <-c.ctx.Done():
			if c.h.baseCtx.Err() != nil {
				c.writer.closeWith(websocket.CloseGoingAway, "server shutting down")
			}
			return
		}
	}
}

// readPump forwards frames to the event loop. It cancels the connection
// context when the transport goes away so in-flight work can be discarded.
func (c *connection) readPump(frames chan<- []byte) {
	defer close(frames)
	defer c.cancel()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.logger.DebugContext(c.ctx, "Stream connection read error", "error", err)
			}
			return
		}
		select {
		case frames <- data:
		case <-c.ctx.Done():
			return
		}
	}
}

// handleFrame processes one inbound frame and reports whether the
// connection stays open.
func (c *connection) handleFrame(data []byte) bool {
	msg, err := parseInbound(data)
	if err != nil {
		c.h.metrics.MessagesDropped.WithLabelValues("malformed").Inc()
		c.logger.DebugContext(c.ctx, "Dropping malformed frame", "error", err)
		return true
	}

	switch m := msg.(type) {
	case authenticateMessage:
		if c.authenticated {
			return true
		}
		return c.authenticate(m.token)
	case chatMessage:
		if !c.authenticated {
			c.h.metrics.MessagesDropped.WithLabelValues("unauthenticated").Inc()
			return true
		}
		c.relay(m.text)
		return true
	case ignoredMessage:
		return true
	default:
		return true
	}
}

func (c *connection) authenticate(token string) bool {
	if token == "" {
		c.h.metrics.AuthResults.WithLabelValues("missing_token").Inc()
		c.reject(CloseForbidden, "authentication failed")
		return false
	}

	identity, err := c.h.verifier.Verify(c.ctx, token)
	if c.ctx.Err() != nil {
		// Transport closed or server stopping while verifying.
		return false
	}
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrIdentityNotFound) {
			c.h.metrics.AuthResults.WithLabelValues("rejected").Inc()
			c.logger.InfoContext(c.ctx, "Authentication rejected", "error", err)
			c.reject(CloseForbidden, "authentication failed")
			return false
		}
		c.h.metrics.AuthResults.WithLabelValues("error").Inc()
		c.logger.ErrorContext(c.ctx, "Token verification failed", "error", err)
		c.reject(websocket.CloseInternalServerErr, "authentication unavailable")
		return false
	}

	c.identity = identity
	c.authenticated = true
	// Join may still apply after a reply timeout, so Leave always runs.
	c.h.registry.Join(c.streamID, c.id)
	c.joined = true

	subCtx, cancel := context.WithTimeout(c.ctx, subscribeTimeout)
	sub, err := c.h.bus.Subscribe(subCtx, c.streamID)
	cancel()
	if err != nil {
		c.h.metrics.AuthResults.WithLabelValues("error").Inc()
		c.logger.ErrorContext(c.ctx, "Bus subscribe failed", "error", err)
		c.writer.closeWith(websocket.CloseInternalServerErr, "subscription unavailable")
		return false
	}
	c.sub = sub

	c.h.metrics.AuthResults.WithLabelValues("success").Inc()
	c.logger.InfoContext(c.ctx, "Stream connection authenticated", "user_id", identity.UserID, "username", identity.Username)
	return c.send(authSuccessFrame)
}

// reject sends authentication_failure followed by a close frame.
func (c *connection) reject(code int, reason string) {
	c.writer.send(authFailureFrame)
	c.writer.closeWith(code, reason)
}

func (c *connection) relay(text string) {
	ctx, cancel := context.WithTimeout(c.ctx, publishTimeout)
	defer cancel()

	event := domain.Event{Kind: domain.EventChatMessage, Message: text}
	if err := c.h.bus.Publish(ctx, c.streamID, event); err != nil {
		c.h.metrics.MessagesDropped.WithLabelValues("publish_failed").Inc()
		c.logger.WarnContext(c.ctx, "Failed to relay chat message", "error", err)
	}
}

func (c *connection) deliver(ev domain.Event) bool {
	data, err := json.Marshal(textMessage{Message: ev.Message})
	if err != nil {
		c.logger.ErrorContext(c.ctx, "Failed to marshal outbound message", "error", err)
		return true
	}
	return c.send(data)
}

// send queues a frame. A client that does not drain its buffer within
// writeDeadline is evicted with a policy-violation close.
func (c *connection) send(data []byte) bool {
	if c.writer.send(data) {
		c.h.metrics.MessagesSent.Inc()
		return true
	}
	select {
	case <-c.writer.exitedChan():
		return false
	default:
	}
	c.h.metrics.SlowClientsEvicted.Inc()
	c.logger.WarnContext(c.ctx, "Disconnecting slow client")
	c.writer.closeWith(websocket.ClosePolicyViolation, "slow consumer")
	return false
}

// close releases group membership and the bus subscription exactly once.
func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.sub != nil {
			if err := c.sub.Close(); err != nil {
				c.logger.WarnContext(c.ctx, "Failed to close bus subscription", "error", err)
			}
		}
		if c.joined {
			c.h.registry.Leave(c.streamID, c.id)
		}
		c.writer.stop()

		c.h.metrics.ActiveConnections.Dec()
		c.h.metrics.ConnectionDuration.Observe(c.h.clock.Since(c.opened).Seconds())
		c.logger.DebugContext(c.ctx, "Stream connection closed", "authenticated", c.authenticated)
	})
}
