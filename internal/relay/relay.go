package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/phrazzld/webapp-api/internal/events"
	"github.com/phrazzld/webapp-api/internal/metrics"
	"github.com/phrazzld/webapp-api/internal/service/auth"
)

// Defaults applied by NewHandler when Options leaves a field zero.
const (
	DefaultCookieName     = "access_token_cookie"
	DefaultReceiveTimeout = 60 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
)

// Subscription is a single subscriber's view of the broadcast channel.
type Subscription interface {
	// Receive returns the next payload, or (nil, nil) after timeout.
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	Close() error
}

// Subscriber opens a new Subscription per connection.
type Subscriber interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context) (Subscription, error)

// Subscribe implements Subscriber.
func (f SubscriberFunc) Subscribe(ctx context.Context) (Subscription, error) {
	return f(ctx)
}

// TokenValidator checks the handshake credential.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (*auth.Claims, error)
}

// Options configures a Handler.
type Options struct {
	CookieName     string
	ReceiveTimeout time.Duration
	WriteTimeout   time.Duration

	// CheckOrigin overrides the upgrader's same-origin check.
	CheckOrigin func(r *http.Request) bool

	// Observer, if set, sees every state transition.
	Observer Observer
}

// authErrorMessage is sent before closing a connection whose credential
// was rejected.
type authErrorMessage struct {
	AuthError string `json:"auth_error"`
}

// Handler upgrades requests to websocket connections and serves them.
type Handler struct {
	subscriber Subscriber
	tokens     TokenValidator
	sink       metrics.Sink
	logger     *slog.Logger
	opts       Options
	upgrader   websocket.Upgrader
}

// NewHandler creates a relay Handler.
func NewHandler(
	subscriber Subscriber,
	tokens TokenValidator,
	sink metrics.Sink,
	logger *slog.Logger,
	opts Options,
) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = DefaultReceiveTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if sink == nil {
		sink = metrics.NewNoopSink()
	}

	return &Handler{
		subscriber: subscriber,
		tokens:     tokens,
		sink:       sink,
		logger:     logger.With("component", "relay"),
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
	}
}

// ServeHTTP handles one websocket connection for its whole lifetime.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	log := h.logger.With("conn_id", id)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		log.Debug("websocket upgrade failed", "error", err)
		return
	}

	c := &connection{
		id:      id,
		handler: h,
		conn:    conn,
		logger:  log,
	}
	c.serve(r)
}

// connection holds the per-client state. Writes are serialized by writeMu
// because gorilla connections allow one concurrent writer.
type connection struct {
	id      string
	handler *Handler
	conn    *websocket.Conn
	logger  *slog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *connection) setState(s State) {
	c.logger.Debug("relay connection state", "state", s.String())
	if obs := c.handler.opts.Observer; obs != nil {
		obs(c.id, s)
	}
}

func (c *connection) serve(r *http.Request) {
	h := c.handler
	h.sink.RelayConnectionOpened()
	defer h.sink.RelayConnectionClosed()

	c.setState(StateConnecting)

	claims, err := c.authenticate(r)
	if err != nil {
		h.sink.RelayAuthRejected()
		c.logger.Info("relay authentication rejected", "error", err)
		c.rejectAuth(err)
		c.closeTransport()
		c.setState(StateClosed)
		return
	}
	c.logger = c.logger.With("user_id", claims.UserID)
	c.setState(StateAuthenticated)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.subscriber.Subscribe(ctx)
	if err != nil {
		c.logger.Error("failed to subscribe to events channel", "error", err)
		c.closeWith(websocket.CloseInternalServerErr, "subscription unavailable")
		c.closeTransport()
		c.setState(StateClosed)
		return
	}
	c.setState(StateSubscribed)

	go c.forward(ctx, sub)
	c.watch()

	// The forwarder is signalled, not awaited: it exits on its next receive
	// once the context is cancelled or the subscription is closed.
	c.setState(StateDraining)
	cancel()

	c.closeTransport()
	if err := sub.Close(); err != nil {
		c.logger.Debug("failed to close subscription", "error", err)
	}
	c.setState(StateClosed)
}

func (c *connection) authenticate(r *http.Request) (*auth.Claims, error) {
	cookie, err := r.Cookie(c.handler.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, auth.ErrMissingToken
	}
	return c.handler.tokens.ValidateToken(r.Context(), cookie.Value)
}

// rejectAuth tells the client why it is being dropped and closes with a
// policy-violation code.
func (c *connection) rejectAuth(cause error) {
	msg := authErrorMessage{AuthError: authErrorText(cause)}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.handler.opts.WriteTimeout))
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Debug("failed to send auth error", "error", err)
	}

	c.closeWith(websocket.ClosePolicyViolation, msg.AuthError)
}

func authErrorText(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrUnsupportedAlgorithm),
		errors.Is(err, auth.ErrInvalidToken):
		return err.Error()
	default:
		return auth.ErrInvalidToken.Error()
	}
}

func (c *connection) closeWith(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	deadline := time.Now().Add(c.handler.opts.WriteTimeout)
	if err := c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		c.logger.Debug("failed to send close frame", "error", err)
	}
}

// closeTransport closes the underlying connection exactly once.
func (c *connection) closeTransport() {
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("failed to close websocket", "error", err)
		}
	})
}

// watch blocks reading the client until the connection fails or is closed.
// Client messages carry no meaning and are discarded.
func (c *connection) watch() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("relay client read failed", "error", err)
			}
			return
		}
	}
}

// forward relays events until ctx is cancelled. A receive or write failure
// closes the transport, which ends watch and so the whole connection.
func (c *connection) forward(ctx context.Context, sub Subscription) {
	timeout := c.handler.opts.ReceiveTimeout

	for {
		if ctx.Err() != nil {
			return
		}

		body, err := sub.Receive(ctx, timeout)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("events subscription failed", "error", err)
				c.closeTransport()
			}
			return
		}
		if body == nil {
			continue
		}

		if _, err := events.Decode(body); err != nil {
			c.logger.Warn("skipping malformed event", "error", err)
			continue
		}

		if err := c.write(body); err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("failed to write event to client", "error", err)
				c.closeTransport()
			}
			return
		}
		c.handler.sink.RelayMessageForwarded()
	}
}

func (c *connection) write(body json.RawMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.handler.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, body)
}
