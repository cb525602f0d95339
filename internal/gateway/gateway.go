package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fieldlink/fieldlink-core/internal/auth"
	"github.com/fieldlink/fieldlink-core/internal/eventbus"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
)

const (
	// bearerProtocol is the sub-protocol that carries a token for clients
	// that cannot set an Authorization header.
	bearerProtocol = "bearer"

	writeWait         = 10 * time.Second
	defaultSendBuffer = 64
	defaultPing       = 30 * time.Second
)

// ErrClosed is returned by Accept after Close.
var ErrClosed = errors.New("gateway: closed")

// IdentityResolver turns a bearer token into a user. *auth.Resolver
// implements it.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*auth.User, error)
}

// Metrics tracks open subscribers. *metrics.Metrics implements it.
type Metrics interface {
	SubscriberCount(n int)
}

type nopMetrics struct{}

func (nopMetrics) SubscriberCount(int) {}

// Gateway authenticates socket upgrades and broadcasts bus events to every
// admitted subscriber.
type Gateway struct {
	resolver     IdentityResolver
	logger       *logging.Logger
	metrics      Metrics
	upgrader     websocket.Upgrader
	sendBuffer   int
	maxMessage   int64
	pingInterval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// New creates a gateway. m may be nil.
func New(cfg config.WebSocketConfig, resolver IdentityResolver, logger *logging.Logger, m Metrics) *Gateway {
	if m == nil {
		m = nopMetrics{}
	}
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	ping := time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPing
	}

	return &Gateway{
		resolver:     resolver,
		logger:       logger.With("component", "gateway"),
		metrics:      m,
		sendBuffer:   sendBuffer,
		maxMessage:   int64(cfg.MaxMessageSize),
		pingInterval: ping,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{bearerProtocol},
			// Origin checking is handled by the CORS middleware.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Authenticate resolves the bearer credential of an upgrade request.
// Missing or unresolvable credentials yield auth.ErrTokenMissing or
// auth.ErrTokenInvalid; any other error means the resolver failed.
func (g *Gateway) Authenticate(r *http.Request) (*auth.User, error) {
	token := requestToken(r)
	if token == "" {
		return nil, auth.ErrTokenMissing
	}
	return g.resolver.ResolveIdentity(r.Context(), token)
}

// Accept completes the upgrade for an authenticated user and registers
// the subscriber. On failure a response has already been written.
func (g *Gateway) Accept(w http.ResponseWriter, r *http.Request, user *auth.User) error {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		http.Error(w, "gateway closed", http.StatusServiceUnavailable)
		return ErrClosed
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:      uuid.NewString(),
		gateway: g,
		conn:    conn,
		user:    user,
		send:    make(chan []byte, g.sendBuffer),
	}
	c.alive.Store(true)

	if !g.register(c) {
		conn.Close() //nolint:errcheck // gateway shut down mid-upgrade
		return ErrClosed
	}

	g.logger.Info("subscriber connected", "subscriber", c.id, "user_id", user.ID)

	go c.writePump()
	go c.readPump()
	return nil
}

// requestToken reads a Bearer Authorization header, falling back to the
// "bearer, <token>" sub-protocol pair.
func requestToken(r *http.Request) string {
	if token := auth.BearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	protocols := websocket.Subprotocols(r)
	if len(protocols) >= 2 && strings.EqualFold(protocols[0], bearerProtocol) {
		return protocols[1]
	}
	return ""
}

func (g *Gateway) register(c *client) bool {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return false
	}
	g.clients[c] = struct{}{}
	n := len(g.clients)
	g.mu.Unlock()

	g.metrics.SubscriberCount(n)
	return true
}

// unregister removes c. Only the caller that removes it closes its queue.
func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	_, existed := g.clients[c]
	delete(g.clients, c)
	n := len(g.clients)
	g.mu.Unlock()

	if existed {
		c.closing.Store(true)
		close(c.send)
		g.metrics.SubscriberCount(n)
		g.logger.Info("subscriber disconnected", "subscriber", c.id, "user_id", c.user.ID)
	}
}

// ClientCount returns the number of registered subscribers.
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

func (g *Gateway) snapshot() []*client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	clients := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	return clients
}

// Close disconnects every subscriber and rejects further upgrades.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	clients := g.clients
	g.clients = make(map[*client]struct{})
	g.mu.Unlock()

	for c := range clients {
		c.closing.Store(true)
		close(c.send)
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck // shutting down
		}
	}
	g.metrics.SubscriberCount(0)
}

// Subscriber is the event bus side the gateway listens on.
type Subscriber interface {
	Subscribe(name string, handler eventbus.Handler, topics ...eventbus.Topic) (unsubscribe func())
}

// Attach subscribes the gateway to every broadcast topic.
func (g *Gateway) Attach(bus Subscriber) (unsubscribe func()) {
	return bus.Subscribe("gateway", func(_ context.Context, ev eventbus.Event) error {
		return g.Broadcast(ev.Topic, ev.Payload)
	},
		eventbus.TopicConnectionStatus,
		eventbus.TopicDeviceResponse,
		eventbus.TopicCommandUsage,
		eventbus.TopicEcho,
	)
}
