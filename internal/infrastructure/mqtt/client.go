package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
)

// Status is the observed state of the broker connection.
type Status string

const (
	StatusConnected     Status = "connected"
	StatusConnecting    Status = "connecting"
	StatusDisconnecting Status = "disconnecting"
	StatusDisconnected  Status = "disconnected"
)

// Logger is the subset of logging.Logger the client needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's delivery goroutine in arrival order and should
// return quickly. A returned error is logged; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client wraps paho.mqtt.golang with a persistent session and a fixed
// reconnect period.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Tracked subscriptions are re-issued after every successful connect.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	logger Logger

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	closing atomic.Bool

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// New creates a client for the configured broker without connecting.
func New(cfg config.MQTTConfig, logger Logger) *Client {
	c := &Client{
		cfg:           cfg,
		logger:        logger,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleConnectionLost(err) })
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.logger.Info("reconnecting to MQTT broker", "broker", brokerURL(cfg))
	})
	// Queued session messages can arrive before the on-connect handler has
	// re-registered per-topic callbacks; route them through the tracked set.
	opts.SetDefaultPublishHandler(c.routeUnmatched)

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect starts connecting and waits up to the configured connect timeout
// (or until ctx ends) for the first connection.
//
// A broker refusal returns ErrConnectionFailed. If the broker simply cannot
// be reached in time, ErrTimeout is returned and the client keeps retrying
// in the background; callers may treat that as non-fatal.
func (c *Client) Connect(ctx context.Context) error {
	c.closing.Store(false)
	token := c.client.Connect()

	timeout := time.Duration(c.cfg.ConnectTimeout) * time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: broker %s not reachable after %v", ErrTimeout, brokerURL(c.cfg), timeout)
	case <-ctx.Done():
		return fmt.Errorf("mqtt connect: %w", ctx.Err())
	}
}

func (c *Client) handleConnect() {
	c.logger.Info("connected to MQTT broker", "broker", brokerURL(c.cfg))
	c.restoreSubscriptions()

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) handleConnectionLost(err error) {
	c.logger.Warn("MQTT connection lost", "error", err)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions re-issues every tracked subscription. It runs on
// each connect so that a broker that lost the session still delivers.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		if err := c.subscribe(sub); err != nil {
			c.logger.Error("restoring MQTT subscription", "topic", sub.topic, "error", err)
		}
	}
}

// Close disconnects from the broker, letting in-flight work finish.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	c.closing.Store(true)
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.closing.Store(false)
	return nil
}

// Status samples the current connection state.
//
// paho reports IsConnected while an automatic reconnect is pending, so a
// connected-but-not-open client is in the middle of (re)connecting.
func (c *Client) Status() Status {
	switch {
	case c.closing.Load():
		return StatusDisconnecting
	case c.client.IsConnectionOpen():
		return StatusConnected
	case c.client.IsConnected():
		return StatusConnecting
	default:
		return StatusDisconnected
	}
}

// IsConnected reports whether the connection is open right now.
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// HealthCheck returns ErrNotConnected unless the connection is open.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// SetOnConnect sets a callback invoked on initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// routeUnmatched delivers messages paho could not match to a live
// per-topic callback.
func (c *Client) routeUnmatched(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.subMu.RLock()
	var handler MessageHandler
	for _, sub := range c.subscriptions {
		if topicMatches(sub.topic, msg.Topic()) {
			handler = sub.handler
			break
		}
	}
	c.subMu.RUnlock()

	if handler == nil {
		c.logger.Warn("MQTT message on untracked topic dropped", "topic", msg.Topic())
		return
	}
	c.invoke(handler, msg.Topic(), msg.Payload())
}

func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.invoke(handler, msg.Topic(), msg.Payload())
	}
}

// invoke runs handler with panic recovery so one bad message cannot stop delivery.
func (c *Client) invoke(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
		}
	}()

	if err := handler(topic, payload); err != nil {
		c.logger.Warn("MQTT handler returned error", "topic", topic, "error", err)
	}
}

// topicMatches reports whether topic matches the subscription filter,
// honouring the + and # wildcards.
func topicMatches(filter, topic string) bool {
	if filter == topic {
		return true
	}
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	for i, part := range fp {
		if part == "#" {
			return true
		}
		if i >= len(tp) {
			return false
		}
		if part != "+" && part != tp[i] {
			return false
		}
	}
	return len(fp) == len(tp)
}
