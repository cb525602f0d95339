package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/eventbus"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/logging"
	"github.com/fieldlink/fieldlink-core/internal/infrastructure/mqtt"
	"github.com/fieldlink/fieldlink-core/internal/protocol"
)

// ErrNotConnected is returned by PublishFrame when the broker connection is
// not open. It wraps mqtt.ErrNotConnected.
var ErrNotConnected = fmt.Errorf("broker: %w", mqtt.ErrNotConnected)

// Transport is the connection the client drives. *mqtt.Client implements it.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Status() mqtt.Status
	IsConnected() bool
}

// Publisher is the event bus side the client writes to.
type Publisher interface {
	Publish(topic eventbus.Topic, payload any)
}

// Metrics receives broker counters. *metrics.Metrics implements it.
type Metrics interface {
	ResponseDecoded(code int)
	ResponseMalformed()
	BrokerStatus(status string)
}

type nopMetrics struct{}

func (nopMetrics) ResponseDecoded(int) {}
func (nopMetrics) ResponseMalformed()  {}
func (nopMetrics) BrokerStatus(string) {}

// Options holds the fixed topics and timing of the device link.
type Options struct {
	CommandTopic  string
	ResponseTopic string
	QoS           byte
	PollInterval  time.Duration
}

// OptionsFromConfig maps the mqtt config section to Options.
func OptionsFromConfig(cfg config.MQTTConfig) Options {
	return Options{
		CommandTopic:  cfg.Topics.Command,
		ResponseTopic: cfg.Topics.Response,
		QoS:           byte(cfg.QoS),
		PollInterval:  cfg.GetStatusPollInterval(),
	}
}

// StatusEvent is published on TopicConnectionStatus when the sampled
// connection status changes.
type StatusEvent struct {
	Status   mqtt.Status `json:"status"`
	Previous mqtt.Status `json:"previous"`
}

// ResponseEvent is published on TopicDeviceResponse for every decoded frame.
// It serialises as the normalised wire frame.
type ResponseEvent struct {
	Response   protocol.Response
	ReceivedAt time.Time
}

// MarshalJSON encodes the response in its wire shape.
func (e ResponseEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Response.Frame())
}

// Client is the single owner of the device link. Other components publish
// frames and observe status only through it.
type Client struct {
	transport Transport
	bus       Publisher
	opts      Options
	logger    *logging.Logger
	metrics   Metrics

	statusMu   sync.Mutex
	lastStatus mqtt.Status
}

// New creates a broker client. metrics may be nil.
func New(transport Transport, bus Publisher, opts Options, logger *logging.Logger, m Metrics) *Client {
	if m == nil {
		m = nopMetrics{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Client{
		transport:  transport,
		bus:        bus,
		opts:       opts,
		logger:     logger.With("component", "broker"),
		metrics:    m,
		lastStatus: mqtt.StatusDisconnected,
	}
}

// Start registers the response-topic handler. The transport re-subscribes
// on every connect, so Start is called once before connecting.
func (c *Client) Start() error {
	if err := c.transport.Subscribe(c.opts.ResponseTopic, c.opts.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", c.opts.ResponseTopic, err)
	}
	return nil
}

// PublishFrame encodes frame and publishes it to the command topic.
// Nothing is queued or retried.
func (c *Client) PublishFrame(ctx context.Context, frame protocol.DeviceFrame) error {
	payload, err := frame.Encode()
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	if err := c.transport.Publish(ctx, c.opts.CommandTopic, payload, c.opts.QoS, false); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			return ErrNotConnected
		}
		return fmt.Errorf("publishing frame to coordinator %d node %d: %w", frame.CoordID, frame.NodeID, err)
	}
	return nil
}

// IsConnected reports whether frames can be published right now.
func (c *Client) IsConnected() bool {
	return c.transport.IsConnected()
}

// Status returns the transport's current status.
func (c *Client) Status() mqtt.Status {
	return c.transport.Status()
}

// handleMessage decodes one inbound payload. Malformed payloads are logged
// and dropped; nothing is returned upward so paho never sees a failure.
func (c *Client) handleMessage(topic string, payload []byte) error {
	resp, err := protocol.DecodeResponse(payload)
	if err != nil {
		c.metrics.ResponseMalformed()
		c.logger.Warn("discarding malformed device frame",
			"topic", topic, "error", err, "size", len(payload))
		return nil
	}

	c.metrics.ResponseDecoded(resp.Code())
	c.bus.Publish(eventbus.TopicDeviceResponse, ResponseEvent{
		Response:   resp,
		ReceivedAt: time.Now().UTC(),
	})
	return nil
}
