package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
)

// testConfig points at a port nothing listens on; no broker is needed.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1,
			ClientID: "fieldlink-test",
		},
		Auth:               config.MQTTAuthConfig{Username: "ops", Password: "secret"},
		QoS:                1,
		ConnectTimeout:     1,
		ReconnectInterval:  1,
		StatusPollInterval: 5,
	}
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// ─── Options ────────────────────────────────────────────────────────────

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883
	cfg.ReconnectInterval = 3

	opts := buildClientOptions(cfg)

	if opts.CleanSession {
		t.Error("CleanSession = true, want persistent session")
	}
	if !opts.AutoReconnect || !opts.ConnectRetry {
		t.Error("automatic reconnect not enabled")
	}
	if opts.ConnectRetryInterval != 3*time.Second || opts.MaxReconnectInterval != 3*time.Second {
		t.Errorf("retry intervals = %v/%v, want constant 3s", opts.ConnectRetryInterval, opts.MaxReconnectInterval)
	}
	if opts.ConnectTimeout != time.Second {
		t.Errorf("ConnectTimeout = %v, want 1s", opts.ConnectTimeout)
	}
	if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:8883" {
		t.Errorf("broker = %q, want ssl://127.0.0.1:8883", got)
	}
	if opts.Username != "ops" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q, want ops/secret", opts.Username, opts.Password)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig = nil with TLS enabled")
	}
}

func TestBrokerURL_Plain(t *testing.T) {
	if got := brokerURL(testConfig()); got != "tcp://127.0.0.1:1" {
		t.Errorf("brokerURL() = %q, want tcp://127.0.0.1:1", got)
	}
}

// ─── Connection state ───────────────────────────────────────────────────

func TestNew_StartsDisconnected(t *testing.T) {
	c := New(testConfig(), &recordingLogger{})

	if got := c.Status(); got != StatusDisconnected {
		t.Errorf("Status() = %q, want %q", got, StatusDisconnected)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true before Connect")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestConnect_UnreachableBrokerKeepsRetrying(t *testing.T) {
	c := New(testConfig(), &recordingLogger{})
	defer c.Close() //nolint:errcheck // test cleanup

	err := c.Connect(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Connect() = %v, want ErrTimeout", err)
	}
	if got := c.Status(); got != StatusConnecting {
		t.Errorf("Status() = %q, want %q while retrying", got, StatusConnecting)
	}
}

func TestConnect_ContextCancelled(t *testing.T) {
	c := New(testConfig(), &recordingLogger{})
	defer c.Close() //nolint:errcheck // test cleanup

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() = %v, want context.Canceled", err)
	}
}

func TestConnectionCallbacks(t *testing.T) {
	logger := &recordingLogger{}
	c := New(testConfig(), logger)

	var connects int
	var lost error
	c.SetOnConnect(func() { connects++ })
	c.SetOnDisconnect(func(err error) { lost = err })

	c.handleConnect()
	c.handleConnectionLost(errors.New("EOF"))

	if connects != 1 {
		t.Errorf("connect callbacks = %d, want 1", connects)
	}
	if lost == nil || lost.Error() != "EOF" {
		t.Errorf("disconnect callback error = %v, want EOF", lost)
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one for the lost connection", logger.warns)
	}
}

// ─── Publish / Subscribe ────────────────────────────────────────────────

func TestPublish_Validation(t *testing.T) {
	c := New(testConfig(), &recordingLogger{})
	ctx := context.Background()

	tests := []struct {
		name    string
		topic   string
		qos     byte
		payload []byte
		want    error
	}{
		{"empty topic", "", 1, []byte("{}"), ErrInvalidTopic},
		{"bad qos", "t", 3, []byte("{}"), ErrInvalidQoS},
		{"oversized", "t", 1, make([]byte, maxPayloadSize+1), ErrPublishFailed},
		{"not connected", "t", 1, []byte("{}"), ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(ctx, tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribe_TrackedBeforeConnect(t *testing.T) {
	c := New(testConfig(), &recordingLogger{})

	err := c.Subscribe("site/responses", 1, func(string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !c.HasSubscription("site/responses") {
		t.Error("HasSubscription() = false, want subscription tracked for next connect")
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := New(testConfig(), &recordingLogger{})
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("t", 5, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("t", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler: %v, want ErrSubscribeFailed", err)
	}
}

func TestRouteUnmatched_DeliversToTrackedHandler(t *testing.T) {
	logger := &recordingLogger{}
	c := New(testConfig(), logger)

	var got string
	_ = c.Subscribe("site/+/responses", 1, func(topic string, payload []byte) error {
		got = topic + " " + string(payload)
		return nil
	})

	c.routeUnmatched(nil, fakeMessage{topic: "site/a/responses", payload: []byte("queued")})
	if got != "site/a/responses queued" {
		t.Errorf("handler saw %q, want queued message", got)
	}

	c.routeUnmatched(nil, fakeMessage{topic: "other/topic"})
	if len(logger.warns) != 1 {
		t.Errorf("warnings = %v, want one for untracked topic", logger.warns)
	}
}

func TestInvoke_RecoversPanic(t *testing.T) {
	logger := &recordingLogger{}
	c := New(testConfig(), logger)

	c.invoke(func(string, []byte) error { panic("boom") }, "t", nil)
	c.invoke(func(string, []byte) error { return errors.New("bad frame") }, "t", nil)

	if len(logger.errors) != 1 {
		t.Errorf("errors logged = %d, want 1 (panic)", len(logger.errors))
	}
	if len(logger.warns) != 1 {
		t.Errorf("warnings logged = %d, want 1 (handler error)", len(logger.warns))
	}
}

func TestTopicMatches(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"a/b", "a/b", true},
		{"a/b", "a/c", false},
		{"a/+/c", "a/x/c", true},
		{"a/+/c", "a/x/y", false},
		{"a/#", "a/x/y/z", true},
		{"a/+", "a/x/y", false},
		{"a/b/c", "a/b", false},
	}

	for _, tt := range tests {
		if got := topicMatches(tt.filter, tt.topic); got != tt.want {
			t.Errorf("topicMatches(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
		}
	}
}
