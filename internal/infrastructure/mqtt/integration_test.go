//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/infrastructure/config"
)

// Integration tests require a broker at 127.0.0.1:1883.
//
//	go test -tags=integration -count=1 ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker:             config.MQTTBrokerConfig{Host: "127.0.0.1", Port: 1883, ClientID: clientID},
		QoS:                1,
		ConnectTimeout:     4,
		ReconnectInterval:  1,
		StatusPollInterval: 5,
	}
}

func TestIntegration_SubscribeBeforeConnect(t *testing.T) {
	ctx := context.Background()
	topic := "fieldlink/int/responses"

	sub := New(integrationConfig("fieldlink-int-sub"), &recordingLogger{})
	received := make(chan string, 1)
	if err := sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		select {
		case received <- string(p):
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close() //nolint:errcheck // test cleanup

	pub := New(integrationConfig("fieldlink-int-pub"), &recordingLogger{})
	if err := pub.Connect(ctx); err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close() //nolint:errcheck // test cleanup

	if got := pub.Status(); got != StatusConnected {
		t.Fatalf("Status() = %q, want connected", got)
	}

	time.Sleep(200 * time.Millisecond)
	if err := pub.Publish(ctx, topic, []byte(`{"command":5}`), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != `{"command":5}` {
			t.Errorf("received %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}
}
