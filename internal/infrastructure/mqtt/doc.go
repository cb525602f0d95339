// Package mqtt provides the broker transport for FieldLink Core.
//
// It wraps paho.mqtt.golang with:
//   - a persistent session (CleanSession=false) so subscriptions and
//     undelivered QoS>0 messages survive reconnects
//   - automatic reconnect on a constant interval
//   - subscriptions tracked locally and re-issued after every connect
//   - a status sampler (connected, connecting, disconnecting, disconnected)
//   - panic recovery around message handlers
//
// Domain framing (device command frames and responses) lives in the
// broker and protocol packages; this package only moves bytes.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT, logger)
//	_ = client.Subscribe(cfg.MQTT.Topics.Response, 1, handle)
//	if err := client.Connect(ctx); errors.Is(err, mqtt.ErrTimeout) {
//	    logger.Warn("broker unreachable, retrying in background")
//	}
//	defer client.Close()
//
// TLS should be enabled for any broker outside the local host.
package mqtt
