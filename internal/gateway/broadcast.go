package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/fieldlink/fieldlink-core/internal/eventbus"
)

// Envelope builds the broadcast frame for one event: the payload's JSON
// object with a "type" field set to the topic. Non-object payloads are
// carried under "data".
func Envelope(topic eventbus.Topic, payload any) ([]byte, error) {
	typ, err := json.Marshal(string(topic))
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", topic, err)
	}

	fields := map[string]json.RawMessage{}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", topic, err)
		}
	} else if !bytes.Equal(body, []byte("null")) {
		fields["data"] = body
	}
	fields["type"] = typ

	return json.Marshal(fields)
}

// Broadcast sends one event to every open subscriber. Subscribers that
// are closing or whose queue is full are skipped, never awaited.
func (g *Gateway) Broadcast(topic eventbus.Topic, payload any) error {
	frame, err := Envelope(topic, payload)
	if err != nil {
		return err
	}

	sent, skipped := 0, 0
	for _, c := range g.snapshot() {
		if c.trySend(frame) {
			sent++
		} else {
			skipped++
		}
	}
	if skipped > 0 {
		g.logger.Debug("broadcast skipped subscribers", "type", topic, "sent", sent, "skipped", skipped)
	}
	return nil
}
