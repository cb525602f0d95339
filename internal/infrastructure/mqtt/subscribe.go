package mqtt

import "fmt"

// Subscribe registers handler for topic (wildcards allowed).
//
// The subscription is tracked and re-issued after every connect. When the
// client is not connected yet, Subscribe only records it and returns nil;
// the broker subscription happens on the next successful connect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	sub := subscription{topic: topic, qos: qos, handler: handler}

	c.subMu.Lock()
	c.subscriptions[topic] = sub
	c.subMu.Unlock()

	if !c.IsConnected() {
		return nil
	}
	return c.subscribe(sub)
}

func (c *Client) subscribe(sub subscription) error {
	token := c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

// HasSubscription reports whether topic is tracked (exact filter string).
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}
