package broker

import (
	"context"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/eventbus"
)

// LinkEvents reports connect and loss as they happen. *mqtt.Client
// implements it.
type LinkEvents interface {
	SetOnConnect(callback func())
	SetOnDisconnect(callback func(err error))
}

// WatchLink samples the status as soon as the link connects or drops,
// ahead of the next poll tick.
func (c *Client) WatchLink(link LinkEvents) {
	link.SetOnConnect(func() { c.PollStatus() })
	link.SetOnDisconnect(func(err error) {
		c.logger.Warn("broker link lost", "error", err)
		c.PollStatus()
	})
}

// PollStatus samples the transport status once and publishes a
// StatusEvent if it differs from the previous sample. It reports whether
// an event was published.
func (c *Client) PollStatus() bool {
	current := c.transport.Status()

	c.statusMu.Lock()
	previous := c.lastStatus
	if current == previous {
		c.statusMu.Unlock()
		return false
	}
	c.lastStatus = current
	c.statusMu.Unlock()

	c.metrics.BrokerStatus(string(current))
	c.logger.Info("broker status changed", "status", current, "previous", previous)
	c.bus.Publish(eventbus.TopicConnectionStatus, StatusEvent{Status: current, Previous: previous})
	return true
}

// RunStatusPoller samples the status every poll interval until ctx ends.
func (c *Client) RunStatusPoller(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	c.metrics.BrokerStatus(c.lastObserved())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PollStatus()
		}
	}
}

func (c *Client) lastObserved() string {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return string(c.lastStatus)
}
