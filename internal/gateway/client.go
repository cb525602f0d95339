package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldlink/fieldlink-core/internal/auth"
)

// Client message types.
const (
	typePing = "ping"
	typePong = "pong"
)

var pongFrame = []byte(`{"type":"pong"}`)

// client is one admitted subscriber. The identity is fixed at upgrade.
type client struct {
	id      string
	gateway *Gateway
	conn    *websocket.Conn
	user    *auth.User
	send    chan []byte

	alive   atomic.Bool
	closing atomic.Bool
}

// trySend queues data without blocking. It reports false when the client
// is closing or its queue is full.
func (c *client) trySend(data []byte) (ok bool) {
	if c.closing.Load() {
		return false
	}
	defer func() {
		if recover() != nil { // queue closed between the check and the send
			ok = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) readPump() {
	defer func() {
		c.gateway.unregister(c)
		c.conn.Close() //nolint:errcheck // connection already failing
	}()

	if c.gateway.maxMessage > 0 {
		c.conn.SetReadLimit(c.gateway.maxMessage)
	}
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gateway.logger.Warn("subscriber read error", "subscriber", c.id, "error", err)
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *client) writePump() {
	defer c.conn.Close() //nolint:errcheck // writer exit ends the connection

	for message := range c.send {
		//nolint:errcheck // write error caught below
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	//nolint:errcheck // best-effort close frame
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// handleMessage answers application-level pings. Anything else is ignored;
// subscribers only listen.
func (c *client) handleMessage(data []byte) {
	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type == typePing {
		c.alive.Store(true)
		c.trySend(pongFrame)
	}
}

// RunHeartbeat checks liveness every ping interval until ctx ends.
func (g *Gateway) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(g.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.heartbeat()
		}
	}
}

// heartbeat terminates subscribers that missed the previous ping and pings
// the rest. A pong before the next tick marks a subscriber alive again.
func (g *Gateway) heartbeat() {
	deadline := time.Now().Add(writeWait)
	for _, c := range g.snapshot() {
		if !c.alive.Swap(false) {
			g.logger.Info("terminating unresponsive subscriber", "subscriber", c.id)
			c.closing.Store(true)
			c.conn.Close() //nolint:errcheck // readPump unregisters
			continue
		}
		if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
			g.logger.Debug("ping failed", "subscriber", c.id, "error", err)
		}
	}
}
