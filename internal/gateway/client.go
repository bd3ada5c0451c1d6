// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// sendBuffer bounds per-socket outbound queues. A socket that cannot
	// keep up is dropped rather than allowed to stall the fabric.
	sendBuffer = 256
)

// clientIDCounter gives clients a stable sort key so broadcasts walk
// them in a consistent order.
var clientIDCounter atomic.Uint64

// Client is one connected GM or admin socket.
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn

	// sendMu orders enqueue against closeSend: the read goroutine can
	// still be replying privately while the hub drops the client, and
	// a send on the closed channel would panic the process.
	sendMu sync.Mutex
	closed bool
	send   chan Envelope

	ip string

	// Set by the auth handshake; zero until authed is true.
	authed     bool
	deviceID   string
	deviceType models.DeviceType
}

func newClient(hub *Hub, conn *websocket.Conn, ip string) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Envelope, sendBuffer),
		ip:   ip,
	}
}

// enqueue hands an envelope to the write pump without blocking. The
// caller learns about overflow; the hub decides to drop the socket.
// Returns false once the client has been closed.
func (c *Client) enqueue(env Envelope) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// closeSend shuts the outbound queue exactly once. Idempotent; safe
// against concurrent enqueue.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump decodes inbound envelopes and hands them to the hub. Runs
// until the connection dies.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).Str("deviceId", c.deviceID).Msg("unexpected websocket close")
			}
			return
		}
		c.hub.handle(c, env)
	}
}

// writePump drains the send channel to the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				logging.Error().Err(err).Str("deviceId", c.deviceID).Msg("write websocket frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// start begins the client pumps.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}
