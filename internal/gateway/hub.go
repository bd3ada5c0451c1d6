// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package gateway is the WebSocket surface for GM and admin stations:
// handshake auth, transaction submission, the gm:command table, and the
// fan-out endpoint the broadcast fabric writes to.
package gateway

import (
	"context"
	"sort"
	"sync"

	"github.com/nightshade-games/orchestrator/internal/auth"
	"github.com/nightshade-games/orchestrator/internal/devices"
	"github.com/nightshade-games/orchestrator/internal/display"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/metrics"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/offline"
	"github.com/nightshade-games/orchestrator/internal/pipeline"
	"github.com/nightshade-games/orchestrator/internal/session"
	"github.com/nightshade-games/orchestrator/internal/state"
	"github.com/nightshade-games/orchestrator/internal/video"
)

// Deps are the service ports the hub drives. The hub translates frames
// to service calls; it holds no game state of its own.
type Deps struct {
	Auth      *auth.Manager
	Sessions  *session.Service
	Pipeline  *pipeline.Pipeline
	Video     *video.Controller
	Display   *display.Controller
	Offline   *offline.Queue
	Projector *state.Projector
	Registry  *devices.Registry
}

// Hub maintains connected sockets and fans out envelopes.
type Hub struct {
	deps Deps

	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Envelope

	// runCtx is the supervision context, used for work started from
	// message handlers (offline drains).
	runCtx context.Context
}

// NewHub builds the hub.
func NewHub(deps Deps) *Hub {
	return &Hub{
		deps:       deps,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Envelope, 256),
	}
}

// Serve runs the hub loop until ctx is canceled. Lifecycle events take
// priority over broadcasts so client state is settled before fan-out.
func (h *Hub) Serve(ctx context.Context) error {
	h.runCtx = ctx
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		default:
		}

		select {
		case c := <-h.register:
			h.add(c)
			continue
		case c := <-h.unregister:
			h.drop(c)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.drop(c)
		case env := <-h.broadcast:
			h.fanOut(env)
		}
	}
}

// Broadcast queues an envelope for every authenticated socket. Never
// blocks the caller; a full hub queue drops the event with a log line.
func (h *Hub) Broadcast(event string, data interface{}) {
	metrics.BroadcastsTotal.WithLabelValues(event).Inc()
	select {
	case h.broadcast <- outbound(event, data):
	default:
		logging.Warn().Str("event", event).Msg("broadcast channel full, dropping event")
	}
}

// ClientCount returns the number of registered sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.ConnectedSockets.Set(float64(total))
	logging.Info().Int("totalClients", total).Msg("socket connected")
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		c.closeSend()
	}
	total := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	metrics.ConnectedSockets.Set(float64(total))
	if c.authed {
		h.deps.Registry.Remove(c.deviceID)
	}
	logging.Info().Int("totalClients", total).Str("deviceId", c.deviceID).Msg("socket disconnected")
}

// fanOut delivers one envelope to every authenticated client in id
// order. Clients with full buffers are dropped.
func (h *Hub) fanOut(env Envelope) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if c.authed {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var overflowed []*Client
	for _, c := range clients {
		if !c.enqueue(env) {
			overflowed = append(overflowed, c)
		}
	}
	for _, c := range overflowed {
		delete(h.clients, c)
		c.closeSend()
	}
	h.mu.Unlock()

	for _, c := range overflowed {
		logging.Warn().Str("deviceId", c.deviceID).Msg("slow socket dropped on overflow")
		if c.authed {
			h.deps.Registry.Remove(c.deviceID)
		}
		_ = c.conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		c.closeSend()
		delete(h.clients, c)
	}
	h.mu.Unlock()
	logging.Info().Int("clientsClosed", len(clients)).Msg("gateway hub stopped")
}

// sendTo delivers a private envelope to one client.
func (h *Hub) sendTo(c *Client, event string, data interface{}) {
	if !c.enqueue(outbound(event, data)) {
		logging.Warn().Str("deviceId", c.deviceID).Str("event", event).Msg("private send dropped, buffer full")
	}
}

// sendError emits the wire error envelope to the originator.
func (h *Hub) sendError(c *Client, code, message string) {
	h.sendTo(c, EventError, models.WireError{Code: code, Message: message})
}
