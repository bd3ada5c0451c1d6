// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package gateway

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nightshade-games/orchestrator/internal/logging"
)

// Handler returns the HTTP handler that upgrades /ws connections.
// Origin checking mirrors the CORS allowlist; "*" admits every origin.
func (h *Hub) Handler(allowedOrigins []string) http.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients (GM scanner firmware) send no Origin.
			return allowAll || origin == "" || allowed[origin]
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		ip := r.RemoteAddr
		if host, _, splitErr := net.SplitHostPort(r.RemoteAddr); splitErr == nil {
			ip = host
		}

		client := newClient(h, conn, ip)
		h.register <- client
		client.start()
	}
}
