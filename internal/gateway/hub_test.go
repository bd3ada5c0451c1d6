// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// serverConn upgrades one real connection and hands back the server
// side, so hub drop paths that close the socket have something to
// close.
func serverConn(t *testing.T) *websocket.Conn {
	t.Helper()
	connCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connCh <- conn
	}))
	t.Cleanup(srv.Close)

	dialer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = dialer.Close() })
	return <-connCh
}

func TestSlowSocketDropToleratesLateReplies(t *testing.T) {
	e := newHubEnv(t)
	c := gmClient()
	c.hub = e.hub
	c.conn = serverConn(t)
	e.hub.clients[c] = true

	// Fill the outbound buffer so the next fan-out overflows.
	for c.enqueue(outbound(EventPong, nil)) {
	}

	e.hub.fanOut(outbound(EventSyncFull, nil))

	e.hub.mu.RLock()
	_, present := e.hub.clients[c]
	e.hub.mu.RUnlock()
	if present {
		t.Fatal("overflowed client still registered")
	}

	// The client's read goroutine can still be mid-handle when the hub
	// drops it; a late private reply must be swallowed, not panic.
	e.hub.sendTo(c, EventPong, nil)
	e.hub.sendError(c, "INTERNAL_ERROR", "late reply")
	if c.enqueue(outbound(EventPong, nil)) {
		t.Error("enqueue succeeded after drop")
	}
}

func TestDropIsIdempotent(t *testing.T) {
	e := newHubEnv(t)
	c := gmClient()
	c.hub = e.hub
	c.conn = serverConn(t)
	e.hub.clients[c] = true

	e.hub.drop(c)
	// A second unregister for the same client (read pump exit racing the
	// overflow drop) must be a no-op.
	e.hub.drop(c)
	c.closeSend()

	if c.enqueue(outbound(EventPong, nil)) {
		t.Error("enqueue succeeded after drop")
	}
}
