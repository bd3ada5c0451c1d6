// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package gateway

import (
	"time"

	"github.com/goccy/go-json"
)

// Wire event names. Inbound names are handled by the hub; outbound
// names are produced here and by the broadcast fabric.
const (
	EventAuth              = "auth"
	EventIdentify          = "gm:identify"
	EventTransactionSubmit = "transaction:submit"
	EventGMCommand         = "gm:command"
	EventPing              = "ping"

	EventAuthSuccess       = "auth:success"
	EventPong              = "pong"
	EventSyncFull          = "sync:full"
	EventTransactionResult = "transaction:result"
	EventGMCommandAck      = "gm:command:ack"
	EventError             = "error"
)

// Envelope is the wire frame: every message in both directions is
// {event, data, timestamp}.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// outbound wraps a payload for sending. Marshal failures surface as a
// frame with null data rather than a dropped event.
func outbound(event string, data interface{}) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	return Envelope{
		Event:     event,
		Data:      raw,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// authFrame is the handshake payload carried by auth and gm:identify.
type authFrame struct {
	Token      string `json:"token"`
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType"`
	Version    string `json:"version,omitempty"`
}

// commandFrame is the gm:command payload.
type commandFrame struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// commandAck is the gm:command:ack payload. Message is always set, even
// on success.
type commandAck struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}
