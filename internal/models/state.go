// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import "time"

// DeviceInfo describes one connected scanner.
type DeviceInfo struct {
	DeviceID       string     `json:"deviceId"`
	Type           DeviceType `json:"type"`
	IP             string     `json:"ip,omitempty"`
	ConnectionTime time.Time  `json:"connectionTime"`
	LastSeen       time.Time  `json:"lastSeen"`
}

// SystemStatus summarizes orchestrator and media player connectivity.
type SystemStatus struct {
	Orchestrator      string `json:"orchestrator"` // online | offline
	VLC               string `json:"vlc"`          // connected | disconnected | error
	VideoDisplayReady bool   `json:"videoDisplayReady"`
}

// GameState is the derived snapshot consumed by GET /api/state and by the
// sync:full event on GM connect. It is never stored; the projector
// reconstructs it from the owning components on demand.
type GameState struct {
	Session            *Session      `json:"session"`
	Scores             []TeamScore   `json:"scores"`
	RecentTransactions []Transaction `json:"recentTransactions"`
	VideoStatus        VideoStatus   `json:"videoStatus"`
	Devices            []DeviceInfo  `json:"devices"`
	SystemStatus       SystemStatus  `json:"systemStatus"`
}
