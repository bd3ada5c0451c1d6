// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package state derives the full game snapshot from the owning
// components. The snapshot is never stored; every read reconstructs it,
// so it cannot drift from the sources of truth.
package state

import (
	"fmt"
	"hash/fnv"

	"github.com/goccy/go-json"

	"github.com/nightshade-games/orchestrator/internal/devices"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/pipeline"
	"github.com/nightshade-games/orchestrator/internal/session"
	"github.com/nightshade-games/orchestrator/internal/video"
)

// recentTransactions is how many transactions a snapshot carries.
const recentTransactions = 10

// PlayerHealth reports media player reachability for the system status
// block. The vlc port satisfies it.
type PlayerHealth interface {
	Connected() bool
}

// Projector assembles GameState snapshots.
type Projector struct {
	sessions *session.Service
	pipe     *pipeline.Pipeline
	video    *video.Controller
	registry *devices.Registry
	player   PlayerHealth
}

// New wires the projector to its sources.
func New(sessions *session.Service, pipe *pipeline.Pipeline, vc *video.Controller, registry *devices.Registry, player PlayerHealth) *Projector {
	return &Projector{
		sessions: sessions,
		pipe:     pipe,
		video:    vc,
		registry: registry,
		player:   player,
	}
}

// Snapshot builds the current game state.
func (p *Projector) Snapshot() models.GameState {
	videoStatus := p.video.Status()

	vlcState := "disconnected"
	if p.player.Connected() {
		vlcState = "connected"
	}
	if videoStatus.Status == models.PlaybackError {
		vlcState = "error"
	}

	return models.GameState{
		Session:            p.sessions.CurrentSession(),
		Scores:             p.sessions.TeamScores(),
		RecentTransactions: p.pipe.Recent(recentTransactions),
		VideoStatus:        videoStatus,
		Devices:            p.registry.List(),
		SystemStatus: models.SystemStatus{
			Orchestrator:      "online",
			VLC:               vlcState,
			VideoDisplayReady: p.player.Connected(),
		},
	}
}

// ETag returns a strong validator for a snapshot, derived from its JSON
// encoding. Clients poll /api/state; matching tags short-circuit to 304.
func ETag(snapshot models.GameState) string {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return ""
	}
	h := fnv.New64a()
	h.Write(blob)
	return fmt.Sprintf(`"%x"`, h.Sum64())
}
