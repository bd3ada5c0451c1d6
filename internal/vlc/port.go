// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package vlc

import (
	"context"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/nightshade-games/orchestrator/internal/config"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/metrics"
)

// EventType classifies events emitted by the port.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	// EventCompleted is synthesized when playback finishes: the state
	// edge playing→stopped, or position reaching length.
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event is one connectivity or playback edge.
type Event struct {
	Type    EventType
	Message string
}

// Player is the capability surface the video FSM consumes.
type Player interface {
	Connected() bool
	Play(ctx context.Context, filename string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	Status(ctx context.Context) (*Status, error)
	ReturnToIdleLoop(ctx context.Context) error
	Events() <-chan Event
}

// Port is the production Player backed by VLC's HTTP interface. Its
// Serve loop polls status at a short interval, maintains the connected
// flag, and synthesizes completion edges.
type Port struct {
	cfg    config.VLCConfig
	client *client

	connected atomic.Bool
	events    chan Event

	// lastState and sawPlaying feed completion edge detection; only the
	// Serve goroutine touches them.
	lastState  string
	sawPlaying bool
}

// NewPort builds the port. When cfg.Enabled is false the port reports
// disconnected forever and every command fails with ErrUnavailable;
// callers degrade instead of branching on configuration.
func NewPort(cfg config.VLCConfig) *Port {
	return &Port{
		cfg:    cfg,
		client: newClient(cfg),
		events: make(chan Event, 16),
	}
}

// Connected reports current player reachability.
func (p *Port) Connected() bool {
	return p.connected.Load()
}

// Events returns the edge event stream consumed by the video FSM.
func (p *Port) Events() <-chan Event {
	return p.events
}

// Play starts playback of filename, replacing whatever is loaded.
func (p *Port) Play(ctx context.Context, filename string) error {
	if !p.Connected() {
		return ErrUnavailable
	}
	params := url.Values{}
	params.Set("input", filename)
	_, err := p.client.command(ctx, "in_play", params)
	return err
}

// Pause pauses playback.
func (p *Port) Pause(ctx context.Context) error {
	if !p.Connected() {
		return ErrUnavailable
	}
	_, err := p.client.command(ctx, "pl_forcepause", nil)
	return err
}

// Resume resumes paused playback.
func (p *Port) Resume(ctx context.Context) error {
	if !p.Connected() {
		return ErrUnavailable
	}
	_, err := p.client.command(ctx, "pl_forceresume", nil)
	return err
}

// Stop stops playback and clears the playlist.
func (p *Port) Stop(ctx context.Context) error {
	if !p.Connected() {
		return ErrUnavailable
	}
	if _, err := p.client.command(ctx, "pl_stop", nil); err != nil {
		return err
	}
	_, err := p.client.command(ctx, "pl_empty", nil)
	return err
}

// Status returns the current player status.
func (p *Port) Status(ctx context.Context) (*Status, error) {
	if !p.Connected() {
		return nil, ErrUnavailable
	}
	return p.client.status(ctx)
}

// ReturnToIdleLoop puts the ambient video back on screen. The player is
// configured to loop its playlist, so a single play suffices.
func (p *Port) ReturnToIdleLoop(ctx context.Context) error {
	if p.cfg.IdleLoopFile == "" {
		return nil
	}
	return p.Play(ctx, p.cfg.IdleLoopFile)
}

// Serve runs the status poll loop until ctx is canceled. It is run as a
// supervised service; returning restarts it with fresh edge-detection
// state.
func (p *Port) Serve(ctx context.Context) error {
	if !p.cfg.Enabled {
		logging.Info().Msg("media player disabled, port idle")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Port) poll(ctx context.Context) {
	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.CommandTimeout)
	defer cancel()

	status, err := p.client.status(pollCtx)
	if err != nil {
		if p.connected.Swap(false) {
			metrics.PlayerConnected.Set(0)
			logging.Warn().Err(err).Msg("media player disconnected")
			p.emit(Event{Type: EventDisconnected, Message: err.Error()})
		}
		p.lastState = ""
		p.sawPlaying = false
		return
	}

	if !p.connected.Swap(true) {
		metrics.PlayerConnected.Set(1)
		logging.Info().Msg("media player connected")
		p.emit(Event{Type: EventConnected})
	}

	p.detectCompletion(status)
	p.lastState = status.State
}

// detectCompletion synthesizes the completed edge: VLC reports no
// explicit "finished" event over HTTP, so we watch for the state falling
// out of playing after we saw it playing, or the position reaching the
// length.
func (p *Port) detectCompletion(status *Status) {
	switch status.State {
	case "playing":
		p.sawPlaying = true
		if status.LengthSec > 0 && status.PositionSec >= status.LengthSec {
			p.sawPlaying = false
			p.emit(Event{Type: EventCompleted, Message: status.CurrentFile})
		}
	case "stopped", "ended":
		if p.sawPlaying && (p.lastState == "playing" || p.lastState == "paused") {
			p.sawPlaying = false
			p.emit(Event{Type: EventCompleted, Message: status.CurrentFile})
		}
	}
}

// emit delivers an event without ever blocking the poll loop.
func (p *Port) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		logging.Warn().Str("type", string(ev.Type)).Msg("player event channel full, dropping event")
	}
}
