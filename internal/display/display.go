// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package display tracks what the shared HDMI output is showing when no
// token video is playing: the ambient idle loop or the scoreboard page.
// The projector client polls this through gm:command acks; the
// orchestrator itself never renders.
package display

import (
	"sync"

	"github.com/nightshade-games/orchestrator/internal/logging"
)

// Mode is the display mode.
type Mode string

const (
	ModeIdleLoop   Mode = "idle-loop"
	ModeScoreboard Mode = "scoreboard"
)

// Controller is the display mode holder.
type Controller struct {
	mu   sync.Mutex
	mode Mode
}

// New starts in the idle loop.
func New() *Controller {
	return &Controller{mode: ModeIdleLoop}
}

// Set switches to the given mode and returns it.
func (c *Controller) Set(mode Mode) Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != mode {
		logging.Info().Str("from", string(c.mode)).Str("to", string(mode)).Msg("display mode changed")
		c.mode = mode
	}
	return c.mode
}

// Toggle flips between idle loop and scoreboard and returns the new
// mode.
func (c *Controller) Toggle() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeIdleLoop {
		c.mode = ModeScoreboard
	} else {
		c.mode = ModeIdleLoop
	}
	logging.Info().Str("mode", string(c.mode)).Msg("display mode toggled")
	return c.mode
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}
