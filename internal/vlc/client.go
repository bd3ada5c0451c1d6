// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package vlc is the media player port. It drives VLC's HTTP interface
// and reports connectivity edges and playback completion to the video
// FSM. The orchestrator never assumes the player is present: every
// failure degrades, nothing exits.
package vlc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/nightshade-games/orchestrator/internal/config"
	"github.com/nightshade-games/orchestrator/internal/logging"
)

// ErrUnavailable is returned for commands while the player is
// unreachable or the circuit breaker is open.
var ErrUnavailable = errors.New("media player unavailable")

// Status is a normalized VLC status snapshot.
type Status struct {
	State       string `json:"state"` // playing | paused | stopped
	CurrentFile string `json:"currentFile,omitempty"`
	PositionSec int    `json:"positionSec"`
	LengthSec   int    `json:"lengthSec"`
}

// vlcStatus mirrors the fields we read from /requests/status.json.
type vlcStatus struct {
	State       string `json:"state"`
	Time        int    `json:"time"`
	Length      int    `json:"length"`
	Information struct {
		Category struct {
			Meta struct {
				Filename string `json:"filename"`
			} `json:"meta"`
		} `json:"category"`
	} `json:"information"`
}

// client issues commands against VLC's HTTP interface. Commands run
// through a circuit breaker so a dead player fails fast instead of
// stacking 2-second timeouts inside the video FSM.
type client struct {
	baseURL  string
	password string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*Status]
}

func newClient(cfg config.VLCConfig) *client {
	settings := gobreaker.Settings{
		Name: "vlc",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		Timeout: 10 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("media player circuit breaker state change")
		},
	}

	return &client{
		baseURL:  fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port),
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.CommandTimeout},
		breaker:  gobreaker.NewCircuitBreaker[*Status](settings),
	}
}

// command issues one VLC command and returns the resulting status.
func (c *client) command(ctx context.Context, name string, params url.Values) (*Status, error) {
	status, err := c.breaker.Execute(func() (*Status, error) {
		return c.request(ctx, name, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrUnavailable
		}
		return nil, err
	}
	return status, nil
}

// status polls without the breaker: the poll loop is the health probe
// that decides when the player is back.
func (c *client) status(ctx context.Context) (*Status, error) {
	return c.request(ctx, "", nil)
}

func (c *client) request(ctx context.Context, command string, params url.Values) (*Status, error) {
	if params == nil {
		params = url.Values{}
	}
	if command != "" {
		params.Set("command", command)
	}

	u := c.baseURL + "/requests/status.json"
	if encoded := params.Encode(); encoded != "" {
		u += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build vlc request: %w", err)
	}
	// VLC's HTTP interface authenticates with an empty username.
	req.SetBasicAuth("", c.password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vlc request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vlc returned status %d", resp.StatusCode)
	}

	var raw vlcStatus
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode vlc status: %w", err)
	}

	return &Status{
		State:       raw.State,
		CurrentFile: raw.Information.Category.Meta.Filename,
		PositionSec: raw.Time,
		LengthSec:   raw.Length,
	}, nil
}
