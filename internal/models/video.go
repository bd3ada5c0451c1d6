// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import "time"

// PlaybackState is the video playback FSM state.
//
//	idle → loading → playing → completed → idle
//	playing ⇄ paused
//	loading/playing → error → (next item or idle)
type PlaybackState string

const (
	PlaybackIdle      PlaybackState = "idle"
	PlaybackLoading   PlaybackState = "loading"
	PlaybackPlaying   PlaybackState = "playing"
	PlaybackPaused    PlaybackState = "paused"
	PlaybackCompleted PlaybackState = "completed"
	PlaybackError     PlaybackState = "error"
)

// VideoItemStatus is the lifecycle state of one queued video.
type VideoItemStatus string

const (
	VideoQueued    VideoItemStatus = "queued"
	VideoPlaying   VideoItemStatus = "playing"
	VideoCompleted VideoItemStatus = "completed"
	VideoFailed    VideoItemStatus = "error"
)

// VideoQueueItem is one entry in the playback queue.
type VideoQueueItem struct {
	ID          string          `json:"id"`
	TokenID     string          `json:"tokenId"`
	Filename    string          `json:"filename"`
	DurationSec int             `json:"durationSec"`
	EnqueueTime time.Time       `json:"enqueueTime"`
	StartTime   *time.Time      `json:"startTime"`
	Status      VideoItemStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
}

// VideoStatus is the externally visible playback status, broadcast on
// every FSM transition and queue-length change. QueueLength counts items
// behind the current one (0 when idle).
type VideoStatus struct {
	Status      PlaybackState `json:"status"`
	TokenID     string        `json:"tokenId,omitempty"`
	DurationSec int           `json:"durationSec,omitempty"`
	PositionSec int           `json:"positionSec,omitempty"`
	QueueLength int           `json:"queueLength"`
	Error       string        `json:"error,omitempty"`
}

// EnqueueResult is the answer to a video enqueue attempt.
type EnqueueResult struct {
	Queued bool `json:"queued"`
	// Reason is set when the enqueue was rejected (e.g. VIDEO_TAKEN).
	Reason string `json:"reason,omitempty"`
	// WaitTime is the estimated seconds until the player is free.
	WaitTime int `json:"waitTime,omitempty"`
}
