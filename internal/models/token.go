// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

// MediaAssets holds the optional media references attached to a token.
// Filenames are relative to the media player's library root.
type MediaAssets struct {
	Video           string `json:"video,omitempty"`
	Image           string `json:"image,omitempty"`
	Audio           string `json:"audio,omitempty"`
	ProcessingImage string `json:"processingImage,omitempty"`
}

// Token is one NFC/RFID token definition. Tokens are immutable after the
// catalog loads them; all components treat them as read-only.
type Token struct {
	ID          string      `json:"id"`
	MemoryType  string      `json:"memoryType"`
	ValueRating int         `json:"valueRating"`
	Group       string      `json:"group,omitempty"`
	MediaAssets MediaAssets `json:"mediaAssets"`
	// DurationSec is the video length in seconds for tokens with a video
	// asset.
	DurationSec int `json:"duration,omitempty"`
}

// HasVideo reports whether scanning this token should trigger playback.
func (t *Token) HasVideo() bool {
	return t.MediaAssets.Video != ""
}
