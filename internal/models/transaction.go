// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import (
	"fmt"
	"strings"
	"time"
)

// DeviceType identifies the kind of scanner that produced a scan.
type DeviceType string

const (
	DevicePlayer DeviceType = "player"
	DeviceGM     DeviceType = "gm"
	DeviceESP32  DeviceType = "esp32"
	DeviceAdmin  DeviceType = "admin"
)

// Valid reports whether d is a known device type.
func (d DeviceType) Valid() bool {
	switch d {
	case DevicePlayer, DeviceGM, DeviceESP32, DeviceAdmin:
		return true
	}
	return false
}

// Mode is the game mode a GM scan runs under. The set is closed; unknown
// values are rejected at the boundary instead of being normalized away.
type Mode string

const (
	// ModeBlackmarket is the scoring mode and the default for GM scans.
	ModeBlackmarket Mode = "blackmarket"
	// ModeDetective records transactions for observers without scoring.
	ModeDetective Mode = "detective"
)

// ParseMode maps a wire mode string to a Mode. Empty input selects
// blackmarket. Case differences are accepted once here; everywhere else
// the closed constants are used.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "":
		return ModeBlackmarket, nil
	case ModeBlackmarket:
		return ModeBlackmarket, nil
	case ModeDetective:
		return ModeDetective, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Scores reports whether transactions in this mode update team scores.
func (m Mode) Scores() bool {
	return m == ModeBlackmarket
}

// TransactionStatus is the outcome classification of one scan.
type TransactionStatus string

const (
	TxAccepted  TransactionStatus = "accepted"
	TxDuplicate TransactionStatus = "duplicate"
	TxRejected  TransactionStatus = "rejected"
	TxError     TransactionStatus = "error"
)

// Transaction is one recorded scan event. MemoryType and ValueRating are
// denormalized from the token so observers need no catalog access.
type Transaction struct {
	ID          string            `json:"id"`
	TokenID     string            `json:"tokenId"`
	TeamID      string            `json:"teamId"`
	DeviceID    string            `json:"deviceId"`
	DeviceType  DeviceType        `json:"deviceType"`
	Mode        Mode              `json:"mode"`
	Status      TransactionStatus `json:"status"`
	Timestamp   time.Time         `json:"timestamp"`
	Points      int               `json:"points"`
	MemoryType  string            `json:"memoryType,omitempty"`
	ValueRating int               `json:"valueRating,omitempty"`
	// Summary is an optional narrative string carried verbatim.
	Summary string `json:"summary,omitempty"`
}

// ScanRequest is the submission shape shared by the HTTP ingest and the
// GM gateway. TeamID is free-form (GMs type it); TokenID is restricted to
// the tokenid pattern.
type ScanRequest struct {
	TokenID    string     `json:"tokenId" validate:"required,min=1,max=100,tokenid"`
	TeamID     string     `json:"teamId,omitempty"`
	DeviceID   string     `json:"deviceId" validate:"required,min=1,max=100"`
	DeviceType DeviceType `json:"deviceType" validate:"required,oneof=player gm esp32 admin"`
	Mode       string     `json:"mode,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	// ClientID makes offline retries idempotent.
	ClientID string `json:"clientId,omitempty"`
}

// TransactionResult is the pipeline's answer to one submitted scan.
type TransactionResult struct {
	Status      TransactionStatus `json:"status"`
	Transaction *Transaction      `json:"transaction,omitempty"`
	Points      int               `json:"points"`
	Message     string            `json:"message"`
	VideoQueued bool              `json:"videoQueued"`
	// WaitTime is the estimated seconds until the current video finishes,
	// set on video conflicts.
	WaitTime int `json:"waitTime,omitempty"`
}

// ScanResponse is the HTTP body returned to player scanners. Players are
// fire-and-forget, so all side effects have happened by the time this is
// written.
type ScanResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	TokenID     string `json:"tokenId"`
	VideoQueued bool   `json:"videoQueued"`
	WaitTime    int    `json:"waitTime,omitempty"`
}

// BatchScanRequest is the body of POST /api/scan/batch.
type BatchScanRequest struct {
	BatchID      string        `json:"batchId"`
	Transactions []ScanRequest `json:"transactions"`
}

// BatchScanResponse preserves per-entry outcomes in submission order.
type BatchScanResponse struct {
	Results []ScanResponse `json:"results"`
}
