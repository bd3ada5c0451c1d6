// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import "time"

// OfflineQueueItem is one deferred scan waiting for connectivity or a
// downstream service to recover. ClientID keys idempotent retries.
type OfflineQueueItem struct {
	ClientID  string      `json:"clientId"`
	Request   ScanRequest `json:"request"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"` // player | gm
}

// OfflineResult is the per-entry outcome of one drained scan.
type OfflineResult struct {
	TransactionID string            `json:"transactionId,omitempty"`
	Status        TransactionStatus `json:"status"`
	TokenID       string            `json:"tokenId"`
	Error         string            `json:"error,omitempty"`
}

// OfflineProcessedSummary is the body of the offline:queue:processed
// event. Failed entries surface here for operator inspection; they are
// not requeued automatically.
type OfflineProcessedSummary struct {
	QueueSize int             `json:"queueSize"`
	Results   []OfflineResult `json:"results"`
}
