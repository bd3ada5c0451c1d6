// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package events

import (
	"time"

	"github.com/nightshade-games/orchestrator/internal/models"
)

// Domain topics. These are internal names; the broadcast fabric owns the
// mapping to wire event names.
const (
	TopicSessionUpdated   = "session.updated"
	TopicScoreUpdated     = "score.updated"
	TopicGroupCompleted   = "group.completed"
	TopicTransactionNew   = "transaction.new"
	TopicVideoStatus      = "video.status"
	TopicOfflineProcessed = "offline.queue.processed"
	TopicDeviceConnected  = "device.connected"
	TopicDeviceGone       = "device.disconnected"
	TopicPlayerScan       = "player.scan"
	TopicServiceError     = "service.error"
)

// AllTopics lists every domain topic the broadcast fabric subscribes to.
var AllTopics = []string{
	TopicSessionUpdated,
	TopicScoreUpdated,
	TopicGroupCompleted,
	TopicTransactionNew,
	TopicVideoStatus,
	TopicOfflineProcessed,
	TopicDeviceConnected,
	TopicDeviceGone,
	TopicPlayerScan,
	TopicServiceError,
}

// SessionUpdated carries the full session after a lifecycle change.
type SessionUpdated struct {
	Session models.Session `json:"session"`
}

// ScoreUpdated carries the full team score after any score mutation.
type ScoreUpdated struct {
	Score models.TeamScore `json:"score"`
}

// GroupCompleted announces a group-completion bonus. Internal names differ
// from the wire (groupId/bonus vs group/bonusPoints); the fabric owns that
// translation.
type GroupCompleted struct {
	TeamID      string `json:"teamId"`
	GroupID     string `json:"groupId"`
	Bonus       int    `json:"bonus"`
	MemberCount int    `json:"memberCount"`
}

// TransactionNew carries an observer-visible transaction (accepted,
// duplicate, or rejected - never status error).
type TransactionNew struct {
	Transaction models.Transaction `json:"transaction"`
}

// VideoStatusChanged carries the playback status after an FSM transition
// or a queue-length change.
type VideoStatusChanged struct {
	Status models.VideoStatus `json:"status"`
}

// OfflineProcessed summarizes one drain run.
type OfflineProcessed struct {
	Summary models.OfflineProcessedSummary `json:"summary"`
}

// DeviceEvent announces a scanner connecting or disconnecting.
type DeviceEvent struct {
	Device models.DeviceInfo `json:"device"`
}

// PlayerScan mirrors an HTTP player scan to GM stations.
type PlayerScan struct {
	TokenID     string    `json:"tokenId"`
	DeviceID    string    `json:"deviceId"`
	Timestamp   time.Time `json:"timestamp"`
	VideoQueued bool      `json:"videoQueued"`
}

// ServiceError is an operationally visible failure (media player down,
// persistence I/O error). The fabric forwards it as a wire error event.
type ServiceError struct {
	Service string `json:"service"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
