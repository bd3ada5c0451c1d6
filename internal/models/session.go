// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import "time"

// SessionStatus is the lifecycle state of a game session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionPaused SessionStatus = "paused"
	SessionEnded  SessionStatus = "ended"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionPaused, SessionEnded:
		return true
	}
	return false
}

// CanTransitionTo reports whether the session state machine allows moving
// from s to next:
//
//	active ⇄ paused
//	active → ended
//	paused → ended
//	ended is terminal
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionActive:
		return next == SessionPaused || next == SessionEnded
	case SessionPaused:
		return next == SessionActive || next == SessionEnded
	case SessionEnded:
		return false
	}
	return false
}

// SessionMetadata tracks aggregate counters for a session.
type SessionMetadata struct {
	GMStations          int `json:"gmStations"`
	PlayerDevices       int `json:"playerDevices"`
	TotalScans          int `json:"totalScans"`
	UniqueTokensScanned int `json:"uniqueTokensScanned"`
}

// Session is one bounded game period. At most one non-terminal session
// exists at a time; creating a new session implicitly ends the previous
// one.
type Session struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartTime time.Time       `json:"startTime"`
	EndTime   *time.Time      `json:"endTime"`
	Status    SessionStatus   `json:"status"`
	Teams     []string        `json:"teams"`
	Metadata  SessionMetadata `json:"metadata"`
}

// IsActive reports whether the session accepts scoring transactions.
func (s *Session) IsActive() bool {
	return s != nil && s.Status == SessionActive
}

// Terminal reports whether the session has ended.
func (s *Session) Terminal() bool {
	return s != nil && s.Status == SessionEnded
}
