// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import "testing"

func TestSessionTransitions(t *testing.T) {
	tests := []struct {
		from SessionStatus
		to   SessionStatus
		ok   bool
	}{
		{SessionActive, SessionPaused, true},
		{SessionActive, SessionEnded, true},
		{SessionActive, SessionActive, false},
		{SessionPaused, SessionActive, true},
		{SessionPaused, SessionEnded, true},
		{SessionPaused, SessionPaused, false},
		{SessionEnded, SessionActive, false},
		{SessionEnded, SessionPaused, false},
		{SessionEnded, SessionEnded, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestSessionPredicates(t *testing.T) {
	var nilSession *Session
	if nilSession.IsActive() {
		t.Error("nil session must not be active")
	}

	s := &Session{Status: SessionActive}
	if !s.IsActive() {
		t.Error("active session must be active")
	}
	if s.Terminal() {
		t.Error("active session must not be terminal")
	}

	s.Status = SessionEnded
	if !s.Terminal() {
		t.Error("ended session must be terminal")
	}
}
