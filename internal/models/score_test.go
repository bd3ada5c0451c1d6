// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import "testing"

func TestRecomputeInvariant(t *testing.T) {
	ts := NewTeamScore("001")
	ts.BaseScore = 5100
	ts.BonusPoints = 600
	ts.AdminAdjustments = append(ts.AdminAdjustments,
		AdminAdjustment{Delta: -500, Reason: "prop mishandled"},
		AdminAdjustment{Delta: 250, Reason: "side quest"},
	)

	ts.Recompute()

	want := 5100 + 600 - 500 + 250
	if ts.CurrentScore != want {
		t.Errorf("CurrentScore = %d, want %d", ts.CurrentScore, want)
	}
}

func TestHasCompletedGroup(t *testing.T) {
	ts := NewTeamScore("001")
	if ts.HasCompletedGroup("server_farm") {
		t.Error("new score should have no completed groups")
	}
	ts.CompletedGroups = append(ts.CompletedGroups, "server_farm")
	if !ts.HasCompletedGroup("server_farm") {
		t.Error("completed group not found")
	}
	if ts.HasCompletedGroup("vault") {
		t.Error("unexpected group reported complete")
	}
}
