// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

import "time"

// AdminAdjustment is one manual score correction made by a GM. The list on
// TeamScore is append-only; deltas are never collapsed.
type AdminAdjustment struct {
	Delta      int       `json:"delta"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
	GMDeviceID string    `json:"gmDeviceId"`
}

// TeamScore is the per-team scoring record for the current session.
//
// Invariant: CurrentScore = BaseScore + BonusPoints + sum of adjustment
// deltas. Recompute enforces it after every mutation.
type TeamScore struct {
	TeamID           string            `json:"teamId"`
	CurrentScore     int               `json:"currentScore"`
	BaseScore        int               `json:"baseScore"`
	BonusPoints      int               `json:"bonusPoints"`
	TokensScanned    int               `json:"tokensScanned"`
	CompletedGroups  []string          `json:"completedGroups"`
	AdminAdjustments []AdminAdjustment `json:"adminAdjustments"`
	LastUpdate       time.Time         `json:"lastUpdate"`
}

// NewTeamScore returns a zeroed score record for a team.
func NewTeamScore(teamID string) *TeamScore {
	return &TeamScore{
		TeamID:           teamID,
		CompletedGroups:  []string{},
		AdminAdjustments: []AdminAdjustment{},
		LastUpdate:       time.Now().UTC(),
	}
}

// Recompute rederives CurrentScore from its parts.
func (ts *TeamScore) Recompute() {
	total := ts.BaseScore + ts.BonusPoints
	for _, adj := range ts.AdminAdjustments {
		total += adj.Delta
	}
	ts.CurrentScore = total
}

// HasCompletedGroup reports whether the team already collected the bonus
// for the given group in this session.
func (ts *TeamScore) HasCompletedGroup(groupID string) bool {
	for _, g := range ts.CompletedGroups {
		if g == groupID {
			return true
		}
	}
	return false
}
