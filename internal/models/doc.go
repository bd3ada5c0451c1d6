// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package models defines the shared domain types of the orchestrator:
// tokens, sessions, team scores, transactions, video queue items, the
// derived game state snapshot, and the HTTP error shape.
//
// Wire field names are part of the external contract and are pinned by the
// JSON tags here: tokenId, teamId, deviceId, deviceType, timestamp
// (RFC 3339). Resources carry "id"; sessionId appears only in paths and
// parameters, never inside resource bodies.
package models
