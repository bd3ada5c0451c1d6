// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package models

// API error codes. The HTTP layer and the gateway emit only these.
const (
	CodeValidationError  = "VALIDATION_ERROR"
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeNotFound         = "NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeVideoTaken       = "VIDEO_TAKEN"
)

// APIError is the HTTP error body: {error, message, details?}.
type APIError struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WireError is the error payload broadcast to sockets.
type WireError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// AuthResponse is the body of POST /api/admin/auth.
type AuthResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string  `json:"status"`
	Version   string  `json:"version"`
	Uptime    float64 `json:"uptime"` // seconds
	Timestamp string  `json:"timestamp"`
}

// TokensResponse is the body of GET /api/tokens.
type TokensResponse struct {
	Tokens     []Token `json:"tokens"`
	Count      int     `json:"count"`
	LastUpdate string  `json:"lastUpdate"`
}

// LogsResponse is the body of GET /api/admin/logs.
type LogsResponse struct {
	Logs      []LogEntry `json:"logs"`
	Count     int        `json:"count"`
	Timestamp string     `json:"timestamp"`
}

// LogEntry is one captured log line in the admin logs response.
type LogEntry struct {
	Level   string `json:"level"`
	Time    string `json:"time"`
	Message string `json:"message"`
}
