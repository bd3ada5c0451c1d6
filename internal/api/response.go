// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
)

// writeJSON writes a JSON body with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response body")
	}
}

// writeError writes the contract error shape {error, message, details?}.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIError{Error: code, Message: message})
}

// writeErrorDetails is writeError with a details payload.
func writeErrorDetails(w http.ResponseWriter, status int, apiErr *models.APIError) {
	writeJSON(w, status, apiErr)
}

// decodeBody decodes a JSON request body, rejecting unknown garbage
// with a uniform validation error.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, models.CodeValidationError, "malformed JSON body")
		return false
	}
	return true
}
