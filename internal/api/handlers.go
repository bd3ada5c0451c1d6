// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package api is the HTTP surface: admin auth, token catalog reads, the
// scan ingest used by player scanners and ESP32 props, the state
// endpoint, and operational endpoints (health, logs, metrics).
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nightshade-games/orchestrator/internal/auth"
	"github.com/nightshade-games/orchestrator/internal/devices"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/offline"
	"github.com/nightshade-games/orchestrator/internal/pipeline"
	"github.com/nightshade-games/orchestrator/internal/session"
	"github.com/nightshade-games/orchestrator/internal/state"
	"github.com/nightshade-games/orchestrator/internal/tokens"
	"github.com/nightshade-games/orchestrator/internal/validation"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Handler carries the service ports the HTTP surface calls into.
type Handler struct {
	auth      *auth.Manager
	catalog   *tokens.Catalog
	sessions  *session.Service
	pipe      *pipeline.Pipeline
	offline   *offline.Queue
	projector *state.Projector
	registry  *devices.Registry
	ring      *logging.RingBuffer

	startTime time.Time
}

// NewHandler wires the handler.
func NewHandler(am *auth.Manager, catalog *tokens.Catalog, sessions *session.Service, pipe *pipeline.Pipeline, oq *offline.Queue, projector *state.Projector, registry *devices.Registry, ring *logging.RingBuffer) *Handler {
	return &Handler{
		auth:      am,
		catalog:   catalog,
		sessions:  sessions,
		pipe:      pipe,
		offline:   oq,
		projector: projector,
		registry:  registry,
		ring:      ring,
		startTime: time.Now(),
	}
}

// AdminAuth handles POST /api/admin/auth.
func (h *Handler) AdminAuth(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if !h.auth.VerifyPassword(body.Password) {
		logging.Warn().Str("remote", r.RemoteAddr).Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, models.CodeAuthRequired, "invalid password")
		return
	}

	token, expiresIn, err := h.auth.IssueToken()
	if err != nil {
		logging.Error().Err(err).Msg("issue admin token")
		writeError(w, http.StatusInternalServerError, models.CodeInternalError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{Token: token, ExpiresIn: expiresIn})
}

// AdminLogs handles GET /api/admin/logs?lines&level. Bearer-gated by
// router middleware.
func (h *Handler) AdminLogs(w http.ResponseWriter, r *http.Request) {
	lines := 100
	if raw := r.URL.Query().Get("lines"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, models.CodeValidationError, "lines must be 1-1000")
			return
		}
		lines = n
	}
	level := logging.ParseLevel(r.URL.Query().Get("level"))

	tail := h.ring.Tail(lines, level)
	logs := make([]models.LogEntry, 0, len(tail))
	for _, line := range tail {
		logs = append(logs, models.LogEntry{
			Level:   line.Level,
			Time:    line.Time,
			Message: line.Message,
		})
	}
	writeJSON(w, http.StatusOK, models.LogsResponse{
		Logs:      logs,
		Count:     len(logs),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Tokens handles GET /api/tokens.
func (h *Handler) Tokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.TokensResponse{
		Tokens:     h.catalog.All(),
		Count:      h.catalog.Count(),
		LastUpdate: h.catalog.LastUpdate().UTC().Format(time.RFC3339),
	})
}

// Session handles GET /api/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.CurrentSession()
	if sess == nil {
		writeError(w, http.StatusNotFound, models.CodeNotFound, "no session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// State handles GET /api/state with ETag / If-None-Match support.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	snapshot := h.projector.Snapshot()
	etag := state.ETag(snapshot)

	if etag != "" {
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// Scan handles POST /api/scan: the fire-and-forget player ingest. All
// side effects (scoring, queueing, broadcasting) are complete before
// the response is written.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req models.ScanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DeviceType == "" {
		req.DeviceType = models.DevicePlayer
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		writeErrorDetails(w, http.StatusBadRequest, verr.ToAPIError())
		return
	}

	h.registry.Touch(req.DeviceID, req.DeviceType, clientIP(r))

	// No session yet means the scoring side is not up: player scans are
	// buffered and replayed once a session exists.
	if req.DeviceType == models.DevicePlayer && h.sessions.CurrentSession() == nil {
		item := h.offline.Enqueue(req, "http")
		writeJSON(w, http.StatusOK, models.ScanResponse{
			Status:  "queued",
			Message: "Scan queued for later processing",
			TokenID: item.Request.TokenID,
		})
		return
	}

	result := h.pipe.Process(req)

	// A player scan of a video token while the projector is busy is a
	// conflict: the scanner shows the wait hint and retries later.
	if req.DeviceType == models.DevicePlayer && !result.VideoQueued && result.WaitTime > 0 {
		writeJSON(w, http.StatusConflict, models.ScanResponse{
			Status:      string(models.TxRejected),
			Message:     "Video already playing",
			TokenID:     req.TokenID,
			VideoQueued: false,
			WaitTime:    result.WaitTime,
		})
		return
	}

	writeJSON(w, http.StatusOK, pipeline.SummaryForPlayer(req, result))
}

// ScanBatch handles POST /api/scan/batch. Batches come from scanners
// replaying buffered offline scans; entries are permissive - a bad
// entry yields an error result in place, never a failed batch.
func (h *Handler) ScanBatch(w http.ResponseWriter, r *http.Request) {
	var batch models.BatchScanRequest
	if !decodeBody(w, r, &batch) {
		return
	}

	results := make([]models.ScanResponse, 0, len(batch.Transactions))
	for _, req := range batch.Transactions {
		if req.DeviceType == "" {
			req.DeviceType = models.DevicePlayer
		}
		if verr := validation.ValidateStruct(&req); verr != nil {
			results = append(results, models.ScanResponse{
				Status:  string(models.TxError),
				Message: verr.Error(),
				TokenID: req.TokenID,
			})
			continue
		}
		h.registry.Touch(req.DeviceID, req.DeviceType, clientIP(r))
		if req.DeviceType == models.DevicePlayer && h.sessions.CurrentSession() == nil {
			item := h.offline.Enqueue(req, "http-batch")
			results = append(results, models.ScanResponse{
				Status:  "queued",
				Message: "Scan queued for later processing",
				TokenID: item.Request.TokenID,
			})
			continue
		}
		result := h.pipe.Process(req)
		results = append(results, pipeline.SummaryForPlayer(req, result))
	}

	logging.Info().Str("batchId", batch.BatchID).Int("entries", len(results)).Msg("scan batch processed")
	writeJSON(w, http.StatusOK, models.BatchScanResponse{Results: results})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "online",
		Version:   Version,
		Uptime:    time.Since(h.startTime).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// RequireBearer gates admin endpoints on a valid bearer token.
func (h *Handler) RequireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, models.CodeAuthRequired, "bearer token required")
			return
		}
		if _, err := h.auth.VerifyBearer(token); err != nil {
			writeError(w, http.StatusUnauthorized, models.CodeAuthRequired, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if idx := strings.LastIndex(r.RemoteAddr, ":"); idx > 0 {
		return r.RemoteAddr[:idx]
	}
	return r.RemoteAddr
}
