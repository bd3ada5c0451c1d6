// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package pipeline classifies every submitted scan and produces exactly
// one TransactionResult per submission. It owns duplicate detection
// (first-claim per token) and the transaction history; scoring is
// delegated to the session service, playback to the video FSM.
package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/metrics"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/persistence"
	"github.com/nightshade-games/orchestrator/internal/session"
	"github.com/nightshade-games/orchestrator/internal/tokens"
)

// historyLimit bounds the in-memory transaction log. A full evening of
// play is a few hundred scans; 1000 gives ample headroom.
const historyLimit = 1000

// VideoEnqueuer is the playback side-effect surface the pipeline needs.
// The video FSM implements it. Exclusive enqueues fail when the player
// is busy instead of queueing; player scanners use that to surface the
// video-taken conflict immediately.
type VideoEnqueuer interface {
	Enqueue(token *models.Token, exclusive bool) models.EnqueueResult
}

// Pipeline is the scan classification pipeline.
type Pipeline struct {
	mu       sync.Mutex
	catalog  *tokens.Catalog
	sessions *session.Service
	video    VideoEnqueuer
	store    persistence.Store
	bus      *events.Bus

	// claims maps tokenId to the teamId that first claimed it. At most
	// one accepted scoring transaction exists per token.
	claims  map[string]string
	history []models.Transaction
	// clientResults caches results by clientId so offline retries are
	// idempotent.
	clientResults map[string]models.TransactionResult
}

type txSnapshot struct {
	Claims  map[string]string    `json:"claims"`
	History []models.Transaction `json:"history"`
}

// New builds the pipeline and restores claims and history from the
// store.
func New(catalog *tokens.Catalog, sessions *session.Service, video VideoEnqueuer, store persistence.Store, bus *events.Bus) *Pipeline {
	p := &Pipeline{
		catalog:       catalog,
		sessions:      sessions,
		video:         video,
		store:         store,
		bus:           bus,
		claims:        make(map[string]string),
		clientResults: make(map[string]models.TransactionResult),
	}

	var snap txSnapshot
	found, err := persistence.LoadJSON(store, persistence.KeyTransactions, &snap)
	if err != nil {
		logging.Error().Err(err).Msg("restore transactions failed, starting clean")
	} else if found {
		if snap.Claims != nil {
			p.claims = snap.Claims
		}
		p.history = snap.History
		logging.Info().Int("claims", len(p.claims)).Int("history", len(p.history)).Msg("transactions restored")
	}

	// Claims and history are scoped to one session: a fresh session
	// starts with every token claimable again.
	sessions.OnSessionCreate(p.Reset)
	return p
}

// Process runs one scan through the pipeline: catalog lookup, session
// gate, duplicate detection, scoring, playback side effect. The caller
// always gets a result; errors are classifications, not panics.
func (p *Pipeline) Process(req models.ScanRequest) models.TransactionResult {
	if req.ClientID != "" {
		p.mu.Lock()
		if cached, ok := p.clientResults[req.ClientID]; ok {
			p.mu.Unlock()
			return cached
		}
		p.mu.Unlock()
	}

	result := p.classify(req)

	if req.ClientID != "" {
		p.mu.Lock()
		p.clientResults[req.ClientID] = result
		p.mu.Unlock()
	}
	return result
}

func (p *Pipeline) classify(req models.ScanRequest) models.TransactionResult {
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		return models.TransactionResult{
			Status:  models.TxRejected,
			Message: "Unknown mode: " + req.Mode,
		}
	}

	token := p.catalog.Lookup(req.TokenID)
	if token == nil {
		return models.TransactionResult{
			Status:  models.TxError,
			Message: "Invalid token",
		}
	}

	if err := p.sessions.Gate(); err != nil {
		if req.DeviceType != models.DevicePlayer {
			return models.TransactionResult{
				Status:  models.TxError,
				Message: err.Error(),
			}
		}
		// Player scans are still logged past the gate, and the ambient
		// video is not gated by session state.
		result := p.record(req, mode, token, models.TxError, 0, err.Error())
		p.playVideo(req, token, &result)
		return result
	}

	// Scoring scans claim the token for their team; the first claim
	// wins, everything after is a duplicate regardless of team. Player
	// scans never claim, never score, never run duplicate detection.
	scoring := mode.Scores() && req.TeamID != "" && req.DeviceType != models.DevicePlayer
	if scoring {
		p.mu.Lock()
		if claimedBy, taken := p.claims[req.TokenID]; taken {
			p.mu.Unlock()
			return p.record(req, mode, token, models.TxDuplicate, 0,
				"Token already claimed by team "+claimedBy)
		}
		p.claims[req.TokenID] = req.TeamID
		p.mu.Unlock()
	}

	points := 0
	if scoring {
		points = p.catalog.ScoreFor(token.MemoryType, token.ValueRating)
	}

	result := p.record(req, mode, token, models.TxAccepted, points, acceptedMessage(mode))

	if err := p.sessions.ApplyTransaction(result.Transaction, token); err != nil {
		// The gate raced with a pause or end; withdraw the claim and
		// demote the recorded transaction.
		p.demote(&result, scoring, err.Error())
		if req.DeviceType != models.DevicePlayer {
			return result
		}
	}

	p.playVideo(req, token, &result)
	return result
}

// playVideo runs the playback side effect and, for player scanners,
// mirrors the scan to GM stations.
func (p *Pipeline) playVideo(req models.ScanRequest, token *models.Token, result *models.TransactionResult) {
	if token.HasVideo() {
		enq := p.video.Enqueue(token, req.DeviceType == models.DevicePlayer)
		result.VideoQueued = enq.Queued
		result.WaitTime = enq.WaitTime
	}

	if req.DeviceType == models.DevicePlayer {
		p.bus.Publish(events.TopicPlayerScan, events.PlayerScan{
			TokenID:     req.TokenID,
			DeviceID:    req.DeviceID,
			Timestamp:   result.Transaction.Timestamp,
			VideoQueued: result.VideoQueued,
		})
	}
}

// demote rewrites an already-recorded transaction as a gate error. The
// claim is withdrawn and the history entry is corrected so a scan that
// raced a pause leaves no accepted trace.
func (p *Pipeline) demote(result *models.TransactionResult, scoring bool, message string) {
	p.mu.Lock()
	if scoring {
		delete(p.claims, result.Transaction.TokenID)
	}
	for i := range p.history {
		if p.history[i].ID == result.Transaction.ID {
			p.history[i].Status = models.TxError
			p.history[i].Points = 0
			break
		}
	}
	p.mu.Unlock()
	p.persist()

	result.Status = models.TxError
	result.Points = 0
	result.Message = message
	result.Transaction.Status = models.TxError
	result.Transaction.Points = 0
}

// record appends a transaction to the history, persists, and publishes
// it for observers. Error transactions reach the history only via
// player-scan logging and are never broadcast.
func (p *Pipeline) record(req models.ScanRequest, mode models.Mode, token *models.Token, status models.TransactionStatus, points int, message string) models.TransactionResult {
	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	tx := models.Transaction{
		ID:         uuid.New().String(),
		TokenID:    req.TokenID,
		TeamID:     req.TeamID,
		DeviceID:   req.DeviceID,
		DeviceType: req.DeviceType,
		Mode:       mode,
		Status:     status,
		Timestamp:  ts,
		Points:     points,
	}
	if token != nil {
		tx.MemoryType = token.MemoryType
		tx.ValueRating = token.ValueRating
	}

	p.mu.Lock()
	p.history = append(p.history, tx)
	if len(p.history) > historyLimit {
		p.history = p.history[len(p.history)-historyLimit:]
	}
	p.mu.Unlock()
	p.persist()

	metrics.TransactionsTotal.WithLabelValues(string(status), string(mode)).Inc()
	if status != models.TxError {
		p.bus.Publish(events.TopicTransactionNew, events.TransactionNew{Transaction: tx})
	}
	logging.Info().
		Str("tokenId", tx.TokenID).
		Str("teamId", tx.TeamID).
		Str("status", string(status)).
		Int("points", points).
		Msg("transaction recorded")

	return models.TransactionResult{
		Status:      status,
		Transaction: &tx,
		Points:      points,
		Message:     message,
	}
}

func acceptedMessage(mode models.Mode) string {
	if mode.Scores() {
		return "Token accepted"
	}
	return "Token recorded"
}

// Recent returns the newest n transactions, newest first.
func (p *Pipeline) Recent(n int) []models.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 || n > len(p.history) {
		n = len(p.history)
	}
	out := make([]models.Transaction, 0, n)
	for i := len(p.history) - 1; i >= len(p.history)-n; i-- {
		out = append(out, p.history[i])
	}
	return out
}

// Find returns the transaction with the given id, or nil.
func (p *Pipeline) Find(id string) *models.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.history {
		if p.history[i].ID == id {
			tx := p.history[i]
			return &tx
		}
	}
	return nil
}

// Delete removes a transaction from the history and reverts its scoring
// effects (admin correction for mis-scans). The token becomes claimable
// again.
func (p *Pipeline) Delete(id string) (*models.Transaction, error) {
	p.mu.Lock()
	idx := -1
	for i := range p.history {
		if p.history[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return nil, persistence.ErrNotFound
	}
	tx := p.history[idx]
	p.history = append(p.history[:idx], p.history[idx+1:]...)
	if tx.Status == models.TxAccepted && p.claims[tx.TokenID] == tx.TeamID {
		delete(p.claims, tx.TokenID)
	}
	p.mu.Unlock()
	p.persist()

	token := p.catalog.Lookup(tx.TokenID)
	if err := p.sessions.RevertTransaction(&tx, token); err != nil {
		logging.Error().Err(err).Str("id", id).Msg("revert deleted transaction")
	}
	logging.Warn().Str("id", id).Str("tokenId", tx.TokenID).Msg("transaction deleted")
	return &tx, nil
}

// ClaimedBy reports which team holds a token, if any.
func (p *Pipeline) ClaimedBy(tokenID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	team, ok := p.claims[tokenID]
	return team, ok
}

// Reset clears claims, history, and the idempotency cache. Runs on
// session creation and system:reset.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	p.claims = make(map[string]string)
	p.history = nil
	p.clientResults = make(map[string]models.TransactionResult)
	p.mu.Unlock()

	if err := p.store.Delete(persistence.KeyTransactions); err != nil && err != persistence.ErrNotFound {
		logging.Error().Err(err).Msg("delete persisted transactions")
	}
	logging.Info().Msg("transaction pipeline cleared")
}

func (p *Pipeline) persist() {
	p.mu.Lock()
	snap := txSnapshot{
		Claims:  make(map[string]string, len(p.claims)),
		History: append([]models.Transaction(nil), p.history...),
	}
	for k, v := range p.claims {
		snap.Claims[k] = v
	}
	p.mu.Unlock()

	if err := persistence.SaveJSON(p.store, persistence.KeyTransactions, snap); err != nil {
		logging.Error().Err(err).Msg("persist transactions")
	}
}

// SummaryForPlayer strips a result down to what player scanners see.
func SummaryForPlayer(req models.ScanRequest, result models.TransactionResult) models.ScanResponse {
	return models.ScanResponse{
		Status:      string(result.Status),
		Message:     result.Message,
		TokenID:     req.TokenID,
		VideoQueued: result.VideoQueued,
		WaitTime:    result.WaitTime,
	}
}
