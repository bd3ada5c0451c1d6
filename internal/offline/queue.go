// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package offline buffers scans submitted while the orchestrator was
// unreachable and replays them through the pipeline once asked. Entries
// carry a clientId so a retry that raced a successful submit is folded
// into the original result instead of double-scoring.
package offline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/metrics"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/persistence"
	"github.com/nightshade-games/orchestrator/internal/pipeline"
	"github.com/nightshade-games/orchestrator/internal/session"
)

// drainRate paces replay so a large backlog does not flood the score
// and broadcast fabric in one burst.
var drainRate = rate.Limit(20)

// Queue is the persisted offline scan queue.
type Queue struct {
	mu       sync.Mutex
	items    []models.OfflineQueueItem
	store    persistence.Store
	pipe     *pipeline.Pipeline
	bus      *events.Bus
	limiter  *rate.Limiter
	draining bool
}

// New builds the queue and restores persisted entries. Scans buffered
// while no session existed replay as soon as one is created.
func New(store persistence.Store, pipe *pipeline.Pipeline, sessions *session.Service, bus *events.Bus) *Queue {
	q := &Queue{
		store:   store,
		pipe:    pipe,
		bus:     bus,
		limiter: rate.NewLimiter(drainRate, 5),
	}
	found, err := persistence.LoadJSON(store, persistence.KeyOfflineQueue, &q.items)
	if err != nil {
		logging.Error().Err(err).Msg("restore offline queue failed, starting empty")
	} else if found && len(q.items) > 0 {
		logging.Info().Int("size", len(q.items)).Msg("offline queue restored")
	}

	sessions.OnSessionCreate(func() {
		if q.Size() > 0 {
			go q.Drain(context.Background())
		}
	})
	return q
}

// Enqueue appends one deferred scan. Missing clientIds get one
// assigned so replay stays idempotent.
func (q *Queue) Enqueue(req models.ScanRequest, source string) models.OfflineQueueItem {
	if req.ClientID == "" {
		req.ClientID = uuid.New().String()
	}
	item := models.OfflineQueueItem{
		ClientID:  req.ClientID,
		Request:   req,
		Timestamp: time.Now().UTC(),
		Source:    source,
	}

	q.mu.Lock()
	q.items = append(q.items, item)
	size := len(q.items)
	q.mu.Unlock()
	q.persist()

	logging.Info().Str("clientId", item.ClientID).Str("tokenId", req.TokenID).Int("size", size).Msg("scan queued offline")
	return item
}

// Size returns the number of pending entries.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain replays all pending entries in FIFO order and publishes a
// summary. Concurrent drains collapse into one; the second caller gets
// an empty summary.
func (q *Queue) Drain(ctx context.Context) models.OfflineProcessedSummary {
	q.mu.Lock()
	if q.draining || len(q.items) == 0 {
		size := len(q.items)
		q.mu.Unlock()
		return models.OfflineProcessedSummary{QueueSize: size}
	}
	q.draining = true
	batch := q.items
	q.items = nil
	q.mu.Unlock()

	results := make([]models.OfflineResult, 0, len(batch))
	for _, item := range batch {
		if err := q.limiter.Wait(ctx); err != nil {
			// Shutdown mid-drain: push the remainder back for next start.
			q.requeue(batch[len(results):])
			break
		}
		results = append(results, q.replay(item))
	}

	q.mu.Lock()
	q.draining = false
	size := len(q.items)
	q.mu.Unlock()
	q.persist()

	summary := models.OfflineProcessedSummary{QueueSize: size, Results: results}
	q.bus.Publish(events.TopicOfflineProcessed, events.OfflineProcessed{Summary: summary})
	logging.Info().Int("processed", len(results)).Int("remaining", size).Msg("offline queue drained")
	return summary
}

func (q *Queue) replay(item models.OfflineQueueItem) models.OfflineResult {
	result := q.pipe.Process(item.Request)
	out := models.OfflineResult{
		Status:  result.Status,
		TokenID: item.Request.TokenID,
	}
	if result.Transaction != nil {
		out.TransactionID = result.Transaction.ID
	}
	if result.Status == models.TxRejected || result.Status == models.TxError {
		out.Error = result.Message
	}
	return out
}

func (q *Queue) requeue(rest []models.OfflineQueueItem) {
	if len(rest) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(append([]models.OfflineQueueItem(nil), rest...), q.items...)
	q.mu.Unlock()
}

// Reset drops all pending entries (system:reset).
func (q *Queue) Reset() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
	if err := q.store.Delete(persistence.KeyOfflineQueue); err != nil && err != persistence.ErrNotFound {
		logging.Error().Err(err).Msg("delete persisted offline queue")
	}
}

func (q *Queue) persist() {
	q.mu.Lock()
	snapshot := append([]models.OfflineQueueItem(nil), q.items...)
	q.mu.Unlock()
	metrics.OfflineQueueSize.Set(float64(len(snapshot)))
	if err := persistence.SaveJSON(q.store, persistence.KeyOfflineQueue, snapshot); err != nil {
		logging.Error().Err(err).Msg("persist offline queue")
	}
}
