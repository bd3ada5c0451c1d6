// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package video is the playback queue and FSM. All playback state is
// owned by a single goroutine; every mutation arrives as a command on
// one channel, so there is no lock and no interleaving. Player
// connectivity edges arrive on the same select.
package video

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/metrics"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/vlc"
)

// commandTimeout bounds each player command issued from the FSM
// goroutine.
const commandTimeout = 2 * time.Second

type cmdKind int

const (
	cmdEnqueue cmdKind = iota
	cmdPlay
	cmdSkip
	cmdPause
	cmdResume
	cmdStop
	cmdClear
	cmdReorder
	cmdStatus
	cmdQueueView
	cmdReset
)

type command struct {
	kind      cmdKind
	item      *models.VideoQueueItem
	exclusive bool
	order     []string

	enqReply    chan models.EnqueueResult
	statusReply chan models.VideoStatus
	queueReply  chan []models.VideoQueueItem
	done        chan struct{}
}

// Controller drives the playback FSM.
type Controller struct {
	player vlc.Player
	bus    *events.Bus
	cmds   chan command

	// Owned exclusively by the run goroutine.
	state   models.PlaybackState
	current *models.VideoQueueItem
	queue   []*models.VideoQueueItem
	lastErr string
}

// New builds the controller. Serve must be running for commands to take
// effect.
func New(player vlc.Player, bus *events.Bus) *Controller {
	return &Controller{
		player: player,
		bus:    bus,
		cmds:   make(chan command, 32),
		state:  models.PlaybackIdle,
	}
}

// Enqueue requests playback of the token's video. When exclusive is set
// and the player is not idle, the request fails with a wait estimate
// instead of queueing.
func (c *Controller) Enqueue(token *models.Token, exclusive bool) models.EnqueueResult {
	if token == nil || !token.HasVideo() {
		return models.EnqueueResult{Queued: false}
	}
	return c.submit(&models.VideoQueueItem{
		ID:          uuid.New().String(),
		TokenID:     token.ID,
		Filename:    token.MediaAssets.Video,
		DurationSec: token.DurationSec,
		EnqueueTime: time.Now().UTC(),
		Status:      models.VideoQueued,
	}, exclusive)
}

// EnqueueFile queues an arbitrary file by name (video:queue:add).
func (c *Controller) EnqueueFile(filename string) models.EnqueueResult {
	if filename == "" {
		return models.EnqueueResult{Queued: false}
	}
	return c.submit(&models.VideoQueueItem{
		ID:          uuid.New().String(),
		Filename:    filename,
		EnqueueTime: time.Now().UTC(),
		Status:      models.VideoQueued,
	}, false)
}

func (c *Controller) submit(item *models.VideoQueueItem, exclusive bool) models.EnqueueResult {
	reply := make(chan models.EnqueueResult, 1)
	c.cmds <- command{kind: cmdEnqueue, item: item, exclusive: exclusive, enqReply: reply}
	return <-reply
}

// Play resumes paused playback, or starts draining the queue when idle.
func (c *Controller) Play() { c.fire(cmdPlay) }

// Skip abandons the current video and starts the next queued one.
func (c *Controller) Skip() { c.fire(cmdSkip) }

// Pause pauses the current video.
func (c *Controller) Pause() { c.fire(cmdPause) }

// Resume resumes a paused video.
func (c *Controller) Resume() { c.fire(cmdResume) }

// Stop stops playback, drops the current item, and returns to idle.
func (c *Controller) Stop() { c.fire(cmdStop) }

// Clear empties the pending queue without touching the current video.
func (c *Controller) Clear() { c.fire(cmdClear) }

// Reorder rearranges the pending queue to match the given item ids.
// Ids not in the queue are ignored; queued items missing from the order
// keep their relative position at the tail.
func (c *Controller) Reorder(order []string) {
	done := make(chan struct{})
	c.cmds <- command{kind: cmdReorder, order: order, done: done}
	<-done
}

// Status returns the externally visible playback status.
func (c *Controller) Status() models.VideoStatus {
	reply := make(chan models.VideoStatus, 1)
	c.cmds <- command{kind: cmdStatus, statusReply: reply}
	return <-reply
}

// Reset stops playback and clears all queue state (system:reset).
func (c *Controller) Reset() { c.fire(cmdReset) }

func (c *Controller) fire(kind cmdKind) {
	done := make(chan struct{})
	c.cmds <- command{kind: kind, done: done}
	<-done
}

// Serve runs the FSM until ctx is canceled. Suitable as a supervised
// service.
func (c *Controller) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-c.cmds:
			c.handle(ctx, cmd)

		case ev, ok := <-c.player.Events():
			if !ok {
				return nil
			}
			c.handlePlayerEvent(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdEnqueue:
		cmd.enqReply <- c.enqueue(ctx, cmd.item, cmd.exclusive)
		return
	case cmdStatus:
		cmd.statusReply <- c.status()
		return
	case cmdQueueView:
		cmd.queueReply <- c.queueView()
		return
	case cmdPlay:
		c.play(ctx)
	case cmdSkip:
		c.skip(ctx)
	case cmdPause:
		c.pause(ctx)
	case cmdResume:
		c.resume(ctx)
	case cmdStop:
		c.stop(ctx)
	case cmdClear:
		if len(c.queue) > 0 {
			c.queue = nil
			c.broadcast()
		}
	case cmdReorder:
		c.reorder(cmd.order)
	case cmdReset:
		c.stopPlayer(ctx)
		c.queue = nil
		c.current = nil
		c.lastErr = ""
		c.transition(models.PlaybackIdle)
	}
	if cmd.done != nil {
		close(cmd.done)
	}
}

func (c *Controller) enqueue(ctx context.Context, item *models.VideoQueueItem, exclusive bool) models.EnqueueResult {
	if exclusive && c.state != models.PlaybackIdle {
		wait := c.waitEstimate()
		if wait < 1 {
			wait = 1
		}
		return models.EnqueueResult{
			Queued:   false,
			Reason:   models.CodeVideoTaken,
			WaitTime: wait,
		}
	}

	if c.current == nil && (c.state == models.PlaybackIdle || c.state == models.PlaybackCompleted || c.state == models.PlaybackError) {
		c.start(ctx, item)
		return models.EnqueueResult{Queued: true}
	}

	c.queue = append(c.queue, item)
	c.broadcast()
	return models.EnqueueResult{Queued: true, WaitTime: c.waitEstimate()}
}

// start loads and plays one item. A play failure marks the item failed
// and advances; playback problems never block scoring.
func (c *Controller) start(ctx context.Context, item *models.VideoQueueItem) {
	c.current = item
	c.lastErr = ""
	c.transition(models.PlaybackLoading)

	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	err := c.player.Play(cmdCtx, item.Filename)
	cancel()
	if err != nil {
		logging.Error().Err(err).Str("tokenId", item.TokenID).Str("file", item.Filename).Msg("play failed")
		c.fail(ctx, err.Error())
		return
	}

	now := time.Now().UTC()
	item.StartTime = &now
	item.Status = models.VideoPlaying
	c.transition(models.PlaybackPlaying)
	logging.Info().Str("tokenId", item.TokenID).Str("file", item.Filename).Msg("video playing")
}

func (c *Controller) play(ctx context.Context) {
	switch c.state {
	case models.PlaybackPaused:
		c.resume(ctx)
	case models.PlaybackIdle:
		if len(c.queue) > 0 {
			c.advance(ctx)
		}
	}
}

func (c *Controller) skip(ctx context.Context) {
	if c.current == nil {
		return
	}
	c.stopPlayer(ctx)
	c.current.Status = models.VideoCompleted
	metrics.VideoPlaybacksTotal.WithLabelValues("skipped").Inc()
	logging.Info().Str("tokenId", c.current.TokenID).Msg("video skipped")
	c.advance(ctx)
}

func (c *Controller) pause(ctx context.Context) {
	if c.state != models.PlaybackPlaying {
		return
	}
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	err := c.player.Pause(cmdCtx)
	cancel()
	if err != nil {
		logging.Warn().Err(err).Msg("pause failed")
		return
	}
	c.transition(models.PlaybackPaused)
}

func (c *Controller) resume(ctx context.Context) {
	if c.state != models.PlaybackPaused {
		return
	}
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	err := c.player.Resume(cmdCtx)
	cancel()
	if err != nil {
		logging.Warn().Err(err).Msg("resume failed")
		return
	}
	c.transition(models.PlaybackPlaying)
}

func (c *Controller) stop(ctx context.Context) {
	if c.current == nil && c.state == models.PlaybackIdle {
		return
	}
	c.stopPlayer(ctx)
	if c.current != nil {
		c.current.Status = models.VideoCompleted
		c.current = nil
	}
	c.idle(ctx)
}

func (c *Controller) reorder(order []string) {
	if len(order) == 0 || len(c.queue) < 2 {
		return
	}
	byID := make(map[string]*models.VideoQueueItem, len(c.queue))
	for _, item := range c.queue {
		byID[item.ID] = item
	}
	next := make([]*models.VideoQueueItem, 0, len(c.queue))
	for _, id := range order {
		if item, ok := byID[id]; ok {
			next = append(next, item)
			delete(byID, id)
		}
	}
	for _, item := range c.queue {
		if _, left := byID[item.ID]; left {
			next = append(next, item)
		}
	}
	c.queue = next
	c.broadcast()
}

func (c *Controller) handlePlayerEvent(ctx context.Context, ev vlc.Event) {
	switch ev.Type {
	case vlc.EventCompleted:
		if c.current == nil {
			return
		}
		c.current.Status = models.VideoCompleted
		metrics.VideoPlaybacksTotal.WithLabelValues("completed").Inc()
		c.transition(models.PlaybackCompleted)
		logging.Info().Str("tokenId", c.current.TokenID).Msg("video completed")
		c.advance(ctx)

	case vlc.EventDisconnected:
		if c.current != nil {
			c.current.Status = models.VideoFailed
			c.current.Error = "player disconnected"
		}
		if c.state == models.PlaybackPlaying || c.state == models.PlaybackPaused || c.state == models.PlaybackLoading {
			c.lastErr = "player disconnected"
			c.transition(models.PlaybackError)
		}

	case vlc.EventConnected:
		// Recover: drop any item that died with the connection and keep
		// draining the queue.
		if c.state == models.PlaybackError {
			c.current = nil
			c.advance(ctx)
		}

	case vlc.EventError:
		c.lastErr = ev.Message
		c.transition(models.PlaybackError)
	}
}

// fail marks the current item failed and advances.
func (c *Controller) fail(ctx context.Context, msg string) {
	if c.current != nil {
		c.current.Status = models.VideoFailed
		c.current.Error = msg
	}
	c.lastErr = msg
	metrics.VideoPlaybacksTotal.WithLabelValues("error").Inc()
	c.transition(models.PlaybackError)
	c.bus.Publish(events.TopicServiceError, events.ServiceError{
		Service: "video",
		Code:    models.CodeInternalError,
		Message: "video playback failed",
		Details: msg,
	})
	c.advance(ctx)
}

// advance starts the next queued item or returns to the idle loop.
func (c *Controller) advance(ctx context.Context) {
	c.current = nil
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.start(ctx, next)
		return
	}
	c.idle(ctx)
}

func (c *Controller) idle(ctx context.Context) {
	c.lastErr = ""
	c.transition(models.PlaybackIdle)
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := c.player.ReturnToIdleLoop(cmdCtx); err != nil && err != vlc.ErrUnavailable {
		logging.Warn().Err(err).Msg("return to idle loop failed")
	}
}

func (c *Controller) stopPlayer(ctx context.Context) {
	cmdCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	if err := c.player.Stop(cmdCtx); err != nil && err != vlc.ErrUnavailable {
		logging.Warn().Err(err).Msg("stop command failed")
	}
}

func (c *Controller) transition(to models.PlaybackState) {
	if c.state == to {
		// Queue-length changes re-broadcast the same state.
		c.broadcast()
		return
	}
	logging.Debug().Str("from", string(c.state)).Str("to", string(to)).Msg("playback transition")
	c.state = to
	c.broadcast()
}

func (c *Controller) broadcast() {
	metrics.VideoQueueLength.Set(float64(len(c.queue)))
	c.bus.Publish(events.TopicVideoStatus, events.VideoStatusChanged{Status: c.status()})
}

func (c *Controller) status() models.VideoStatus {
	st := models.VideoStatus{
		Status:      c.state,
		QueueLength: len(c.queue),
		Error:       c.lastErr,
	}
	if c.current != nil {
		st.TokenID = c.current.TokenID
		st.DurationSec = c.current.DurationSec
		st.PositionSec = c.position(c.current)
	}
	return st
}

// position estimates playback position from wall time; exact enough for
// wait hints without an extra player round trip.
func (c *Controller) position(item *models.VideoQueueItem) int {
	if item.StartTime == nil {
		return 0
	}
	pos := int(time.Since(*item.StartTime).Seconds())
	if item.DurationSec > 0 && pos > item.DurationSec {
		pos = item.DurationSec
	}
	if pos < 0 {
		pos = 0
	}
	return pos
}

// waitEstimate sums the remaining seconds of the current video and the
// full durations of everything queued behind it.
func (c *Controller) waitEstimate() int {
	total := 0
	if c.current != nil {
		remaining := c.current.DurationSec - c.position(c.current)
		if remaining > 0 {
			total += remaining
		}
	}
	for _, item := range c.queue {
		total += item.DurationSec
	}
	return total
}

// QueueItems returns a copy of the pending queue with the current item
// first, for the GM queue view.
func (c *Controller) QueueItems() []models.VideoQueueItem {
	reply := make(chan []models.VideoQueueItem, 1)
	c.cmds <- command{kind: cmdQueueView, queueReply: reply}
	return <-reply
}

func (c *Controller) queueView() []models.VideoQueueItem {
	out := make([]models.VideoQueueItem, 0, len(c.queue)+1)
	if c.current != nil {
		out = append(out, *c.current)
	}
	for _, item := range c.queue {
		out = append(out, *item)
	}
	return out
}
