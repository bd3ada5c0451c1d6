// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package video

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/vlc"
)

// fakePlayer records commands and lets tests inject connectivity and
// completion edges.
type fakePlayer struct {
	mu        sync.Mutex
	played    []string
	stops     int
	pauses    int
	resumes   int
	idleLoops int
	playErr   error

	events chan vlc.Event
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan vlc.Event, 16)}
}

func (f *fakePlayer) Connected() bool { return true }

func (f *fakePlayer) Play(ctx context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.played = append(f.played, filename)
	return nil
}

func (f *fakePlayer) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakePlayer) Resume(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return nil
}

func (f *fakePlayer) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakePlayer) Status(ctx context.Context) (*vlc.Status, error) {
	return &vlc.Status{}, nil
}

func (f *fakePlayer) ReturnToIdleLoop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idleLoops++
	return nil
}

func (f *fakePlayer) Events() <-chan vlc.Event { return f.events }

func (f *fakePlayer) playedFiles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

func startController(t *testing.T, player vlc.Player) *Controller {
	t.Helper()
	c := New(player, events.NewBus())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return c
}

func videoToken(id string, durationSec int) *models.Token {
	return &models.Token{
		ID:          id,
		MediaAssets: models.MediaAssets{Video: id + ".mp4"},
		DurationSec: durationSec,
	}
}

// waitForState polls Status until the FSM reaches want; player events are
// asynchronous.
func waitForState(t *testing.T, c *Controller, want models.PlaybackState) models.VideoStatus {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := c.Status()
		if st.Status == want {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s (now %s)", want, c.Status().Status)
	return models.VideoStatus{}
}

func TestEnqueueStartsPlayback(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	res := c.Enqueue(videoToken("kaa001", 30), false)
	if !res.Queued {
		t.Fatalf("enqueue refused: %+v", res)
	}

	st := c.Status()
	if st.Status != models.PlaybackPlaying {
		t.Fatalf("state = %s, want playing", st.Status)
	}
	if st.TokenID != "kaa001" || st.QueueLength != 0 {
		t.Errorf("status = %+v", st)
	}
	if files := player.playedFiles(); len(files) != 1 || files[0] != "kaa001.mp4" {
		t.Errorf("played = %v", files)
	}
}

func TestEnqueueQueuesBehindCurrent(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	res := c.Enqueue(videoToken("kaa002", 45), false)
	if !res.Queued {
		t.Fatalf("second enqueue refused: %+v", res)
	}
	if res.WaitTime < 1 {
		t.Errorf("waitTime = %d, want an estimate", res.WaitTime)
	}
	if st := c.Status(); st.QueueLength != 1 {
		t.Errorf("queueLength = %d, want 1", st.QueueLength)
	}
}

func TestExclusiveEnqueueRefusedWhenBusy(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	res := c.Enqueue(videoToken("kaa002", 45), true)
	if res.Queued {
		t.Fatal("exclusive enqueue queued while busy")
	}
	if res.Reason != models.CodeVideoTaken {
		t.Errorf("reason = %q, want %q", res.Reason, models.CodeVideoTaken)
	}
	if res.WaitTime < 1 {
		t.Errorf("waitTime = %d, want >= 1", res.WaitTime)
	}
	if st := c.Status(); st.QueueLength != 0 {
		t.Error("refused enqueue still landed in the queue")
	}
}

func TestExclusiveEnqueueWhenIdle(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	if res := c.Enqueue(videoToken("kaa001", 30), true); !res.Queued {
		t.Fatalf("exclusive enqueue on idle player refused: %+v", res)
	}
}

func TestCompletionAdvancesQueue(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Enqueue(videoToken("kaa002", 45), false)

	player.events <- vlc.Event{Type: vlc.EventCompleted}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := c.Status()
		if st.Status == models.PlaybackPlaying && st.TokenID == "kaa002" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	st := c.Status()
	if st.TokenID != "kaa002" || st.QueueLength != 0 {
		t.Fatalf("status after completion = %+v", st)
	}
}

func TestCompletionOfLastVideoReturnsToIdle(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	player.events <- vlc.Event{Type: vlc.EventCompleted}

	waitForState(t, c, models.PlaybackIdle)
	player.mu.Lock()
	idleLoops := player.idleLoops
	player.mu.Unlock()
	if idleLoops != 1 {
		t.Errorf("idleLoops = %d, want 1", idleLoops)
	}
}

func TestDisconnectFailsCurrentAndReconnectRecovers(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Enqueue(videoToken("kaa002", 45), false)

	player.events <- vlc.Event{Type: vlc.EventDisconnected, Message: "connection refused"}
	st := waitForState(t, c, models.PlaybackError)
	if st.Error != "player disconnected" {
		t.Errorf("error = %q, want player disconnected", st.Error)
	}

	player.events <- vlc.Event{Type: vlc.EventConnected}
	st = waitForState(t, c, models.PlaybackPlaying)
	if st.TokenID != "kaa002" {
		t.Errorf("recovered to %q, want kaa002", st.TokenID)
	}
}

func TestSkipStartsNext(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Enqueue(videoToken("kaa002", 45), false)
	c.Skip()

	st := c.Status()
	if st.Status != models.PlaybackPlaying || st.TokenID != "kaa002" {
		t.Fatalf("status after skip = %+v", st)
	}
	player.mu.Lock()
	stops := player.stops
	player.mu.Unlock()
	if stops != 1 {
		t.Errorf("stops = %d, want 1", stops)
	}
}

func TestPauseResume(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Pause()
	if st := c.Status(); st.Status != models.PlaybackPaused {
		t.Fatalf("state after pause = %s", st.Status)
	}
	c.Resume()
	if st := c.Status(); st.Status != models.PlaybackPlaying {
		t.Fatalf("state after resume = %s", st.Status)
	}

	// Play is an alias for resume when paused.
	c.Pause()
	c.Play()
	if st := c.Status(); st.Status != models.PlaybackPlaying {
		t.Fatalf("state after play = %s", st.Status)
	}
}

func TestPauseIgnoredWhenIdle(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Pause()
	if st := c.Status(); st.Status != models.PlaybackIdle {
		t.Fatalf("state = %s, want idle", st.Status)
	}
}

func TestStopReturnsToIdle(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Stop()

	st := c.Status()
	if st.Status != models.PlaybackIdle || st.TokenID != "" {
		t.Fatalf("status after stop = %+v", st)
	}
	player.mu.Lock()
	defer player.mu.Unlock()
	if player.stops != 1 || player.idleLoops != 1 {
		t.Errorf("stops = %d idleLoops = %d", player.stops, player.idleLoops)
	}
}

func TestPlayFailureAdvances(t *testing.T) {
	player := newFakePlayer()
	player.playErr = errors.New("file not found")
	c := startController(t, player)

	res := c.Enqueue(videoToken("kaa001", 30), false)
	if !res.Queued {
		t.Fatalf("enqueue refused: %+v", res)
	}
	// The failed item is dropped and the FSM lands back on idle.
	waitForState(t, c, models.PlaybackIdle)
}

func TestReorder(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Enqueue(videoToken("kaa002", 30), false)
	c.Enqueue(videoToken("kaa003", 30), false)

	items := c.QueueItems()
	if len(items) != 3 {
		t.Fatalf("queue view = %d items, want 3", len(items))
	}
	// items[0] is the current video; reorder the pending two.
	c.Reorder([]string{items[2].ID, items[1].ID})

	items = c.QueueItems()
	if items[1].TokenID != "kaa003" || items[2].TokenID != "kaa002" {
		t.Errorf("order after reorder = %s, %s", items[1].TokenID, items[2].TokenID)
	}
}

func TestClear(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Enqueue(videoToken("kaa002", 30), false)
	c.Clear()

	st := c.Status()
	if st.QueueLength != 0 {
		t.Errorf("queueLength = %d, want 0", st.QueueLength)
	}
	if st.Status != models.PlaybackPlaying {
		t.Error("clear must not stop the current video")
	}
}

func TestEnqueueWithoutVideoAsset(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	if res := c.Enqueue(&models.Token{ID: "tac001"}, false); res.Queued {
		t.Error("token without video was queued")
	}
	if res := c.Enqueue(nil, false); res.Queued {
		t.Error("nil token was queued")
	}
}

func TestEnqueueFile(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	if res := c.EnqueueFile("briefing.mp4"); !res.Queued {
		t.Fatalf("EnqueueFile refused: %+v", res)
	}
	if files := player.playedFiles(); len(files) != 1 || files[0] != "briefing.mp4" {
		t.Errorf("played = %v", files)
	}
	if res := c.EnqueueFile(""); res.Queued {
		t.Error("empty filename was queued")
	}
}

func TestReset(t *testing.T) {
	player := newFakePlayer()
	c := startController(t, player)

	c.Enqueue(videoToken("kaa001", 30), false)
	c.Enqueue(videoToken("kaa002", 30), false)
	c.Reset()

	st := c.Status()
	if st.Status != models.PlaybackIdle || st.QueueLength != 0 || st.TokenID != "" {
		t.Errorf("status after reset = %+v", st)
	}
}
