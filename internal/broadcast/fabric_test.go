// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/models"
)

type captured struct {
	event string
	data  interface{}
}

type captureBroadcaster struct {
	ch chan captured
}

func (c *captureBroadcaster) Broadcast(event string, data interface{}) {
	c.ch <- captured{event: event, data: data}
}

func startFabric(t *testing.T) (*events.Bus, *captureBroadcaster) {
	t.Helper()
	bus := events.NewBus()
	out := &captureBroadcaster{ch: make(chan captured, 16)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		New(bus, out).Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give the subscribers a moment to attach before publishing.
	time.Sleep(20 * time.Millisecond)
	return bus, out
}

func next(t *testing.T, out *captureBroadcaster) captured {
	t.Helper()
	select {
	case got := <-out.ch:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast arrived")
		return captured{}
	}
}

func asJSON(t *testing.T, v interface{}) map[string]interface{} {
	t.Helper()
	blob, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(blob, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestForwardSessionUpdate(t *testing.T) {
	bus, out := startFabric(t)

	bus.Publish(events.TopicSessionUpdated, events.SessionUpdated{
		Session: models.Session{ID: "s1", Name: "Friday Night", Status: models.SessionActive},
	})

	got := next(t, out)
	if got.event != WireSessionUpdate {
		t.Fatalf("event = %s, want %s", got.event, WireSessionUpdate)
	}
	m := asJSON(t, got.data)
	if m["name"] != "Friday Night" {
		t.Errorf("payload = %v", m)
	}
}

func TestForwardScoreUpdated(t *testing.T) {
	bus, out := startFabric(t)

	score := models.NewTeamScore("001")
	score.BaseScore = 5000
	score.Recompute()
	bus.Publish(events.TopicScoreUpdated, events.ScoreUpdated{Score: *score})

	got := next(t, out)
	if got.event != WireScoreUpdated {
		t.Fatalf("event = %s, want %s", got.event, WireScoreUpdated)
	}
	m := asJSON(t, got.data)
	if m["teamId"] != "001" || m["currentScore"] != float64(5000) {
		t.Errorf("payload = %v", m)
	}
}

func TestForwardGroupCompletedWireShape(t *testing.T) {
	bus, out := startFabric(t)

	bus.Publish(events.TopicGroupCompleted, events.GroupCompleted{
		TeamID:      "001",
		GroupID:     "server_farm",
		Bonus:       10000,
		MemberCount: 2,
	})

	got := next(t, out)
	if got.event != WireGroupCompleted {
		t.Fatalf("event = %s, want %s", got.event, WireGroupCompleted)
	}
	// The wire renames groupId to group and bonus to bonusPoints.
	m := asJSON(t, got.data)
	if m["group"] != "server_farm" || m["bonusPoints"] != float64(10000) {
		t.Errorf("payload = %v", m)
	}
	if _, leaked := m["groupId"]; leaked {
		t.Error("internal field name leaked to the wire")
	}
	if _, leaked := m["bonus"]; leaked {
		t.Error("internal field name leaked to the wire")
	}
}

func TestForwardServiceError(t *testing.T) {
	bus, out := startFabric(t)

	bus.Publish(events.TopicServiceError, events.ServiceError{
		Service: "video",
		Code:    models.CodeInternalError,
		Message: "video playback failed",
	})

	got := next(t, out)
	if got.event != WireError {
		t.Fatalf("event = %s, want %s", got.event, WireError)
	}
	m := asJSON(t, got.data)
	if m["code"] != models.CodeInternalError {
		t.Errorf("payload = %v", m)
	}
}

func TestForwardVideoStatus(t *testing.T) {
	bus, out := startFabric(t)

	bus.Publish(events.TopicVideoStatus, events.VideoStatusChanged{
		Status: models.VideoStatus{Status: models.PlaybackPlaying, TokenID: "kaa001", QueueLength: 2},
	})

	got := next(t, out)
	if got.event != WireVideoStatus {
		t.Fatalf("event = %s, want %s", got.event, WireVideoStatus)
	}
	m := asJSON(t, got.data)
	if m["tokenId"] != "kaa001" || m["queueLength"] != float64(2) {
		t.Errorf("payload = %v", m)
	}
}
