// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nightshade-games/orchestrator/internal/models"
)

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message arrived")
		return nil
	}
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, TopicScoreUpdated)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	score := models.NewTeamScore("001")
	score.BaseScore = 5000
	bus.Publish(TopicScoreUpdated, ScoreUpdated{Score: *score})

	msg := receive(t, ch)
	defer msg.Ack()

	var ev ScoreUpdated
	if err := Decode(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Score.TeamID != "001" || ev.Score.BaseScore != 5000 {
		t.Errorf("score = %+v", ev.Score)
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx, TopicVideoStatus)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	bus.Publish(TopicSessionUpdated, SessionUpdated{})

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message on other topic: %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch1, err := bus.Subscribe(ctx, TopicTransactionNew)
	if err != nil {
		t.Fatalf("subscribe 1: %v", err)
	}
	ch2, err := bus.Subscribe(ctx, TopicTransactionNew)
	if err != nil {
		t.Fatalf("subscribe 2: %v", err)
	}

	bus.Publish(TopicTransactionNew, TransactionNew{
		Transaction: models.Transaction{ID: "tx-1"},
	})

	for i, ch := range []<-chan *message.Message{ch1, ch2} {
		msg := receive(t, ch)
		var ev TransactionNew
		if err := Decode(msg, &ev); err != nil {
			t.Fatalf("decode %d: %v", i, err)
		}
		if ev.Transaction.ID != "tx-1" {
			t.Errorf("subscriber %d got %+v", i, ev.Transaction)
		}
		msg.Ack()
	}
}

func TestAllTopicsComplete(t *testing.T) {
	// Every declared topic constant must be in the fabric subscription
	// list; a missing one silently drops its broadcasts.
	want := map[string]bool{
		TopicSessionUpdated:   false,
		TopicScoreUpdated:     false,
		TopicGroupCompleted:   false,
		TopicTransactionNew:   false,
		TopicVideoStatus:      false,
		TopicOfflineProcessed: false,
		TopicDeviceConnected:  false,
		TopicDeviceGone:       false,
		TopicPlayerScan:       false,
		TopicServiceError:     false,
	}
	for _, topic := range AllTopics {
		if _, ok := want[topic]; !ok {
			t.Errorf("unknown topic %q in AllTopics", topic)
		}
		want[topic] = true
	}
	for topic, seen := range want {
		if !seen {
			t.Errorf("topic %q missing from AllTopics", topic)
		}
	}
}
