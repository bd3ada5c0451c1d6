// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package broadcast is the fabric between domain events and the socket
// layer. It is the only place that knows wire event names and wire
// field shapes; services publish internal payloads and never touch a
// socket.
package broadcast

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
)

// Wire event names emitted to GM and admin stations.
const (
	WireSessionUpdate    = "session:update"
	WireScoreUpdated     = "score:updated"
	WireGroupCompleted   = "group:completed"
	WireTransactionNew   = "transaction:new"
	WireVideoStatus      = "video:status"
	WireOfflineProcessed = "offline:queue:processed"
	WireDeviceConnected  = "device:connected"
	WireDeviceGone       = "device:disconnected"
	WirePlayerScan       = "player:scan"
	WireError            = "error"
)

// groupCompletedWire is the wire shape of a group completion. The
// service says {groupId, bonus}; the wire says {group, bonusPoints}.
type groupCompletedWire struct {
	TeamID      string `json:"teamId"`
	Group       string `json:"group"`
	BonusPoints int    `json:"bonusPoints"`
	MemberCount int    `json:"memberCount"`
}

// Broadcaster is the fan-out endpoint. The gateway hub satisfies it.
type Broadcaster interface {
	Broadcast(event string, data interface{})
}

// Fabric subscribes to every domain topic and forwards translated
// envelopes.
type Fabric struct {
	bus *events.Bus
	out Broadcaster
}

// New wires the fabric.
func New(bus *events.Bus, out Broadcaster) *Fabric {
	return &Fabric{bus: bus, out: out}
}

// Serve consumes all domain topics until ctx is canceled. Suitable as a
// supervised service.
func (f *Fabric) Serve(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, topic := range events.AllTopics {
		ch, err := f.bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(topic string, ch <-chan *message.Message) {
			defer wg.Done()
			for msg := range ch {
				f.forward(topic, msg)
				msg.Ack()
			}
		}(topic, ch)
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// forward translates one domain event to its wire envelope.
func (f *Fabric) forward(topic string, msg *message.Message) {
	switch topic {
	case events.TopicSessionUpdated:
		var ev events.SessionUpdated
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireSessionUpdate, ev.Session)
		}

	case events.TopicScoreUpdated:
		var ev events.ScoreUpdated
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireScoreUpdated, ev.Score)
		}

	case events.TopicGroupCompleted:
		var ev events.GroupCompleted
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireGroupCompleted, groupCompletedWire{
				TeamID:      ev.TeamID,
				Group:       ev.GroupID,
				BonusPoints: ev.Bonus,
				MemberCount: ev.MemberCount,
			})
		}

	case events.TopicTransactionNew:
		var ev events.TransactionNew
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireTransactionNew, ev.Transaction)
		}

	case events.TopicVideoStatus:
		var ev events.VideoStatusChanged
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireVideoStatus, ev.Status)
		}

	case events.TopicOfflineProcessed:
		var ev events.OfflineProcessed
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireOfflineProcessed, ev.Summary)
		}

	case events.TopicDeviceConnected:
		var ev events.DeviceEvent
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireDeviceConnected, ev.Device)
		}

	case events.TopicDeviceGone:
		var ev events.DeviceEvent
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireDeviceGone, ev.Device)
		}

	case events.TopicPlayerScan:
		var ev events.PlayerScan
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WirePlayerScan, ev)
		}

	case events.TopicServiceError:
		var ev events.ServiceError
		if f.decode(topic, msg, &ev) {
			f.out.Broadcast(WireError, models.WireError{
				Code:    ev.Code,
				Message: ev.Message,
				Details: ev.Details,
			})
		}
	}
}

func (f *Fabric) decode(topic string, msg *message.Message, v interface{}) bool {
	if err := events.Decode(msg, v); err != nil {
		logging.Error().Err(err).Str("topic", topic).Msg("drop undecodable domain event")
		return false
	}
	return true
}
