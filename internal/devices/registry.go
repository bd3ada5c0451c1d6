// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package devices tracks connected scanners. The gateway registers
// sockets as they identify; HTTP scanners are touched on every request
// and expire after a quiet period.
package devices

import (
	"sort"
	"sync"
	"time"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
)

// httpDeviceTTL is how long an HTTP-only scanner stays listed after its
// last request.
const httpDeviceTTL = 5 * time.Minute

// Registry is the connected-device registry.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*models.DeviceInfo
	// persistent marks socket-backed devices that only leave on explicit
	// Remove, never by TTL.
	persistent map[string]bool
	bus        *events.Bus
	onCounts   func(gmStations, playerDevices int)
}

// New builds the registry. onCounts, if set, is invoked after every
// membership change with the current GM and player counts.
func New(bus *events.Bus, onCounts func(gmStations, playerDevices int)) *Registry {
	return &Registry{
		devices:    make(map[string]*models.DeviceInfo),
		persistent: make(map[string]bool),
		bus:        bus,
		onCounts:   onCounts,
	}
}

// Add registers a socket-backed device and announces it.
func (r *Registry) Add(info models.DeviceInfo) {
	now := time.Now().UTC()
	if info.ConnectionTime.IsZero() {
		info.ConnectionTime = now
	}
	info.LastSeen = now

	r.mu.Lock()
	r.devices[info.DeviceID] = &info
	r.persistent[info.DeviceID] = true
	r.mu.Unlock()

	r.notifyCounts()
	r.bus.Publish(events.TopicDeviceConnected, events.DeviceEvent{Device: info})
	logging.Info().Str("deviceId", info.DeviceID).Str("type", string(info.Type)).Msg("device connected")
}

// Touch records activity from an HTTP scanner, listing it if new.
func (r *Registry) Touch(deviceID string, deviceType models.DeviceType, ip string) {
	if deviceID == "" {
		return
	}
	now := time.Now().UTC()

	r.mu.Lock()
	dev, known := r.devices[deviceID]
	if known {
		dev.LastSeen = now
		r.mu.Unlock()
		return
	}
	info := &models.DeviceInfo{
		DeviceID:       deviceID,
		Type:           deviceType,
		IP:             ip,
		ConnectionTime: now,
		LastSeen:       now,
	}
	r.devices[deviceID] = info
	r.mu.Unlock()

	r.notifyCounts()
	r.bus.Publish(events.TopicDeviceConnected, events.DeviceEvent{Device: *info})
}

// Remove unregisters a device and announces its departure.
func (r *Registry) Remove(deviceID string) {
	r.mu.Lock()
	dev, ok := r.devices[deviceID]
	if !ok {
		r.mu.Unlock()
		return
	}
	info := *dev
	delete(r.devices, deviceID)
	delete(r.persistent, deviceID)
	r.mu.Unlock()

	r.notifyCounts()
	r.bus.Publish(events.TopicDeviceGone, events.DeviceEvent{Device: info})
	logging.Info().Str("deviceId", deviceID).Msg("device disconnected")
}

// List returns all known devices ordered by deviceId, evicting stale
// HTTP scanners on the way.
func (r *Registry) List() []models.DeviceInfo {
	cutoff := time.Now().Add(-httpDeviceTTL)

	r.mu.Lock()
	out := make([]models.DeviceInfo, 0, len(r.devices))
	for id, dev := range r.devices {
		if !r.persistent[id] && dev.LastSeen.Before(cutoff) {
			delete(r.devices, id)
			continue
		}
		out = append(out, *dev)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Counts returns the number of connected GM stations and player
// devices.
func (r *Registry) Counts() (gmStations, playerDevices int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countsLocked()
}

func (r *Registry) countsLocked() (gmStations, playerDevices int) {
	for _, dev := range r.devices {
		switch dev.Type {
		case models.DeviceGM, models.DeviceAdmin:
			gmStations++
		case models.DevicePlayer, models.DeviceESP32:
			playerDevices++
		}
	}
	return gmStations, playerDevices
}

func (r *Registry) notifyCounts() {
	if r.onCounts == nil {
		return
	}
	r.mu.Lock()
	gm, players := r.countsLocked()
	r.mu.Unlock()
	r.onCounts(gm, players)
}
