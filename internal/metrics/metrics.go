// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package metrics defines the Prometheus instruments exposed on
// /metrics. Instruments register themselves via promauto at package
// init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API request instrumentation.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_api_requests_total",
			Help: "Total HTTP API requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_api_active_requests",
			Help: "In-flight HTTP API requests",
		},
	)

	// Scan pipeline.
	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_transactions_total",
			Help: "Processed scan transactions by status and mode",
		},
		[]string{"status", "mode"},
	)

	// Gateway.
	ConnectedSockets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_gateway_connected_sockets",
			Help: "Currently connected GM and admin sockets",
		},
	)

	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_gateway_broadcasts_total",
			Help: "Envelopes broadcast to the GM room by wire event",
		},
		[]string{"event"},
	)

	// Video FSM.
	VideoPlaybacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_video_playbacks_total",
			Help: "Video playback outcomes",
		},
		[]string{"outcome"}, // completed | skipped | error
	)

	VideoQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_video_queue_length",
			Help: "Videos waiting behind the current playback",
		},
	)

	// Media player connectivity.
	PlayerConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_player_connected",
			Help: "Media player reachability (1 connected, 0 not)",
		},
	)

	// Offline queue.
	OfflineQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_offline_queue_size",
			Help: "Pending offline scans",
		},
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
	APIRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
