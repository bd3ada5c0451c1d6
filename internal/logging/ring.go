// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package logging

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// DefaultRingCapacity is the number of log lines retained for the admin
// logs endpoint.
const DefaultRingCapacity = 1000

// LogLine is one captured log record. Raw JSON is parsed lazily so the hot
// write path stays allocation-light.
type LogLine struct {
	Level   string `json:"level"`
	Time    string `json:"time"`
	Message string `json:"message"`
	Raw     string `json:"raw"`
}

// RingBuffer is a fixed-capacity, thread-safe sink for recent log lines.
// It implements io.Writer plus zerolog.LevelWriter so it can sit inside a
// zerolog.MultiLevelWriter next to the primary output.
type RingBuffer struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

// NewRingBuffer creates a ring buffer holding up to capacity lines.
// A non-positive capacity falls back to DefaultRingCapacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &RingBuffer{lines: make([]string, capacity)}
}

// Write stores one log line. zerolog calls Write once per event.
func (r *RingBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines[r.next] = string(p)
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter. Every level is captured; the
// logs endpoint filters on read.
func (r *RingBuffer) WriteLevel(_ zerolog.Level, p []byte) (int, error) {
	return r.Write(p)
}

// Tail returns up to n most recent lines, oldest first, keeping only lines
// at or above minLevel. Lines that fail to parse are returned with empty
// level and time fields rather than dropped.
func (r *RingBuffer) Tail(n int, minLevel zerolog.Level) []LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.lines)
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]LogLine, 0, n)
	// Walk the ring oldest to newest.
	start := 0
	if r.full {
		start = r.next
	}
	for i := 0; i < size; i++ {
		raw := r.lines[(start+i)%len(r.lines)]
		line := parseLine(raw)
		if lineLevel(line.Level) < minLevel {
			continue
		}
		out = append(out, line)
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func parseLine(raw string) LogLine {
	var parsed struct {
		Level   string `json:"level"`
		Time    string `json:"time"`
		Message string `json:"message"`
	}
	line := LogLine{Raw: raw}
	if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
		line.Level = parsed.Level
		line.Time = parsed.Time
		line.Message = parsed.Message
	}
	return line
}

func lineLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.NoLevel
	}
	return ParseLevel(level)
}
