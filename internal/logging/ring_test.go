// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package logging

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

func writeLine(t *testing.T, r *RingBuffer, level, msg string) {
	t.Helper()
	line := fmt.Sprintf(`{"level":%q,"time":"2026-08-24T20:00:00Z","message":%q}`, level, msg)
	if _, err := r.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func messages(lines []LogLine) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Message)
	}
	return out
}

func TestTailOrderAndBound(t *testing.T) {
	r := NewRingBuffer(10)
	for i := 0; i < 5; i++ {
		writeLine(t, r, "info", fmt.Sprintf("m%d", i))
	}

	lines := r.Tail(0, zerolog.TraceLevel)
	if len(lines) != 5 {
		t.Fatalf("len = %d, want 5", len(lines))
	}
	if lines[0].Message != "m0" || lines[4].Message != "m4" {
		t.Errorf("order = %v", messages(lines))
	}

	lines = r.Tail(2, zerolog.TraceLevel)
	if len(lines) != 2 || lines[0].Message != "m3" || lines[1].Message != "m4" {
		t.Errorf("bounded tail = %v", messages(lines))
	}
}

func TestRingWrapsAtCapacity(t *testing.T) {
	r := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		writeLine(t, r, "info", fmt.Sprintf("m%d", i))
	}

	lines := r.Tail(0, zerolog.TraceLevel)
	if len(lines) != 3 {
		t.Fatalf("len = %d, want 3", len(lines))
	}
	if lines[0].Message != "m2" || lines[2].Message != "m4" {
		t.Errorf("after wrap = %v", messages(lines))
	}
}

func TestTailLevelFilter(t *testing.T) {
	r := NewRingBuffer(10)
	writeLine(t, r, "debug", "noisy")
	writeLine(t, r, "info", "routine")
	writeLine(t, r, "error", "broken")

	lines := r.Tail(0, zerolog.WarnLevel)
	if len(lines) != 1 || lines[0].Message != "broken" {
		t.Errorf("filtered = %v", messages(lines))
	}

	lines = r.Tail(0, zerolog.InfoLevel)
	if len(lines) != 2 {
		t.Errorf("info filter = %v", messages(lines))
	}
}

func TestTailKeepsUnparseableLines(t *testing.T) {
	r := NewRingBuffer(10)
	if _, err := r.Write([]byte("not json at all\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := r.Tail(0, zerolog.ErrorLevel)
	if len(lines) != 1 {
		t.Fatalf("len = %d, want 1", len(lines))
	}
	if lines[0].Level != "" || lines[0].Raw != "not json at all\n" {
		t.Errorf("line = %+v", lines[0])
	}
}

func TestRingCapturesZerologOutput(t *testing.T) {
	r := NewRingBuffer(10)
	logger := zerolog.New(r).With().Timestamp().Logger()
	logger.Info().Str("teamId", "001").Msg("token accepted")

	lines := r.Tail(0, zerolog.InfoLevel)
	if len(lines) != 1 {
		t.Fatalf("len = %d, want 1", len(lines))
	}
	if lines[0].Level != "info" || lines[0].Message != "token accepted" {
		t.Errorf("line = %+v", lines[0])
	}
	if lines[0].Time == "" {
		t.Error("timestamp not captured")
	}
}

func TestNonPositiveCapacityFallsBack(t *testing.T) {
	r := NewRingBuffer(0)
	if len(r.lines) != DefaultRingCapacity {
		t.Errorf("capacity = %d, want %d", len(r.lines), DefaultRingCapacity)
	}
}
