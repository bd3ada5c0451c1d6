// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/nightshade-games/orchestrator/internal/config"
)

func testConfig() config.SecurityConfig {
	return config.SecurityConfig{
		AdminPassword:  "floor-password",
		JWTSecret:      strings.Repeat("s", 32),
		SessionTimeout: time.Hour,
	}
}

func TestNewManagerValidation(t *testing.T) {
	cfg := testConfig()
	cfg.AdminPassword = ""
	if _, err := NewManager(cfg); err == nil {
		t.Error("empty password accepted")
	}

	cfg = testConfig()
	cfg.JWTSecret = "short"
	if _, err := NewManager(cfg); err == nil {
		t.Error("short secret accepted")
	}
}

func TestVerifyPassword(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if !m.VerifyPassword("floor-password") {
		t.Error("correct password rejected")
	}
	if m.VerifyPassword("wrong") {
		t.Error("wrong password accepted")
	}
	if m.VerifyPassword("") {
		t.Error("empty password accepted")
	}
}

func TestIssueAndVerifyToken(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, expiresIn, err := m.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if expiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", expiresIn)
	}

	claims, err := m.VerifyBearer(token)
	if err != nil {
		t.Fatalf("VerifyBearer: %v", err)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("role = %q, want %q", claims.Role, RoleAdmin)
	}
}

func TestVerifyBearerRejectsGarbage(t *testing.T) {
	m, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if _, err := m.VerifyBearer(bad); err != ErrInvalidToken {
			t.Errorf("VerifyBearer(%q) err = %v, want ErrInvalidToken", bad, err)
		}
	}
}

func TestVerifyBearerRejectsForeignSignature(t *testing.T) {
	m1, err := NewManager(testConfig())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	cfg := testConfig()
	cfg.JWTSecret = strings.Repeat("x", 32)
	m2, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, _, err := m1.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := m2.VerifyBearer(token); err != ErrInvalidToken {
		t.Error("token signed with a different secret accepted")
	}
}

func TestVerifyBearerRejectsExpired(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = -time.Minute
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	token, _, err := m.IssueToken()
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := m.VerifyBearer(token); err != ErrInvalidToken {
		t.Error("expired token accepted")
	}
}
