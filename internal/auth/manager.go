// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package auth issues and verifies the admin bearer tokens used by the
// HTTP admin surface and the GM gateway handshake. One password, one
// role: the floor is a trusted network and the token only separates
// admin controls from player traffic.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/nightshade-games/orchestrator/internal/config"
)

// bcryptCost balances hash strength against login latency on the small
// boxes the orchestrator runs on.
const bcryptCost = 12

// RoleAdmin is the only role carried in claims today.
const RoleAdmin = "admin"

// ErrInvalidToken is returned for expired, malformed, or tampered
// bearer tokens.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims are the JWT claims carried by issued tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Manager verifies the admin password and issues/validates HS256 tokens.
type Manager struct {
	passwordHash []byte
	secret       []byte
	timeout      time.Duration
}

// NewManager hashes the configured admin password and prepares the
// signing secret. The plaintext password is not retained.
func NewManager(cfg config.SecurityConfig) (*Manager, error) {
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("admin password is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}

	return &Manager{
		passwordHash: hash,
		secret:       []byte(cfg.JWTSecret),
		timeout:      cfg.SessionTimeout,
	}, nil
}

// VerifyPassword checks a login attempt. bcrypt's comparison is
// timing-safe.
func (m *Manager) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) == nil
}

// IssueToken creates a signed admin token and returns it with its
// lifetime in seconds.
func (m *Manager) IssueToken() (string, int, error) {
	now := time.Now()
	claims := &Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign token: %w", err)
	}
	return signed, int(m.timeout.Seconds()), nil
}

// VerifyBearer validates a token string and returns its claims.
func (m *Manager) VerifyBearer(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
