// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package persistence is the typed key/value port the core saves state
// through. Writes are durable before returning.
//
// Exactly five keys are used by the core, each with a single owning
// service: session:current and scores:current (session service),
// offlineQueue (offline queue), tokens (token catalog fallback), and
// transactions:log (pipeline claims and history, so first-claim
// semantics survive a restart mid-game).
package persistence

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Core blob keys. Each key has exactly one writer.
const (
	KeySession      = "session:current"
	KeyScores       = "scores:current"
	KeyOfflineQueue = "offlineQueue"
	KeyTokens       = "tokens"
	KeyTransactions = "transactions:log"
)

// SchemaVersion is the current blob envelope version.
const SchemaVersion = 1

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("key not found")

// Store is the persistence port. Implementations must make Put durable
// (fsync or equivalent) before returning.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, blob []byte) error
	Delete(key string) error
	Keys(prefix string) ([]string, error)
	Close() error
}

// Envelope makes every stored blob self-describing.
type Envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	SavedAt       time.Time       `json:"savedAt"`
	Payload       json.RawMessage `json:"payload"`
}

// SaveJSON wraps v in a versioned envelope and writes it under key.
func SaveJSON(s Store, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", key, err)
	}
	blob, err := json.Marshal(Envelope{
		SchemaVersion: SchemaVersion,
		SavedAt:       time.Now().UTC(),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", key, err)
	}
	return s.Put(key, blob)
}

// LoadJSON reads key and unmarshals its payload into v. Returns false
// with a nil error when the key does not exist.
func LoadJSON(s Store, key string, v interface{}) (bool, error) {
	blob, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return false, fmt.Errorf("unmarshal %s envelope: %w", key, err)
	}
	if env.SchemaVersion > SchemaVersion {
		return false, fmt.Errorf("blob %s has schema version %d, newer than supported %d", key, env.SchemaVersion, SchemaVersion)
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return false, fmt.Errorf("unmarshal %s payload: %w", key, err)
	}
	return true, nil
}
