// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package persistence

import (
	"fmt"

	"github.com/nightshade-games/orchestrator/internal/config"
	"github.com/nightshade-games/orchestrator/internal/logging"
)

// Open selects and opens the configured storage backend.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "file":
		store, err := NewFileStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("backend", "file").Str("dir", cfg.Dir).Msg("persistence ready")
		return store, nil
	case "badger":
		store, err := NewBadgerStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("backend", "badger").Str("dir", cfg.Dir).Msg("persistence ready")
		return store, nil
	case "memory":
		logging.Warn().Msg("persistence backend is memory; state will not survive restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
