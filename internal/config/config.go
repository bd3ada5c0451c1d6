// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package config loads orchestrator configuration via Koanf v2 with
// layered sources: built-in defaults, an optional YAML file, then
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	VLC      VLCConfig      `koanf:"vlc"`
	Tokens   TokensConfig   `koanf:"tokens"`
	Storage  StorageConfig  `koanf:"storage"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
	// CORSOrigins is the allowed origin list. "*" allows all (floor
	// networks are isolated; the default is permissive by design of the
	// deployment, not of this package).
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// SecurityConfig holds auth settings.
type SecurityConfig struct {
	// AdminPassword gates POST /api/admin/auth. Required.
	AdminPassword string `koanf:"admin_password"`
	// JWTSecret signs bearer tokens (HS256). Min 32 chars.
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
}

// VLCConfig holds media player settings.
type VLCConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Password string `koanf:"password"`
	// IdleLoopFile is the ambient video the player returns to when the
	// queue empties.
	IdleLoopFile   string        `koanf:"idle_loop_file"`
	PollInterval   time.Duration `koanf:"poll_interval"`
	CommandTimeout time.Duration `koanf:"command_timeout"`
}

// TokensConfig holds token catalog settings.
type TokensConfig struct {
	// Path to the token definition document.
	Path string `koanf:"path"`
	// Watch enables hot-reload of the catalog when the file changes.
	Watch bool `koanf:"watch"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of: file, badger, memory.
	Backend string `koanf:"backend"`
	Dir     string `koanf:"dir"`
}

// LoggingConfig mirrors logging.Config for the loader.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before file and
// environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Security: SecurityConfig{
			AdminPassword:  "",
			JWTSecret:      "",
			SessionTimeout: 24 * time.Hour,
		},
		VLC: VLCConfig{
			Enabled:        true,
			Host:           "127.0.0.1",
			Port:           8080,
			Password:       "",
			IdleLoopFile:   "idle-loop.mp4",
			PollInterval:   500 * time.Millisecond,
			CommandTimeout: 2 * time.Second,
		},
		Tokens: TokensConfig{
			Path:  "data/tokens.json",
			Watch: false,
		},
		Storage: StorageConfig{
			Backend: "file",
			Dir:     "data/storage",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the loaded configuration and fails fast on unusable
// values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Security.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	switch c.Storage.Backend {
	case "file", "badger", "memory":
	default:
		return fmt.Errorf("storage.backend %q is not one of file, badger, memory", c.Storage.Backend)
	}
	if c.Storage.Backend != "memory" && c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir is required for backend %q", c.Storage.Backend)
	}
	if c.VLC.Enabled && (c.VLC.Port < 1 || c.VLC.Port > 65535) {
		return fmt.Errorf("vlc.port %d out of range", c.VLC.Port)
	}
	if c.VLC.PollInterval <= 0 {
		return fmt.Errorf("vlc.poll_interval must be positive")
	}
	if c.VLC.CommandTimeout <= 0 {
		return fmt.Errorf("vlc.command_timeout must be positive")
	}
	return nil
}
