// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package tokens owns the immutable token catalog: token metadata, the
// deterministic score table, and group membership. Reload is a full
// rebuild behind the lock and is never partial.
package tokens

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/persistence"
)

// Document is the on-disk token definition format.
type Document struct {
	Tokens  map[string]models.Token `json:"tokens"`
	Scoring ScoringTable            `json:"scoring"`
	// GroupBonuses maps group id to a fixed bonus. Groups not listed
	// default to the sum of their members' scores (completing a set
	// doubles its value).
	GroupBonuses map[string]int `json:"groupBonuses"`
}

// ScoringTable makes points a pure function of (memoryType, valueRating):
// points = ratingValues[rating] * typeMultipliers[memoryType]. Types
// without a multiplier count 1x.
//
// JSON object keys are strings, hence the string-keyed rating map.
type ScoringTable struct {
	RatingValues    map[string]int `json:"ratingValues"`
	TypeMultipliers map[string]int `json:"typeMultipliers"`
}

// Score computes the points for one accepted blackmarket scan.
func (t ScoringTable) Score(memoryType string, valueRating int) int {
	base := t.RatingValues[strconv.Itoa(valueRating)]
	mult, ok := t.TypeMultipliers[memoryType]
	if !ok {
		mult = 1
	}
	return base * mult
}

// Catalog is the loaded, immutable token catalog. All reads share an
// RWMutex; Reload swaps the entire dataset at once.
type Catalog struct {
	mu sync.RWMutex

	path  string
	store persistence.Store

	byID     map[string]models.Token
	groups   map[string][]string
	scoring  ScoringTable
	bonuses  map[string]int
	loadedAt time.Time
}

// New loads the catalog from path. If the file cannot be read or parsed,
// the last known-good copy from the persistence port is used instead; a
// successful file load refreshes that copy.
func New(path string, store persistence.Store) (*Catalog, error) {
	c := &Catalog{path: path, store: store}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload rebuilds the catalog. The swap is atomic: readers observe either
// the old or the new dataset, never a mix.
func (c *Catalog) Reload() error {
	doc, fromFallback, err := c.loadDocument()
	if err != nil {
		return err
	}

	byID := make(map[string]models.Token, len(doc.Tokens))
	groups := make(map[string][]string)
	for id, tok := range doc.Tokens {
		tok.ID = id
		byID[id] = tok
		if tok.Group != "" {
			groups[tok.Group] = append(groups[tok.Group], id)
		}
	}
	for _, members := range groups {
		sort.Strings(members)
	}

	c.mu.Lock()
	c.byID = byID
	c.groups = groups
	c.scoring = doc.Scoring
	c.bonuses = doc.GroupBonuses
	c.loadedAt = time.Now().UTC()
	c.mu.Unlock()

	logging.Info().
		Int("tokens", len(byID)).
		Int("groups", len(groups)).
		Bool("fallback", fromFallback).
		Msg("token catalog loaded")

	// Refresh the known-good copy only after a successful file load.
	if !fromFallback && c.store != nil {
		if err := persistence.SaveJSON(c.store, persistence.KeyTokens, doc); err != nil {
			logging.Warn().Err(err).Msg("persist token catalog fallback copy")
		}
	}
	return nil
}

func (c *Catalog) loadDocument() (*Document, bool, error) {
	doc, fileErr := readDocument(c.path)
	if fileErr == nil {
		return doc, false, nil
	}

	if c.store != nil {
		var fallback Document
		found, err := persistence.LoadJSON(c.store, persistence.KeyTokens, &fallback)
		if err == nil && found {
			logging.Warn().Err(fileErr).Str("path", c.path).
				Msg("token file unreadable, using persisted fallback")
			return &fallback, true, nil
		}
	}
	return nil, false, fmt.Errorf("load token catalog from %s: %w", c.path, fileErr)
}

func readDocument(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse token document: %w", err)
	}
	if len(doc.Tokens) == 0 {
		return nil, fmt.Errorf("token document has no tokens")
	}
	return &doc, nil
}

// Lookup returns the token for id, or nil. Unknown tokens are a
// first-class outcome; the pipeline turns them into rejected
// transactions.
func (c *Catalog) Lookup(id string) *models.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if tok, ok := c.byID[id]; ok {
		return &tok
	}
	return nil
}

// All returns every token, sorted by id.
func (c *Catalog) All() []models.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Token, 0, len(c.byID))
	for _, tok := range c.byID {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GroupMembers returns the sorted token ids forming the given group.
func (c *Catalog) GroupMembers(group string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	members := c.groups[group]
	out := make([]string, len(members))
	copy(out, members)
	return out
}

// ScoreFor is the pure score function for accepted blackmarket scans.
func (c *Catalog) ScoreFor(memoryType string, valueRating int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scoring.Score(memoryType, valueRating)
}

// GroupBonus returns the bonus awarded for completing group. Groups
// without a configured bonus default to the sum of their members'
// scores.
func (c *Catalog) GroupBonus(group string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if bonus, ok := c.bonuses[group]; ok {
		return bonus
	}
	total := 0
	for _, id := range c.groups[group] {
		tok := c.byID[id]
		total += c.scoring.Score(tok.MemoryType, tok.ValueRating)
	}
	return total
}

// Count returns the number of tokens.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// LastUpdate returns when the catalog was last (re)built.
func (c *Catalog) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}
