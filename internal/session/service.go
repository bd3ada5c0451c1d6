// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

// Package session owns the session lifecycle and all team scores. It is
// the single scoring authority: the transaction pipeline classifies
// scans, but only this service mutates TeamScore.
//
// The service emits domain events on the bus; it never touches the
// socket layer. State is persisted through the persistence port after
// every mutation, with writes performed outside the state lock.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/logging"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/persistence"
	"github.com/nightshade-games/orchestrator/internal/tokens"
)

// Sentinel errors. Handlers map these to wire codes; the messages of
// ErrNoSession and ErrSessionPaused are part of the transaction-result
// contract.
var (
	ErrValidation    = errors.New("validation error")
	ErrNoSession     = errors.New("Session not started")
	ErrSessionPaused = errors.New("Session is paused")
)

// Service is the session and score service.
type Service struct {
	mu      sync.Mutex
	store   persistence.Store
	bus     *events.Bus
	catalog *tokens.Catalog

	current *models.Session
	scores  map[string]*models.TeamScore
	// acceptedTokens tracks, per team, the token ids with accepted
	// scoring transactions. It feeds group-completion detection.
	acceptedTokens map[string]map[string]bool
	// uniqueTokens tracks session-wide distinct token ids scanned.
	uniqueTokens map[string]bool

	// onCreate hooks run after every successful CreateSession, outside
	// the state lock. Claims and transaction history are scoped to one
	// session; the pipeline registers its reset here.
	onCreate []func()
}

// OnSessionCreate registers fn to run after each new session is
// created. Must be called during wiring, before the service is shared
// across goroutines.
func (s *Service) OnSessionCreate(fn func()) {
	s.onCreate = append(s.onCreate, fn)
}

// New builds the service and restores any persisted non-terminal
// session. Restore failures are logged and start a clean slate; a
// corrupt blob must not keep the orchestrator down mid-event.
func New(store persistence.Store, bus *events.Bus, catalog *tokens.Catalog) *Service {
	s := &Service{
		store:          store,
		bus:            bus,
		catalog:        catalog,
		scores:         make(map[string]*models.TeamScore),
		acceptedTokens: make(map[string]map[string]bool),
		uniqueTokens:   make(map[string]bool),
	}
	s.restore()
	return s
}

func (s *Service) restore() {
	var sess models.Session
	found, err := persistence.LoadJSON(s.store, persistence.KeySession, &sess)
	if err != nil {
		logging.Error().Err(err).Msg("restore session failed, starting clean")
		return
	}
	if !found || sess.Terminal() {
		return
	}

	var scores []models.TeamScore
	if _, err := persistence.LoadJSON(s.store, persistence.KeyScores, &scores); err != nil {
		logging.Error().Err(err).Msg("restore scores failed, starting clean")
		return
	}

	s.current = &sess
	for i := range scores {
		sc := scores[i]
		s.scores[sc.TeamID] = &sc
	}
	logging.Info().
		Str("id", sess.ID).
		Str("status", string(sess.Status)).
		Int("teams", len(scores)).
		Msg("session restored")
}

// CreateSession starts a new session, implicitly ending any current
// non-terminal one, and initializes a zero TeamScore per team.
func (s *Service) CreateSession(name string, teams []string) (*models.Session, error) {
	if len(name) < 1 || len(name) > 100 {
		return nil, fmt.Errorf("%w: name must be 1-100 characters", ErrValidation)
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("%w: at least one team is required", ErrValidation)
	}
	for _, team := range teams {
		if team == "" {
			return nil, fmt.Errorf("%w: team ids must be non-empty", ErrValidation)
		}
	}

	s.mu.Lock()
	if s.current != nil && !s.current.Terminal() {
		now := time.Now().UTC()
		s.current.Status = models.SessionEnded
		s.current.EndTime = &now
	}

	sess := &models.Session{
		ID:        uuid.New().String(),
		Name:      name,
		StartTime: time.Now().UTC(),
		Status:    models.SessionActive,
		Teams:     append([]string(nil), teams...),
	}
	s.current = sess
	s.scores = make(map[string]*models.TeamScore, len(teams))
	s.acceptedTokens = make(map[string]map[string]bool)
	s.uniqueTokens = make(map[string]bool)
	for _, team := range teams {
		s.scores[team] = models.NewTeamScore(team)
	}
	sessCopy, scoresCopy := s.snapshotLocked()
	s.mu.Unlock()

	s.save(sessCopy, scoresCopy)
	s.bus.Publish(events.TopicSessionUpdated, events.SessionUpdated{Session: sessCopy})
	for _, fn := range s.onCreate {
		fn()
	}
	logging.Info().Str("id", sessCopy.ID).Str("name", name).Int("teams", len(teams)).Msg("session created")
	return &sessCopy, nil
}

// UpdateArgs names the mutable session fields. Zero values mean "leave
// unchanged".
type UpdateArgs struct {
	Status models.SessionStatus
	Name   string
}

// UpdateSession applies a lifecycle transition and/or rename. Illegal
// transitions fail with ErrValidation.
func (s *Service) UpdateSession(args UpdateArgs) (*models.Session, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}

	if args.Status != "" {
		if !args.Status.Valid() {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, args.Status)
		}
		if !s.current.Status.CanTransitionTo(args.Status) {
			from := s.current.Status
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: cannot transition from %s to %s", ErrValidation, from, args.Status)
		}
		s.current.Status = args.Status
		if args.Status == models.SessionEnded {
			now := time.Now().UTC()
			s.current.EndTime = &now
		}
	}
	if args.Name != "" {
		if len(args.Name) > 100 {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: name must be 1-100 characters", ErrValidation)
		}
		s.current.Name = args.Name
	}

	sessCopy, scoresCopy := s.snapshotLocked()
	s.mu.Unlock()

	s.save(sessCopy, scoresCopy)
	s.bus.Publish(events.TopicSessionUpdated, events.SessionUpdated{Session: sessCopy})
	return &sessCopy, nil
}

// EndSession ends the current session. Idempotent after terminal.
func (s *Service) EndSession() (*models.Session, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	if s.current.Terminal() {
		sessCopy := *s.current
		s.mu.Unlock()
		return &sessCopy, nil
	}
	s.mu.Unlock()
	return s.UpdateSession(UpdateArgs{Status: models.SessionEnded})
}

// AdjustScore appends an admin adjustment and recomputes the team's
// score. Delta semantics, never assignment.
func (s *Service) AdjustScore(teamID string, delta int, reason, gmDeviceID string) (*models.TeamScore, error) {
	if teamID == "" {
		return nil, fmt.Errorf("%w: teamId is required", ErrValidation)
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	score := s.teamScoreLocked(teamID)
	score.AdminAdjustments = append(score.AdminAdjustments, models.AdminAdjustment{
		Delta:      delta,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
		GMDeviceID: gmDeviceID,
	})
	score.Recompute()
	score.LastUpdate = time.Now().UTC()
	scoreCopy := *score
	sessCopy, scoresCopy := s.snapshotLocked()
	s.mu.Unlock()

	s.save(sessCopy, scoresCopy)
	s.bus.Publish(events.TopicScoreUpdated, events.ScoreUpdated{Score: scoreCopy})
	logging.Info().Str("teamId", teamID).Int("delta", delta).Str("reason", reason).Msg("score adjusted")
	return &scoreCopy, nil
}

// Gate reports whether scoring transactions may proceed right now. The
// returned error carries the exact contract message.
func (s *Service) Gate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.current == nil || s.current.Terminal():
		return ErrNoSession
	case s.current.Status == models.SessionPaused:
		return ErrSessionPaused
	}
	return nil
}

// ApplyTransaction records an accepted transaction against the session.
// Blackmarket transactions update base score, tokens scanned and group
// completion; detective transactions only touch session counters.
func (s *Service) ApplyTransaction(tx *models.Transaction, token *models.Token) error {
	s.mu.Lock()
	if s.current == nil || s.current.Terminal() {
		s.mu.Unlock()
		return ErrNoSession
	}
	if s.current.Status == models.SessionPaused {
		s.mu.Unlock()
		return ErrSessionPaused
	}

	s.current.Metadata.TotalScans++
	if !s.uniqueTokens[tx.TokenID] {
		s.uniqueTokens[tx.TokenID] = true
		s.current.Metadata.UniqueTokensScanned = len(s.uniqueTokens)
	}

	// Player scans never score: they touch session counters only, even
	// when the scanner sent a teamId.
	if !tx.Mode.Scores() || tx.DeviceType == models.DevicePlayer {
		sessCopy, scoresCopy := s.snapshotLocked()
		s.mu.Unlock()
		s.save(sessCopy, scoresCopy)
		return nil
	}

	score := s.teamScoreLocked(tx.TeamID)
	score.BaseScore += tx.Points
	score.TokensScanned++
	if s.acceptedTokens[tx.TeamID] == nil {
		s.acceptedTokens[tx.TeamID] = make(map[string]bool)
	}
	s.acceptedTokens[tx.TeamID][tx.TokenID] = true

	var completed *events.GroupCompleted
	if token != nil && token.Group != "" && !score.HasCompletedGroup(token.Group) {
		if members := s.catalog.GroupMembers(token.Group); len(members) > 0 && s.groupDoneLocked(tx.TeamID, members) {
			bonus := s.catalog.GroupBonus(token.Group)
			score.BonusPoints += bonus
			score.CompletedGroups = append(score.CompletedGroups, token.Group)
			completed = &events.GroupCompleted{
				TeamID:      tx.TeamID,
				GroupID:     token.Group,
				Bonus:       bonus,
				MemberCount: len(members),
			}
		}
	}

	score.Recompute()
	score.LastUpdate = time.Now().UTC()
	scoreCopy := *score
	sessCopy, scoresCopy := s.snapshotLocked()
	s.mu.Unlock()

	s.save(sessCopy, scoresCopy)
	s.bus.Publish(events.TopicScoreUpdated, events.ScoreUpdated{Score: scoreCopy})
	if completed != nil {
		s.bus.Publish(events.TopicGroupCompleted, *completed)
		logging.Info().Str("teamId", completed.TeamID).Str("group", completed.GroupID).
			Int("bonus", completed.Bonus).Msg("group completed")
	}
	return nil
}

// RevertTransaction undoes the scoring effect of a previously accepted
// transaction (admin transaction:delete). Group bonuses granted on the
// strength of the deleted scan are withdrawn.
func (s *Service) RevertTransaction(tx *models.Transaction, token *models.Token) error {
	if !tx.Mode.Scores() || tx.Status != models.TxAccepted {
		return nil
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return ErrNoSession
	}

	score := s.teamScoreLocked(tx.TeamID)
	score.BaseScore -= tx.Points
	if score.TokensScanned > 0 {
		score.TokensScanned--
	}
	if set := s.acceptedTokens[tx.TeamID]; set != nil {
		delete(set, tx.TokenID)
	}

	if token != nil && token.Group != "" && score.HasCompletedGroup(token.Group) {
		members := s.catalog.GroupMembers(token.Group)
		if !s.groupDoneLocked(tx.TeamID, members) {
			score.BonusPoints -= s.catalog.GroupBonus(token.Group)
			kept := score.CompletedGroups[:0]
			for _, g := range score.CompletedGroups {
				if g != token.Group {
					kept = append(kept, g)
				}
			}
			score.CompletedGroups = kept
		}
	}

	score.Recompute()
	score.LastUpdate = time.Now().UTC()
	scoreCopy := *score
	sessCopy, scoresCopy := s.snapshotLocked()
	s.mu.Unlock()

	s.save(sessCopy, scoresCopy)
	s.bus.Publish(events.TopicScoreUpdated, events.ScoreUpdated{Score: scoreCopy})
	return nil
}

// CurrentSession returns a copy of the current session, or nil.
func (s *Service) CurrentSession() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	sessCopy := *s.current
	return &sessCopy
}

// TeamScores returns all team scores ordered by teamId.
func (s *Service) TeamScores() []models.TeamScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, scores := s.snapshotLocked()
	return scores
}

// SetDeviceCounts updates the connected-device counters carried in
// session metadata. Device events are broadcast separately by their
// owner; this is bookkeeping only.
func (s *Service) SetDeviceCounts(gmStations, playerDevices int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current.Metadata.GMStations = gmStations
	s.current.Metadata.PlayerDevices = playerDevices
}

// Reset clears session and scores (system:reset).
func (s *Service) Reset() {
	s.mu.Lock()
	s.current = nil
	s.scores = make(map[string]*models.TeamScore)
	s.acceptedTokens = make(map[string]map[string]bool)
	s.uniqueTokens = make(map[string]bool)
	s.mu.Unlock()

	if err := s.store.Delete(persistence.KeySession); err != nil {
		logging.Error().Err(err).Msg("delete persisted session")
	}
	if err := s.store.Delete(persistence.KeyScores); err != nil {
		logging.Error().Err(err).Msg("delete persisted scores")
	}
	logging.Warn().Msg("session and scores reset")
}

// teamScoreLocked returns the team's score record, creating a zeroed one
// for teams that joined after session creation (GMs type team ids by
// hand; a new id is a new team, not an error).
func (s *Service) teamScoreLocked(teamID string) *models.TeamScore {
	score, ok := s.scores[teamID]
	if !ok {
		score = models.NewTeamScore(teamID)
		s.scores[teamID] = score
		if s.current != nil {
			s.current.Teams = append(s.current.Teams, teamID)
		}
	}
	return score
}

func (s *Service) groupDoneLocked(teamID string, members []string) bool {
	set := s.acceptedTokens[teamID]
	if set == nil {
		return false
	}
	for _, id := range members {
		if !set[id] {
			return false
		}
	}
	return true
}

// snapshotLocked copies the session and sorted scores for persistence
// and events. Must be called with mu held.
func (s *Service) snapshotLocked() (models.Session, []models.TeamScore) {
	var sessCopy models.Session
	if s.current != nil {
		sessCopy = *s.current
	}
	scores := make([]models.TeamScore, 0, len(s.scores))
	for _, score := range s.scores {
		scores = append(scores, *score)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].TeamID < scores[j].TeamID })
	return sessCopy, scores
}

// save persists session and scores outside the state lock.
func (s *Service) save(sess models.Session, scores []models.TeamScore) {
	if sess.ID != "" {
		if err := persistence.SaveJSON(s.store, persistence.KeySession, sess); err != nil {
			logging.Error().Err(err).Msg("persist session")
			s.bus.Publish(events.TopicServiceError, events.ServiceError{
				Service: "session",
				Code:    models.CodeInternalError,
				Message: "failed to persist session state",
			})
		}
	}
	if err := persistence.SaveJSON(s.store, persistence.KeyScores, scores); err != nil {
		logging.Error().Err(err).Msg("persist scores")
	}
}
