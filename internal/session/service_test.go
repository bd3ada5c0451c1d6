// Nightshade Orchestrator - Live-Action Game Coordination Core
// Copyright 2026 Nightshade Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nightshade-games/orchestrator

package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nightshade-games/orchestrator/internal/events"
	"github.com/nightshade-games/orchestrator/internal/models"
	"github.com/nightshade-games/orchestrator/internal/persistence"
	"github.com/nightshade-games/orchestrator/internal/tokens"
)

const testTokenDoc = `{
  "tokens": {
    "kaa001": {"memoryType": "Personal", "valueRating": 1},
    "tac001": {"memoryType": "Technical", "valueRating": 3, "group": "server_farm"},
    "tac002": {"memoryType": "Technical", "valueRating": 3, "group": "server_farm"}
  },
  "scoring": {
    "ratingValues": {"1": 100, "3": 1000},
    "typeMultipliers": {"Technical": 5}
  }
}`

func testCatalog(t *testing.T) *tokens.Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokens.json")
	if err := os.WriteFile(path, []byte(testTokenDoc), 0o644); err != nil {
		t.Fatalf("write token fixture: %v", err)
	}
	c, err := tokens.New(path, nil)
	if err != nil {
		t.Fatalf("load token fixture: %v", err)
	}
	return c
}

func testService(t *testing.T) (*Service, persistence.Store) {
	t.Helper()
	store := persistence.NewMemoryStore()
	return New(store, events.NewBus(), testCatalog(t)), store
}

func acceptedTx(tokenID, teamID string, points int) *models.Transaction {
	return &models.Transaction{
		ID:        "tx-" + tokenID,
		TokenID:   tokenID,
		TeamID:    teamID,
		Mode:      models.ModeBlackmarket,
		Status:    models.TxAccepted,
		Points:    points,
		Timestamp: time.Now().UTC(),
	}
}

func TestCreateSessionValidation(t *testing.T) {
	svc, _ := testService(t)

	tests := []struct {
		name  string
		sName string
		teams []string
	}{
		{name: "empty name", sName: "", teams: []string{"001"}},
		{name: "long name", sName: string(make([]byte, 101)), teams: []string{"001"}},
		{name: "no teams", sName: "Friday Night", teams: nil},
		{name: "empty team id", sName: "Friday Night", teams: []string{"001", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateSession(tt.sName, tt.teams); !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateSessionInitializesScores(t *testing.T) {
	svc, _ := testService(t)

	sess, err := svc.CreateSession("Friday Night", []string{"002", "001"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Status != models.SessionActive {
		t.Errorf("status = %s, want active", sess.Status)
	}

	scores := svc.TeamScores()
	if len(scores) != 2 {
		t.Fatalf("got %d scores, want 2", len(scores))
	}
	// Sorted by team id regardless of creation order.
	if scores[0].TeamID != "001" || scores[1].TeamID != "002" {
		t.Errorf("score order = %s, %s", scores[0].TeamID, scores[1].TeamID)
	}
	for _, sc := range scores {
		if sc.CurrentScore != 0 {
			t.Errorf("team %s starts at %d, want 0", sc.TeamID, sc.CurrentScore)
		}
	}
}

func TestCreateSessionEndsPrevious(t *testing.T) {
	svc, _ := testService(t)

	first, err := svc.CreateSession("First", []string{"001"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := svc.CreateSession("Second", []string{"001"})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("second session reused the first id")
	}
	if cur := svc.CurrentSession(); cur == nil || cur.ID != second.ID {
		t.Error("current session should be the second one")
	}
}

func TestGate(t *testing.T) {
	svc, _ := testService(t)

	if err := svc.Gate(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("no session: err = %v, want ErrNoSession", err)
	}

	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := svc.Gate(); err != nil {
		t.Fatalf("active: err = %v, want nil", err)
	}

	if _, err := svc.UpdateSession(UpdateArgs{Status: models.SessionPaused}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := svc.Gate(); !errors.Is(err, ErrSessionPaused) {
		t.Fatalf("paused: err = %v, want ErrSessionPaused", err)
	}

	if _, err := svc.EndSession(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := svc.Gate(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("ended: err = %v, want ErrNoSession", err)
	}
}

func TestUpdateSessionRejectsIllegalTransition(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.EndSession(); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, err := svc.UpdateSession(UpdateArgs{Status: models.SessionActive}); !errors.Is(err, ErrValidation) {
		t.Fatalf("ended->active: err = %v, want ErrValidation", err)
	}
}

func TestEndSessionIdempotent(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	first, err := svc.EndSession()
	if err != nil {
		t.Fatalf("first end: %v", err)
	}
	second, err := svc.EndSession()
	if err != nil {
		t.Fatalf("second end: %v", err)
	}
	if second.Status != models.SessionEnded || second.ID != first.ID {
		t.Error("second end must return the same ended session")
	}
}

func TestApplyTransactionScoring(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tok := &models.Token{ID: "kaa001", MemoryType: "Personal", ValueRating: 1}
	if err := svc.ApplyTransaction(acceptedTx("kaa001", "001", 100), tok); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	scores := svc.TeamScores()
	if len(scores) != 1 {
		t.Fatalf("got %d scores", len(scores))
	}
	sc := scores[0]
	if sc.BaseScore != 100 || sc.CurrentScore != 100 || sc.TokensScanned != 1 {
		t.Errorf("score = base %d current %d scanned %d", sc.BaseScore, sc.CurrentScore, sc.TokensScanned)
	}

	sess := svc.CurrentSession()
	if sess.Metadata.TotalScans != 1 || sess.Metadata.UniqueTokensScanned != 1 {
		t.Errorf("metadata = %+v", sess.Metadata)
	}
}

func TestApplyTransactionDetectiveDoesNotScore(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tx := acceptedTx("kaa001", "", 0)
	tx.Mode = models.ModeDetective
	if err := svc.ApplyTransaction(tx, &models.Token{ID: "kaa001"}); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	if sc := svc.TeamScores()[0]; sc.CurrentScore != 0 || sc.TokensScanned != 0 {
		t.Errorf("detective scan changed score: %+v", sc)
	}
	if svc.CurrentSession().Metadata.TotalScans != 1 {
		t.Error("detective scan should still count in TotalScans")
	}
}

func TestGroupCompletionBonus(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tok1 := &models.Token{ID: "tac001", MemoryType: "Technical", ValueRating: 3, Group: "server_farm"}
	tok2 := &models.Token{ID: "tac002", MemoryType: "Technical", ValueRating: 3, Group: "server_farm"}

	if err := svc.ApplyTransaction(acceptedTx("tac001", "001", 5000), tok1); err != nil {
		t.Fatalf("first member: %v", err)
	}
	if sc := svc.TeamScores()[0]; sc.BonusPoints != 0 {
		t.Fatal("bonus granted before group complete")
	}

	if err := svc.ApplyTransaction(acceptedTx("tac002", "001", 5000), tok2); err != nil {
		t.Fatalf("second member: %v", err)
	}
	sc := svc.TeamScores()[0]
	// No configured bonus: defaults to the member score sum.
	if sc.BonusPoints != 10000 {
		t.Errorf("BonusPoints = %d, want 10000", sc.BonusPoints)
	}
	if sc.CurrentScore != 20000 {
		t.Errorf("CurrentScore = %d, want 20000", sc.CurrentScore)
	}
	if !sc.HasCompletedGroup("server_farm") {
		t.Error("group not marked complete")
	}

	// Re-applying a member must not grant the bonus twice.
	if err := svc.ApplyTransaction(acceptedTx("tac002", "001", 5000), tok2); err != nil {
		t.Fatalf("repeat member: %v", err)
	}
	if sc := svc.TeamScores()[0]; sc.BonusPoints != 10000 {
		t.Errorf("BonusPoints after repeat = %d, want 10000", sc.BonusPoints)
	}
}

func TestRevertTransactionWithdrawsBonus(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tok1 := &models.Token{ID: "tac001", MemoryType: "Technical", ValueRating: 3, Group: "server_farm"}
	tok2 := &models.Token{ID: "tac002", MemoryType: "Technical", ValueRating: 3, Group: "server_farm"}
	tx1 := acceptedTx("tac001", "001", 5000)
	tx2 := acceptedTx("tac002", "001", 5000)

	if err := svc.ApplyTransaction(tx1, tok1); err != nil {
		t.Fatalf("apply 1: %v", err)
	}
	if err := svc.ApplyTransaction(tx2, tok2); err != nil {
		t.Fatalf("apply 2: %v", err)
	}
	if err := svc.RevertTransaction(tx2, tok2); err != nil {
		t.Fatalf("revert: %v", err)
	}

	sc := svc.TeamScores()[0]
	if sc.BonusPoints != 0 {
		t.Errorf("BonusPoints after revert = %d, want 0", sc.BonusPoints)
	}
	if sc.CurrentScore != 5000 {
		t.Errorf("CurrentScore after revert = %d, want 5000", sc.CurrentScore)
	}
	if sc.HasCompletedGroup("server_farm") {
		t.Error("group still marked complete after revert")
	}
}

func TestAdjustScore(t *testing.T) {
	svc, _ := testService(t)

	if _, err := svc.AdjustScore("001", 500, "test", "gm-1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("no session: err = %v, want ErrNoSession", err)
	}

	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	sc, err := svc.AdjustScore("001", -250, "prop damage", "gm-1")
	if err != nil {
		t.Fatalf("AdjustScore: %v", err)
	}
	if sc.CurrentScore != -250 {
		t.Errorf("CurrentScore = %d, want -250", sc.CurrentScore)
	}
	if len(sc.AdminAdjustments) != 1 || sc.AdminAdjustments[0].Reason != "prop damage" {
		t.Errorf("adjustments = %+v", sc.AdminAdjustments)
	}
}

func TestAdjustScoreUnknownTeamCreatesIt(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.AdjustScore("007", 100, "walk-on team", "gm-1"); err != nil {
		t.Fatalf("AdjustScore: %v", err)
	}
	if len(svc.TeamScores()) != 2 {
		t.Fatal("new team id should create a score record")
	}
	sess := svc.CurrentSession()
	if len(sess.Teams) != 2 {
		t.Errorf("Teams = %v, want the new team appended", sess.Teams)
	}
}

func TestRestoreNonTerminalSession(t *testing.T) {
	store := persistence.NewMemoryStore()
	catalog := testCatalog(t)
	bus := events.NewBus()

	svc := New(store, bus, catalog)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := svc.ApplyTransaction(acceptedTx("kaa001", "001", 100), &models.Token{ID: "kaa001"}); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	restored := New(store, events.NewBus(), catalog)
	sess := restored.CurrentSession()
	if sess == nil || sess.Name != "Friday Night" {
		t.Fatalf("session not restored: %+v", sess)
	}
	if sc := restored.TeamScores(); len(sc) != 1 || sc[0].CurrentScore != 100 {
		t.Errorf("scores not restored: %+v", sc)
	}
}

func TestRestoreSkipsEndedSession(t *testing.T) {
	store := persistence.NewMemoryStore()
	catalog := testCatalog(t)

	svc := New(store, events.NewBus(), catalog)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := svc.EndSession(); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	restored := New(store, events.NewBus(), catalog)
	if restored.CurrentSession() != nil {
		t.Error("terminal session must not be restored")
	}
}

func TestReset(t *testing.T) {
	svc, store := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	svc.Reset()

	if svc.CurrentSession() != nil {
		t.Error("session survives reset")
	}
	if len(svc.TeamScores()) != 0 {
		t.Error("scores survive reset")
	}
	var sess models.Session
	if found, _ := persistence.LoadJSON(store, persistence.KeySession, &sess); found {
		t.Error("persisted session survives reset")
	}
}

func TestOnSessionCreateHookRuns(t *testing.T) {
	svc, _ := testService(t)

	calls := 0
	svc.OnSessionCreate(func() { calls++ })

	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if calls != 1 {
		t.Fatalf("hook ran %d times, want 1", calls)
	}

	if _, err := svc.CreateSession("Saturday Night", []string{"002"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if calls != 2 {
		t.Errorf("hook ran %d times after second create, want 2", calls)
	}
}

func TestApplyTransactionPlayerDeviceCountsOnly(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateSession("Friday Night", []string{"001"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	tx := acceptedTx("tac001", "001", 5000)
	tx.DeviceType = models.DevicePlayer
	if err := svc.ApplyTransaction(tx, nil); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	sc := svc.TeamScores()[0]
	if sc.CurrentScore != 0 || sc.TokensScanned != 0 {
		t.Errorf("player transaction mutated score: %+v", sc)
	}
	sess := svc.CurrentSession()
	if sess.Metadata.TotalScans != 1 || sess.Metadata.UniqueTokensScanned != 1 {
		t.Errorf("session counters = %+v, want scan counted", sess.Metadata)
	}
}
