// Package services implements the server-side application logic: the session
// registry, turn-log and snapshot writes, recovery state assembly, and the
// quota-gated upload broker.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/models"
	"github.com/ssergeev/studysync/internal/server/repositories/repomanager"
)

// TurnInput is one completed exchange as reported by the agent process.
type TurnInput struct {
	ChapterID     string
	TurnIndex     int
	UserMessage   string
	AgentResponse string
	Outcome       json.RawMessage
}

// SessionState is the full materialized state a recovering device pulls.
type SessionState struct {
	HasData   bool
	SessionID string
	Turns     []*models.TurnRecord
	Memory    json.RawMessage
	// AgentState rides along with the memory snapshot when the agent chose
	// to persist internal state.
	AgentState json.RawMessage
	ReportMD   string
}

// SessionService owns session identity, the turn log, and the snapshot
// stores.
type SessionService struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func NewSessionService(db *sql.DB, rm repomanager.RepositoryManager) *SessionService {
	return &SessionService{db: db, rm: rm}
}

// Register creates a fresh session bound to (user, chapter). Always succeeds
// for an authenticated caller.
func (s *SessionService) Register(ctx context.Context, userID, chapterID, courseID string) (*models.Session, error) {
	session := &models.Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		ChapterID:    chapterID,
		CourseID:     courseID,
		CreatedAt:    time.Now().UTC(),
		LastActiveAt: time.Now().UTC(),
	}
	if err := s.rm.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return session, nil
}

// Authorize guards every other operation. Unknown id yields ErrorNotFound
// (callers may silently fall back to fresh state); a foreign owner yields
// ErrorAccessDenied, which must always be surfaced.
func (s *SessionService) Authorize(ctx context.Context, sessionID, userID string) (*models.Session, error) {
	session, err := s.rm.Sessions(s.db).GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, common.ErrorAccessDenied
	}
	return session, nil
}

// Touch bumps last_active_at.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	return s.rm.Sessions(s.db).Touch(ctx, sessionID, time.Now().UTC())
}

// AppendTurn records a turn idempotently and marks the session active.
// A duplicate (session, turn_index) pair is accepted and leaves the stored
// row untouched.
func (s *SessionService) AppendTurn(ctx context.Context, userID, sessionID string, in TurnInput) error {
	if _, err := s.Authorize(ctx, sessionID, userID); err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.rm.Turns(tx).Append(ctx, &models.TurnRecord{
			UserID:        userID,
			SessionID:     sessionID,
			ChapterID:     in.ChapterID,
			TurnIndex:     in.TurnIndex,
			UserMessage:   in.UserMessage,
			AgentResponse: in.AgentResponse,
			Outcome:       in.Outcome,
		})
		if err != nil {
			return err
		}
		return s.rm.Sessions(tx).Touch(ctx, sessionID, time.Now().UTC())
	})
}

// UpsertMemory replaces the session's memory snapshot wholesale.
func (s *SessionService) UpsertMemory(ctx context.Context, userID, sessionID, chapterID string, memory, agentState json.RawMessage) error {
	if _, err := s.Authorize(ctx, sessionID, userID); err != nil {
		return err
	}
	return s.rm.Snapshots(s.db).UpsertMemory(ctx, &models.MemorySnapshot{
		SessionID:  sessionID,
		UserID:     userID,
		ChapterID:  chapterID,
		Memory:     memory,
		AgentState: agentState,
		UpdatedAt:  time.Now().UTC(),
	})
}

// UpsertReport replaces the session's report snapshot wholesale.
func (s *SessionService) UpsertReport(ctx context.Context, userID, sessionID, chapterID, reportMD string) error {
	if _, err := s.Authorize(ctx, sessionID, userID); err != nil {
		return err
	}
	return s.rm.Snapshots(s.db).UpsertReport(ctx, &models.ReportSnapshot{
		SessionID: sessionID,
		UserID:    userID,
		ChapterID: chapterID,
		ReportMD:  reportMD,
		UpdatedAt: time.Now().UTC(),
	})
}

// FetchState assembles the most-recently-active session's state for a
// (user, chapter) pair. HasData=false is a first-class outcome: a fresh
// learner, or a session that never synced a turn or memory snapshot.
func (s *SessionService) FetchState(ctx context.Context, userID, chapterID, courseID string) (*SessionState, error) {
	session, err := s.rm.Sessions(s.db).GetLatestForUserChapter(ctx, userID, chapterID, courseID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return &SessionState{HasData: false}, nil
		}
		return nil, err
	}

	turns, err := s.rm.Turns(s.db).ListBySession(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	state := &SessionState{SessionID: session.ID, Turns: turns}

	memory, err := s.rm.Snapshots(s.db).GetMemory(ctx, session.ID)
	switch {
	case err == nil:
		state.Memory = memory.Memory
		state.AgentState = memory.AgentState
	case errors.Is(err, common.ErrorNotFound):
		// absent snapshot is fine
	default:
		return nil, err
	}

	report, err := s.rm.Snapshots(s.db).GetReport(ctx, session.ID)
	switch {
	case err == nil:
		state.ReportMD = report.ReportMD
	case errors.Is(err, common.ErrorNotFound):
	default:
		return nil, err
	}

	if len(turns) == 0 && state.Memory == nil {
		return &SessionState{HasData: false}, nil
	}

	state.HasData = true
	return state, nil
}

// ListSummaries lists a chapter's sessions with turn counts, newest first.
func (s *SessionService) ListSummaries(ctx context.Context, userID, chapterID string) ([]*models.SessionSummary, error) {
	return s.rm.Sessions(s.db).ListSummaries(ctx, userID, chapterID)
}
