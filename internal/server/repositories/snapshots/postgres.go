// Package snapshots provides PostgreSQL-backed single-row-per-session stores
// for the memory digest and the generated report.
package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/models"
)

// PostgresRepository implements snapshot storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertMemory replaces the session's memory digest wholesale.
func (r *PostgresRepository) UpsertMemory(ctx context.Context, snap *models.MemorySnapshot) error {
	query := `
		INSERT INTO session_memory (session_id, user_id, chapter_id, memory_json, agent_state_json, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, '{}'::jsonb), $5, $6)
		ON CONFLICT (session_id)
		DO UPDATE SET
			memory_json = EXCLUDED.memory_json,
			agent_state_json = EXCLUDED.agent_state_json,
			updated_at = EXCLUDED.updated_at;
	`
	memory := emptyToNil(snap.Memory)
	state := emptyToNil(snap.AgentState)
	_, err := r.db.ExecContext(ctx, query,
		snap.SessionID, snap.UserID, snap.ChapterID, memory, state, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetMemory(ctx context.Context, sessionID string) (*models.MemorySnapshot, error) {
	query := `
		SELECT session_id, user_id, chapter_id, memory_json, agent_state_json, updated_at
		FROM session_memory WHERE session_id = $1;
	`
	snap := &models.MemorySnapshot{}
	var memory, state []byte
	err := r.db.QueryRowContext(ctx, query, sessionID).
		Scan(&snap.SessionID, &snap.UserID, &snap.ChapterID, &memory, &state, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	snap.Memory = memory
	snap.AgentState = state
	return snap, nil
}

// UpsertReport replaces the session's report wholesale.
func (r *PostgresRepository) UpsertReport(ctx context.Context, snap *models.ReportSnapshot) error {
	query := `
		INSERT INTO session_report (session_id, user_id, chapter_id, report_md, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id)
		DO UPDATE SET
			report_md = EXCLUDED.report_md,
			updated_at = EXCLUDED.updated_at;
	`
	_, err := r.db.ExecContext(ctx, query,
		snap.SessionID, snap.UserID, snap.ChapterID, snap.ReportMD, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetReport(ctx context.Context, sessionID string) (*models.ReportSnapshot, error) {
	query := `
		SELECT session_id, user_id, chapter_id, report_md, updated_at
		FROM session_report WHERE session_id = $1;
	`
	snap := &models.ReportSnapshot{}
	err := r.db.QueryRowContext(ctx, query, sessionID).
		Scan(&snap.SessionID, &snap.UserID, &snap.ChapterID, &snap.ReportMD, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return snap, nil
}

// emptyToNil returns an untyped nil so database/sql sends SQL NULL; a typed
// []byte(nil) would reach the driver as an empty []uint8 instead.
func emptyToNil(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
