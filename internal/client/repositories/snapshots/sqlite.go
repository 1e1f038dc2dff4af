package snapshots

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ssergeev/studysync/internal/client/models"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertMemory(ctx context.Context, snap *models.MemorySnapshot) error {
	query := `INSERT INTO local_memory (session_id, chapter_id, memory_json, agent_state_json, updated_at)
			values (?, ?, ?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET memory_json = excluded.memory_json,
				agent_state_json = excluded.agent_state_json,
				updated_at = excluded.updated_at
	`
	memory := string(snap.Memory)
	if memory == "" {
		memory = "{}"
	}
	var state any
	if len(snap.AgentState) > 0 {
		state = string(snap.AgentState)
	}
	_, err := r.db.ExecContext(ctx, query, snap.SessionID, snap.ChapterID, memory, state, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert memory: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetMemory(ctx context.Context, sessionID string) (*models.MemorySnapshot, error) {
	query := `select session_id, chapter_id, memory_json, agent_state_json, updated_at from local_memory where session_id=?`
	snap := &models.MemorySnapshot{}
	var memory string
	var state sql.NullString
	err := r.db.QueryRowContext(ctx, query, sessionID).
		Scan(&snap.SessionID, &snap.ChapterID, &memory, &state, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select memory: %w", err)
	}
	snap.Memory = []byte(memory)
	if state.Valid {
		snap.AgentState = []byte(state.String)
	}
	return snap, nil
}

func (r *SQLiteRepository) UpsertReport(ctx context.Context, snap *models.ReportSnapshot) error {
	query := `INSERT INTO local_report (session_id, chapter_id, report_md, updated_at)
			values (?, ?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET report_md = excluded.report_md,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, snap.SessionID, snap.ChapterID, snap.ReportMD, snap.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, sessionID string) (*models.ReportSnapshot, error) {
	query := `select session_id, chapter_id, report_md, updated_at from local_report where session_id=?`
	snap := &models.ReportSnapshot{}
	err := r.db.QueryRowContext(ctx, query, sessionID).
		Scan(&snap.SessionID, &snap.ChapterID, &snap.ReportMD, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select report: %w", err)
	}
	return snap, nil
}
