// Package turns provides the PostgreSQL-backed append-only turn log.
package turns

import (
	"context"
	"fmt"

	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/models"
)

// PostgresRepository implements the turn log over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts a turn row. ON CONFLICT DO NOTHING makes retries from an
// unreliable network safe: 0 rows affected means the turn was already
// recorded, which is still success for the caller.
func (r *PostgresRepository) Append(ctx context.Context, turn *models.TurnRecord) error {
	query := `
		INSERT INTO session_turns (user_id, session_id, chapter_id, turn_index, user_message, agent_response, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, '{}'::jsonb))
		ON CONFLICT (session_id, turn_index) DO NOTHING;
	`
	// Untyped nil so database/sql sends SQL NULL; a typed []byte(nil) would
	// reach the driver as an empty []uint8 instead.
	var outcome any
	if len(turn.Outcome) > 0 {
		outcome = []byte(turn.Outcome)
	}
	_, err := r.db.ExecContext(ctx, query,
		turn.UserID, turn.SessionID, turn.ChapterID, turn.TurnIndex,
		turn.UserMessage, turn.AgentResponse, outcome)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListBySession returns the session's turns sorted by turn_index ascending.
// The result is fully materialized; a single learning session stays small.
func (r *PostgresRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.TurnRecord, error) {
	query := `
		SELECT id, user_id, session_id, chapter_id, turn_index, user_message, agent_response, outcome, created_at
		FROM session_turns
		WHERE session_id = $1
		ORDER BY turn_index ASC;
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select turns: %w", err)
	}
	defer rows.Close()

	var result []*models.TurnRecord
	for rows.Next() {
		var item models.TurnRecord
		var outcome []byte
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.SessionID, &item.ChapterID,
			&item.TurnIndex, &item.UserMessage, &item.AgentResponse, &outcome, &item.CreatedAt,
		); err != nil {
			return nil, err
		}
		item.Outcome = outcome
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
