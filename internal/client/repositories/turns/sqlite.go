package turns

import (
	"context"
	"fmt"

	"github.com/ssergeev/studysync/internal/client/models"
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

func (r *SQLiteRepository) Append(ctx context.Context, turn *models.Turn) error {
	query := `INSERT INTO local_turns (session_id, chapter_id, turn_index, user_message, agent_response, outcome)
			values (?, ?, ?, ?, ?, ?)
			ON CONFLICT(session_id, turn_index) DO NOTHING
	`
	outcome := string(turn.Outcome)
	if outcome == "" {
		outcome = "{}"
	}
	_, err := r.db.ExecContext(ctx, query,
		turn.SessionID, turn.ChapterID, turn.TurnIndex, turn.UserMessage, turn.AgentResponse, outcome)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.Turn, error) {
	query := `select session_id, chapter_id, turn_index, user_message, agent_response, outcome, created_at
			from local_turns where session_id=? order by turn_index asc`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select turns: %w", err)
	}
	defer rows.Close()

	var result []*models.Turn
	for rows.Next() {
		item := &models.Turn{}
		var outcome string
		if err := rows.Scan(&item.SessionID, &item.ChapterID, &item.TurnIndex,
			&item.UserMessage, &item.AgentResponse, &outcome, &item.CreatedAt); err != nil {
			return nil, err
		}
		item.Outcome = []byte(outcome)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MaxTurnIndex(ctx context.Context, sessionID string) (int, error) {
	query := `select coalesce(max(turn_index), -1) from local_turns where session_id=?`
	var idx int
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&idx); err != nil {
		return 0, fmt.Errorf("failed to select max turn index: %w", err)
	}
	return idx, nil
}
