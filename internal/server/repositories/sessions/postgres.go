// Package sessions provides the PostgreSQL-backed session registry.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/models"
)

// PostgresRepository implements the registry over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO learning_sessions (session_id, user_id, chapter_id, course_id, created_at, last_active_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $5);
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.ChapterID, s.CourseID, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, chapter_id, COALESCE(course_id, ''), created_at, last_active_at
		FROM learning_sessions WHERE session_id = $1;
	`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, sessionID).
		Scan(&s.ID, &s.UserID, &s.ChapterID, &s.CourseID, &s.CreatedAt, &s.LastActiveAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	query := `UPDATE learning_sessions SET last_active_at = $2 WHERE session_id = $1;`
	res, err := r.db.ExecContext(ctx, query, sessionID, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// GetLatestForUserChapter picks the session a recovering device should
// resume: newest last_active_at wins.
func (r *PostgresRepository) GetLatestForUserChapter(ctx context.Context, userID, chapterID, courseID string) (*models.Session, error) {
	query := `
		SELECT session_id, user_id, chapter_id, COALESCE(course_id, ''), created_at, last_active_at
		FROM learning_sessions
		WHERE user_id = $1 AND chapter_id = $2 AND ($3 = '' OR course_id = $3)
		ORDER BY last_active_at DESC
		LIMIT 1;
	`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, userID, chapterID, courseID).
		Scan(&s.ID, &s.UserID, &s.ChapterID, &s.CourseID, &s.CreatedAt, &s.LastActiveAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListSummaries(ctx context.Context, userID, chapterID string) ([]*models.SessionSummary, error) {
	query := `
		SELECT s.session_id, s.created_at, s.last_active_at, COUNT(t.id)
		FROM learning_sessions s
		LEFT JOIN session_turns t ON t.session_id = s.session_id
		WHERE s.user_id = $1 AND s.chapter_id = $2
		GROUP BY s.session_id, s.created_at, s.last_active_at
		ORDER BY s.last_active_at DESC;
	`
	rows, err := r.db.QueryContext(ctx, query, userID, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to select sessions: %w", err)
	}
	defer rows.Close()

	var result []*models.SessionSummary
	for rows.Next() {
		var item models.SessionSummary
		if err := rows.Scan(&item.SessionID, &item.CreatedAt, &item.LastActiveAt, &item.TurnCount); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
