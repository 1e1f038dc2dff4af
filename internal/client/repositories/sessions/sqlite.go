package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

func (r *SQLiteRepository) Upsert(ctx context.Context, s *models.Session) error {
	query := `INSERT INTO local_sessions (chapter_id, session_id, course_id, last_active_at)
			values (?, ?, ?, ?)
			ON CONFLICT(chapter_id) DO UPDATE SET session_id = excluded.session_id,
				course_id = excluded.course_id,
				last_active_at = excluded.last_active_at
	`
	_, err := r.db.ExecContext(ctx, query, s.ChapterID, s.SessionID, s.CourseID, s.LastActiveAt)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByChapter(ctx context.Context, chapterID string) (*models.Session, error) {
	query := `select chapter_id, session_id, course_id, last_active_at from local_sessions where chapter_id=?`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, chapterID).
		Scan(&s.ChapterID, &s.SessionID, &s.CourseID, &s.LastActiveAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select session: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) Touch(ctx context.Context, chapterID string) error {
	query := `update local_sessions set last_active_at=? where chapter_id=?`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), chapterID)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}
