// Package files provides the PostgreSQL-backed store of confirmed workspace
// file submissions and the quota arithmetic over them.
package files

import (
	"context"
	"fmt"

	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert creates or replaces the row keyed by (user_id, chapter_id, filename).
// The storage key is deterministic from the same triple, so an overwrite
// points at the same object.
func (r *PostgresRepository) Upsert(ctx context.Context, f *models.SubmittedFile) error {
	query := `
		INSERT INTO submitted_files (user_id, session_id, chapter_id, filename, storage_key, size_bytes, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (user_id, chapter_id, filename)
		DO UPDATE SET
			session_id = EXCLUDED.session_id,
			storage_key = EXCLUDED.storage_key,
			size_bytes = EXCLUDED.size_bytes,
			updated_at = now();
	`
	_, err := r.db.ExecContext(ctx, query,
		f.UserID, f.SessionID, f.ChapterID, f.Filename, f.StorageKey, f.SizeBytes)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SumSizeByUser(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COALESCE(SUM(size_bytes), 0) FROM submitted_files WHERE user_id = $1;`
	var used int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&used); err != nil {
		return 0, fmt.Errorf("failed to sum file sizes: %w", err)
	}
	return used, nil
}

// SizeOf returns the recorded size of a prior submission of the same
// filename. Quota checks subtract it, since Upsert replaces that row.
func (r *PostgresRepository) SizeOf(ctx context.Context, userID, chapterID, filename string) (int64, error) {
	query := `SELECT COALESCE(SUM(size_bytes), 0) FROM submitted_files WHERE user_id = $1 AND chapter_id = $2 AND filename = $3;`
	var size int64
	if err := r.db.QueryRowContext(ctx, query, userID, chapterID, filename).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to get file size: %w", err)
	}
	return size, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.SubmittedFile, error) {
	query := `
		SELECT id, user_id, session_id, chapter_id, filename, storage_key, size_bytes, submitted_at, updated_at
		FROM submitted_files
		WHERE user_id = $1
		ORDER BY submitted_at DESC;
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.SubmittedFile
	for rows.Next() {
		var item models.SubmittedFile
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.SessionID, &item.ChapterID,
			&item.Filename, &item.StorageKey, &item.SizeBytes,
			&item.SubmittedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LockUser takes a transaction-scoped advisory lock keyed by the user id.
// Released automatically at commit/rollback.
func (r *PostgresRepository) LockUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, userID); err != nil {
		return fmt.Errorf("failed to lock user: %w", err)
	}
	return nil
}
