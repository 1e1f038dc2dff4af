package files

import (
	"context"

	"github.com/ssergeev/studysync/internal/server/models"
)

type Repository interface {
	// Upsert records a confirmed upload. Re-submitting the same filename for
	// the same user and chapter overwrites the previous row.
	Upsert(ctx context.Context, file *models.SubmittedFile) error
	// SumSizeByUser returns the user's current quota usage in bytes.
	SumSizeByUser(ctx context.Context, userID string) (int64, error)
	// SizeOf returns the stored size of the (user, chapter, filename) row,
	// 0 when the filename has not been submitted yet.
	SizeOf(ctx context.Context, userID, chapterID, filename string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]*models.SubmittedFile, error)
	// LockUser serializes quota check + insert per user within the current
	// transaction (pg advisory lock).
	LockUser(ctx context.Context, userID string) error
}
