// Package sessions stores the device's active session per chapter.
package sessions

import (
	"context"

	"github.com/ssergeev/studysync/internal/client/models"
)

type Repository interface {
	// Upsert replaces the chapter's active session row.
	Upsert(ctx context.Context, s *models.Session) error
	// GetByChapter returns the chapter's active session or
	// common.ErrorNotFound when the device has none.
	GetByChapter(ctx context.Context, chapterID string) (*models.Session, error)
	// Touch bumps last_active_at of the chapter's session.
	Touch(ctx context.Context, chapterID string) error
}
