package sessions

import (
	"context"
	"time"

	"github.com/ssergeev/studysync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)
	Touch(ctx context.Context, sessionID string, at time.Time) error
	// GetLatestForUserChapter returns the most-recently-active session for a
	// (user, chapter) pair, optionally filtered by course.
	GetLatestForUserChapter(ctx context.Context, userID, chapterID, courseID string) (*models.Session, error)
	ListSummaries(ctx context.Context, userID, chapterID string) ([]*models.SessionSummary, error)
}
