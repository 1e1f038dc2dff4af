// Package turns stores the device-local copy of the session turn log.
package turns

import (
	"context"

	"github.com/ssergeev/studysync/internal/client/models"
)

type Repository interface {
	// Append writes a turn if (session_id, turn_index) is free; a duplicate
	// append succeeds without touching the stored row.
	Append(ctx context.Context, turn *models.Turn) error
	// ListBySession returns the session's turns ordered by turn_index.
	ListBySession(ctx context.Context, sessionID string) ([]*models.Turn, error)
	// MaxTurnIndex returns the highest recorded index, or -1 for an empty
	// session, so the conversation loop can continue the numbering.
	MaxTurnIndex(ctx context.Context, sessionID string) (int, error)
}
