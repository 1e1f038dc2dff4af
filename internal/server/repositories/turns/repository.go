package turns

import (
	"context"

	"github.com/ssergeev/studysync/internal/server/models"
)

type Repository interface {
	// Append writes a turn if (session_id, turn_index) is not taken yet.
	// A duplicate append succeeds and leaves the existing row untouched.
	Append(ctx context.Context, turn *models.TurnRecord) error
	// ListBySession returns every turn of a session ordered by turn_index
	// ascending. Gaps in the index sequence are surfaced as-is.
	ListBySession(ctx context.Context, sessionID string) ([]*models.TurnRecord, error)
}
