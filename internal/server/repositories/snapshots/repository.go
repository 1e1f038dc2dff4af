package snapshots

import (
	"context"

	"github.com/ssergeev/studysync/internal/server/models"
)

// Repository stores the latest-value artifacts of a session: the memory
// digest and the generated report. One row per session each; upserts are
// full replacements (last write wins, never a merge).
type Repository interface {
	UpsertMemory(ctx context.Context, snap *models.MemorySnapshot) error
	GetMemory(ctx context.Context, sessionID string) (*models.MemorySnapshot, error)
	UpsertReport(ctx context.Context, snap *models.ReportSnapshot) error
	GetReport(ctx context.Context, sessionID string) (*models.ReportSnapshot, error)
}
