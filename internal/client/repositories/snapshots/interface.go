// Package snapshots stores the device-local memory and report snapshots.
package snapshots

import (
	"context"

	"github.com/ssergeev/studysync/internal/client/models"
)

// Repository keeps one memory row and one report row per session. Upserts
// replace the previous value wholesale.
type Repository interface {
	UpsertMemory(ctx context.Context, snap *models.MemorySnapshot) error
	GetMemory(ctx context.Context, sessionID string) (*models.MemorySnapshot, error)
	UpsertReport(ctx context.Context, snap *models.ReportSnapshot) error
	GetReport(ctx context.Context, sessionID string) (*models.ReportSnapshot, error)
}
