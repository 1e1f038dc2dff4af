package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ssergeev/studysync/internal/client/api"
	"github.com/ssergeev/studysync/internal/client/local"
	"github.com/ssergeev/studysync/internal/client/models"
	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/logging"
)

// TurnInput is one completed exchange plus the snapshots produced with it.
type TurnInput struct {
	SessionID     string
	ChapterID     string
	TurnIndex     int
	UserMessage   string
	AgentResponse string
	Outcome       json.RawMessage

	// Memory is the full replacement memory digest after this turn.
	Memory     json.RawMessage
	AgentState json.RawMessage
	// ReportMD, when non-nil, replaces the progress report.
	ReportMD *string
}

// Recorder persists each turn on the device first, then hands the update to
// the dispatcher. Local write failures are returned to the caller; remote
// sync is detached and can never fail the turn.
type Recorder struct {
	store      *local.Store
	dispatcher *Dispatcher
	logger     logging.Logger
}

func NewRecorder(store *local.Store, dispatcher *Dispatcher, l logging.Logger) *Recorder {
	return &Recorder{
		store:      store,
		dispatcher: dispatcher,
		logger:     l.With("module", "recorder"),
	}
}

// RecordTurn writes the turn and snapshots to the local store in one
// transaction, then fires the dispatcher at target (nil target skips sync).
func (r *Recorder) RecordTurn(ctx context.Context, target *Target, in TurnInput) error {
	err := dbx.WithTx(ctx, r.store.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := time.Now().UTC()

		if err := r.store.Turns(tx).Append(ctx, &models.Turn{
			SessionID:     in.SessionID,
			ChapterID:     in.ChapterID,
			TurnIndex:     in.TurnIndex,
			UserMessage:   in.UserMessage,
			AgentResponse: in.AgentResponse,
			Outcome:       in.Outcome,
		}); err != nil {
			return err
		}

		snapRepo := r.store.Snapshots(tx)
		if len(in.Memory) > 0 {
			if err := snapRepo.UpsertMemory(ctx, &models.MemorySnapshot{
				SessionID:  in.SessionID,
				ChapterID:  in.ChapterID,
				Memory:     in.Memory,
				AgentState: in.AgentState,
				UpdatedAt:  now,
			}); err != nil {
				return err
			}
		}
		if in.ReportMD != nil {
			if err := snapRepo.UpsertReport(ctx, &models.ReportSnapshot{
				SessionID: in.SessionID,
				ChapterID: in.ChapterID,
				ReportMD:  *in.ReportMD,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}

		return r.store.Sessions(tx).Touch(ctx, in.ChapterID)
	})
	if err != nil {
		return err
	}

	turn := &api.Turn{
		ChapterID:     in.ChapterID,
		TurnIndex:     in.TurnIndex,
		UserMessage:   in.UserMessage,
		AgentResponse: in.AgentResponse,
		Outcome:       in.Outcome,
	}
	var memory *MemoryUpdate
	if len(in.Memory) > 0 {
		memory = &MemoryUpdate{Memory: in.Memory, AgentState: in.AgentState}
	}
	var report *ReportUpdate
	if in.ReportMD != nil {
		report = &ReportUpdate{ReportMD: *in.ReportMD}
	}

	r.dispatcher.Dispatch(target, turn, memory, report)
	return nil
}
