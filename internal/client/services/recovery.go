package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ssergeev/studysync/internal/client/api"
	"github.com/ssergeev/studysync/internal/client/local"
	"github.com/ssergeev/studysync/internal/client/models"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/logging"
)

// Outcome is the result class of a reconciliation attempt.
type Outcome int

const (
	// ResumedLocal: the device already holds the session; nothing fetched.
	ResumedLocal Outcome = iota
	// ResumedRemote: remote state was materialized into the local store.
	ResumedRemote
	// FreshStart: nothing to resume, or recovery degraded after a failure.
	FreshStart
)

func (o Outcome) String() string {
	switch o {
	case ResumedLocal:
		return "resumed_local"
	case ResumedRemote:
		return "resumed_remote"
	default:
		return "fresh_start"
	}
}

// Result is what the conversation loop gets back from Reconcile. Remote is
// nil when the session has no server-side registration to dispatch to.
type Result struct {
	Outcome   Outcome
	SessionID string
	Remote    *Target
	// Notice is a one-time, human-readable degradation message ("continuing
	// without your previous progress"), empty on clean paths.
	Notice string
}

const defaultFetchTimeout = 10 * time.Second

// Reconciler decides, at conversation start, whether to resume from the
// local store, materialize remote state, or start fresh. Recovery failure
// never blocks a fresh start.
type Reconciler struct {
	store        *local.Store
	api          api.Client
	logger       logging.Logger
	fetchTimeout time.Duration
}

func NewReconciler(store *local.Store, client api.Client, l logging.Logger, fetchTimeout time.Duration) *Reconciler {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	return &Reconciler{
		store:        store,
		api:          client,
		logger:       l.With("module", "reconciler"),
		fetchTimeout: fetchTimeout,
	}
}

// Reconcile runs the recovery decision for a chapter.
func (r *Reconciler) Reconcile(ctx context.Context, chapterID, courseID string) (*Result, error) {
	session, err := r.store.Sessions(r.store.DB).GetByChapter(ctx, chapterID)
	switch {
	case err == nil:
		return &Result{
			Outcome:   ResumedLocal,
			SessionID: session.SessionID,
			Remote:    &Target{SessionID: session.SessionID, ChapterID: chapterID},
		}, nil
	case errors.Is(err, common.ErrorNotFound):
		// fall through to remote fetch
	default:
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	state, err := r.api.FetchSessionState(fetchCtx, chapterID, courseID)
	if err != nil {
		if errors.Is(err, common.ErrorAccessDenied) {
			// Someone else's session id is a hard failure, never a silent
			// fresh start.
			return nil, err
		}
		r.logger.Warn(ctx, "recovery fetch failed, starting fresh",
			"chapter_id", chapterID, "error", err.Error())
		return r.startFresh(ctx, chapterID, courseID,
			"Could not restore your previous progress; continuing with a fresh session.")
	}

	if !state.HasData {
		return r.startFresh(ctx, chapterID, courseID, "")
	}

	if err := r.materialize(ctx, chapterID, courseID, state); err != nil {
		r.logger.Warn(ctx, "failed to materialize remote state, starting fresh",
			"chapter_id", chapterID, "error", err.Error())
		return r.startFresh(ctx, chapterID, courseID,
			"Could not restore your previous progress; continuing with a fresh session.")
	}

	r.logger.Info(ctx, "resumed remote session",
		"chapter_id", chapterID, "session_id", state.SessionID, "turns", len(state.Turns))

	return &Result{
		Outcome:   ResumedRemote,
		SessionID: state.SessionID,
		Remote:    &Target{SessionID: state.SessionID, ChapterID: chapterID},
	}, nil
}

// materialize writes the fetched state into the local store in one
// transaction: the session row, every turn, and both snapshots.
func (r *Reconciler) materialize(ctx context.Context, chapterID, courseID string, state *api.SessionState) error {
	return dbx.WithTx(ctx, r.store.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		now := time.Now().UTC()

		if err := r.store.Sessions(tx).Upsert(ctx, &models.Session{
			SessionID:    state.SessionID,
			ChapterID:    chapterID,
			CourseID:     courseID,
			LastActiveAt: now,
		}); err != nil {
			return err
		}

		turnRepo := r.store.Turns(tx)
		for _, t := range state.Turns {
			if err := turnRepo.Append(ctx, &models.Turn{
				SessionID:     state.SessionID,
				ChapterID:     chapterID,
				TurnIndex:     t.TurnIndex,
				UserMessage:   t.UserMessage,
				AgentResponse: t.AgentResponse,
				Outcome:       t.TurnOutcome,
			}); err != nil {
				return err
			}
		}

		snapRepo := r.store.Snapshots(tx)
		if len(state.Memory) > 0 {
			if err := snapRepo.UpsertMemory(ctx, &models.MemorySnapshot{
				SessionID:  state.SessionID,
				ChapterID:  chapterID,
				Memory:     state.Memory,
				AgentState: state.AgentState,
				UpdatedAt:  now,
			}); err != nil {
				return err
			}
		}
		if state.ReportMD != "" {
			if err := snapRepo.UpsertReport(ctx, &models.ReportSnapshot{
				SessionID: state.SessionID,
				ChapterID: chapterID,
				ReportMD:  state.ReportMD,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// startFresh registers a new remote session when the server is reachable;
// otherwise the session lives only on the device and dispatch stays off
// (nil Remote) until the next recovery.
func (r *Reconciler) startFresh(ctx context.Context, chapterID, courseID, notice string) (*Result, error) {
	result := &Result{Outcome: FreshStart, Notice: notice}

	regCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	sessionID, err := r.api.RegisterSession(regCtx, chapterID, courseID)
	if err != nil {
		r.logger.Warn(ctx, "session registration failed, staying local-only",
			"chapter_id", chapterID, "error", err.Error())
		sessionID = uuid.New().String()
	} else {
		result.Remote = &Target{SessionID: sessionID, ChapterID: chapterID}
	}
	result.SessionID = sessionID

	err = r.store.Sessions(r.store.DB).Upsert(ctx, &models.Session{
		SessionID:    sessionID,
		ChapterID:    chapterID,
		CourseID:     courseID,
		LastActiveAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
