package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ssergeev/studysync/internal/common"
	"github.com/ssergeev/studysync/internal/dbx"
	"github.com/ssergeev/studysync/internal/server/models"
	"github.com/ssergeev/studysync/internal/server/repositories/files"
	"github.com/ssergeev/studysync/internal/server/repositories/repomanager"
	"github.com/ssergeev/studysync/internal/server/repositories/sessions"
	"github.com/ssergeev/studysync/internal/server/repositories/snapshots"
	"github.com/ssergeev/studysync/internal/server/repositories/turns"
)

// -------- test fakes --------

type fakeSessionsRepo struct {
	sessions.Repository

	created   []*models.Session
	createErr error

	byID      *models.Session
	byIDErr   error
	latest    *models.Session
	latestErr error

	touched  []string
	touchErr error

	summaries []*models.SessionSummary
}

func (f *fakeSessionsRepo) Create(ctx context.Context, s *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSessionsRepo) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	return f.byID, f.byIDErr
}

func (f *fakeSessionsRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, sessionID)
	return nil
}

func (f *fakeSessionsRepo) GetLatestForUserChapter(ctx context.Context, userID, chapterID, courseID string) (*models.Session, error) {
	return f.latest, f.latestErr
}

func (f *fakeSessionsRepo) ListSummaries(ctx context.Context, userID, chapterID string) ([]*models.SessionSummary, error) {
	return f.summaries, nil
}

type fakeTurnsRepo struct {
	turns.Repository

	appended  []*models.TurnRecord
	appendErr error

	listed  []*models.TurnRecord
	listErr error
}

func (f *fakeTurnsRepo) Append(ctx context.Context, turn *models.TurnRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, turn)
	return nil
}

func (f *fakeTurnsRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.TurnRecord, error) {
	return f.listed, f.listErr
}

type fakeSnapshotsRepo struct {
	snapshots.Repository

	memories []*models.MemorySnapshot
	reports  []*models.ReportSnapshot

	memory    *models.MemorySnapshot
	memoryErr error
	report    *models.ReportSnapshot
	reportErr error
}

func (f *fakeSnapshotsRepo) UpsertMemory(ctx context.Context, snap *models.MemorySnapshot) error {
	f.memories = append(f.memories, snap)
	return nil
}

func (f *fakeSnapshotsRepo) GetMemory(ctx context.Context, sessionID string) (*models.MemorySnapshot, error) {
	return f.memory, f.memoryErr
}

func (f *fakeSnapshotsRepo) UpsertReport(ctx context.Context, snap *models.ReportSnapshot) error {
	f.reports = append(f.reports, snap)
	return nil
}

func (f *fakeSnapshotsRepo) GetReport(ctx context.Context, sessionID string) (*models.ReportSnapshot, error) {
	return f.report, f.reportErr
}

type fakeRepoMgr struct {
	repomanager.RepositoryManager

	sessions *fakeSessionsRepo
	turns    *fakeTurnsRepo
	snaps    *fakeSnapshotsRepo
	files    files.Repository
}

func (m *fakeRepoMgr) Sessions(db dbx.DBTX) sessions.Repository   { return m.sessions }
func (m *fakeRepoMgr) Turns(db dbx.DBTX) turns.Repository         { return m.turns }
func (m *fakeRepoMgr) Snapshots(db dbx.DBTX) snapshots.Repository { return m.snaps }
func (m *fakeRepoMgr) Files(db dbx.DBTX) files.Repository         { return m.files }

func newSessionSvc(t *testing.T, rm *fakeRepoMgr) (*SessionService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New err: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSessionService(db, rm), mock
}

// -------- tests --------

func TestRegister(t *testing.T) {
	repo := &fakeSessionsRepo{}
	svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: repo})

	got, err := svc.Register(context.Background(), "u1", "ch1", "course1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID == "" {
		t.Fatalf("expected generated session id")
	}
	if got.UserID != "u1" || got.ChapterID != "ch1" || got.CourseID != "course1" {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(repo.created) != 1 {
		t.Fatalf("want 1 created session, got %d", len(repo.created))
	}

	// Distinct registrations mint distinct ids.
	got2, err := svc.Register(context.Background(), "u1", "ch1", "course1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got2.ID == got.ID {
		t.Fatalf("session ids must be unique, got %q twice", got.ID)
	}
}

func TestAuthorize(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		repo := &fakeSessionsRepo{byID: &models.Session{ID: "s1", UserID: "u1"}}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: repo})

		got, err := svc.Authorize(context.Background(), "s1", "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.ID != "s1" {
			t.Fatalf("unexpected session: %+v", got)
		}
	})

	t.Run("foreign user", func(t *testing.T) {
		repo := &fakeSessionsRepo{byID: &models.Session{ID: "s1", UserID: "u1"}}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: repo})

		_, err := svc.Authorize(context.Background(), "s1", "u2")
		if !errors.Is(err, common.ErrorAccessDenied) {
			t.Fatalf("want ErrorAccessDenied, got %v", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		repo := &fakeSessionsRepo{byIDErr: common.ErrorNotFound}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: repo})

		_, err := svc.Authorize(context.Background(), "missing", "u1")
		if !errors.Is(err, common.ErrorNotFound) {
			t.Fatalf("want ErrorNotFound, got %v", err)
		}
	})
}

func TestAppendTurn(t *testing.T) {
	t.Run("appends and touches in one tx", func(t *testing.T) {
		sessRepo := &fakeSessionsRepo{byID: &models.Session{ID: "s1", UserID: "u1"}}
		turnRepo := &fakeTurnsRepo{}
		svc, mock := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, turns: turnRepo})

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := svc.AppendTurn(context.Background(), "u1", "s1", TurnInput{
			ChapterID:     "ch1",
			TurnIndex:     2,
			UserMessage:   "q",
			AgentResponse: "a",
			Outcome:       json.RawMessage(`{"ok":true}`),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(turnRepo.appended) != 1 {
			t.Fatalf("want 1 appended turn, got %d", len(turnRepo.appended))
		}
		if turnRepo.appended[0].TurnIndex != 2 {
			t.Fatalf("bad turn: %+v", turnRepo.appended[0])
		}
		if len(sessRepo.touched) != 1 || sessRepo.touched[0] != "s1" {
			t.Fatalf("session not touched: %v", sessRepo.touched)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("denied for foreign session", func(t *testing.T) {
		sessRepo := &fakeSessionsRepo{byID: &models.Session{ID: "s1", UserID: "owner"}}
		turnRepo := &fakeTurnsRepo{}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, turns: turnRepo})

		err := svc.AppendTurn(context.Background(), "intruder", "s1", TurnInput{})
		if !errors.Is(err, common.ErrorAccessDenied) {
			t.Fatalf("want ErrorAccessDenied, got %v", err)
		}
		if len(turnRepo.appended) != 0 {
			t.Fatalf("nothing must be written on denial")
		}
	})

	t.Run("append failure rolls back", func(t *testing.T) {
		sessRepo := &fakeSessionsRepo{byID: &models.Session{ID: "s1", UserID: "u1"}}
		turnRepo := &fakeTurnsRepo{appendErr: errors.New("db down")}
		svc, mock := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, turns: turnRepo})

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := svc.AppendTurn(context.Background(), "u1", "s1", TurnInput{TurnIndex: 1})
		if err == nil {
			t.Fatalf("expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}

func TestUpsertMemory(t *testing.T) {
	sessRepo := &fakeSessionsRepo{byID: &models.Session{ID: "s1", UserID: "u1"}}
	snapRepo := &fakeSnapshotsRepo{}
	svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, snaps: snapRepo})

	err := svc.UpsertMemory(context.Background(), "u1", "s1", "ch1",
		json.RawMessage(`{"facts":["a"]}`), json.RawMessage(`{"step":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapRepo.memories) != 1 {
		t.Fatalf("want 1 upsert, got %d", len(snapRepo.memories))
	}
	if string(snapRepo.memories[0].Memory) != `{"facts":["a"]}` {
		t.Fatalf("bad memory: %s", snapRepo.memories[0].Memory)
	}
}

func TestUpsertReport(t *testing.T) {
	sessRepo := &fakeSessionsRepo{byID: &models.Session{ID: "s1", UserID: "u1"}}
	snapRepo := &fakeSnapshotsRepo{}
	svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, snaps: snapRepo})

	if err := svc.UpsertReport(context.Background(), "u1", "s1", "ch1", "# Report"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapRepo.reports) != 1 || snapRepo.reports[0].ReportMD != "# Report" {
		t.Fatalf("bad report upsert: %+v", snapRepo.reports)
	}
}

func TestFetchState(t *testing.T) {
	t.Run("no session at all", func(t *testing.T) {
		sessRepo := &fakeSessionsRepo{latestErr: common.ErrorNotFound}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo})

		got, err := svc.FetchState(context.Background(), "u1", "ch1", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.HasData {
			t.Fatalf("want HasData=false")
		}
	})

	t.Run("full state", func(t *testing.T) {
		sessRepo := &fakeSessionsRepo{latest: &models.Session{ID: "s1", UserID: "u1"}}
		turnRepo := &fakeTurnsRepo{listed: []*models.TurnRecord{
			{TurnIndex: 0, UserMessage: "q0"},
			{TurnIndex: 1, UserMessage: "q1"},
		}}
		snapRepo := &fakeSnapshotsRepo{
			memory: &models.MemorySnapshot{Memory: json.RawMessage(`{"facts":[]}`), AgentState: json.RawMessage(`{"s":1}`)},
			report: &models.ReportSnapshot{ReportMD: "# R"},
		}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, turns: turnRepo, snaps: snapRepo})

		got, err := svc.FetchState(context.Background(), "u1", "ch1", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.HasData || got.SessionID != "s1" {
			t.Fatalf("bad state: %+v", got)
		}
		if len(got.Turns) != 2 || got.ReportMD != "# R" {
			t.Fatalf("bad state contents: %+v", got)
		}
		if string(got.AgentState) != `{"s":1}` {
			t.Fatalf("agent state lost: %s", got.AgentState)
		}
	})

	t.Run("session without turns or memory is empty", func(t *testing.T) {
		sessRepo := &fakeSessionsRepo{latest: &models.Session{ID: "s1", UserID: "u1"}}
		turnRepo := &fakeTurnsRepo{}
		snapRepo := &fakeSnapshotsRepo{memoryErr: common.ErrorNotFound, reportErr: common.ErrorNotFound}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, turns: turnRepo, snaps: snapRepo})

		got, err := svc.FetchState(context.Background(), "u1", "ch1", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.HasData {
			t.Fatalf("registered-but-never-synced session must report no data")
		}
	})

	t.Run("turns without memory still count", func(t *testing.T) {
		sessRepo := &fakeSessionsRepo{latest: &models.Session{ID: "s1", UserID: "u1"}}
		turnRepo := &fakeTurnsRepo{listed: []*models.TurnRecord{{TurnIndex: 0}}}
		snapRepo := &fakeSnapshotsRepo{memoryErr: common.ErrorNotFound, reportErr: common.ErrorNotFound}
		svc, _ := newSessionSvc(t, &fakeRepoMgr{sessions: sessRepo, turns: turnRepo, snaps: snapRepo})

		got, err := svc.FetchState(context.Background(), "u1", "ch1", "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.HasData {
			t.Fatalf("turns alone must yield HasData=true")
		}
	})
}
