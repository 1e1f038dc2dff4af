package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/ssergeev/studysync/internal/client/api"
	"github.com/ssergeev/studysync/internal/client/local"
	"github.com/ssergeev/studysync/internal/logging"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements api.Client with overridable behavior per method.
type fakeAPI struct {
	pingFn     func(ctx context.Context) error
	registerFn func(ctx context.Context, chapterID, courseID string) (string, error)
	listFn     func(ctx context.Context, chapterID string) ([]api.SessionSummary, error)
	fetchFn    func(ctx context.Context, chapterID, courseID string) (*api.SessionState, error)
	appendFn   func(ctx context.Context, sessionID string, turn api.Turn) error
	memoryFn   func(ctx context.Context, sessionID, chapterID string, memory, agentState json.RawMessage) error
	reportFn   func(ctx context.Context, sessionID, chapterID, reportMD string) error
	grantFn    func(ctx context.Context, chapterID, filename string, sizeBytes int64) (*api.UploadGrant, error)
	confirmFn  func(ctx context.Context, in api.ConfirmUpload) (*api.QuotaUsage, error)
	filesFn    func(ctx context.Context) (*api.FileList, error)
}

func (f *fakeAPI) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		return nil
	}
	return f.pingFn(ctx)
}

func (f *fakeAPI) RegisterSession(ctx context.Context, chapterID, courseID string) (string, error) {
	if f.registerFn == nil {
		return "remote-session", nil
	}
	return f.registerFn(ctx, chapterID, courseID)
}

func (f *fakeAPI) ListSessions(ctx context.Context, chapterID string) ([]api.SessionSummary, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, chapterID)
}

func (f *fakeAPI) FetchSessionState(ctx context.Context, chapterID, courseID string) (*api.SessionState, error) {
	if f.fetchFn == nil {
		return &api.SessionState{}, nil
	}
	return f.fetchFn(ctx, chapterID, courseID)
}

func (f *fakeAPI) AppendTurn(ctx context.Context, sessionID string, turn api.Turn) error {
	if f.appendFn == nil {
		return nil
	}
	return f.appendFn(ctx, sessionID, turn)
}

func (f *fakeAPI) UpsertMemory(ctx context.Context, sessionID, chapterID string, memory, agentState json.RawMessage) error {
	if f.memoryFn == nil {
		return nil
	}
	return f.memoryFn(ctx, sessionID, chapterID, memory, agentState)
}

func (f *fakeAPI) UpsertReport(ctx context.Context, sessionID, chapterID, reportMD string) error {
	if f.reportFn == nil {
		return nil
	}
	return f.reportFn(ctx, sessionID, chapterID, reportMD)
}

func (f *fakeAPI) RequestUploadGrant(ctx context.Context, chapterID, filename string, sizeBytes int64) (*api.UploadGrant, error) {
	if f.grantFn == nil {
		return &api.UploadGrant{}, nil
	}
	return f.grantFn(ctx, chapterID, filename, sizeBytes)
}

func (f *fakeAPI) ConfirmUpload(ctx context.Context, in api.ConfirmUpload) (*api.QuotaUsage, error) {
	if f.confirmFn == nil {
		return &api.QuotaUsage{}, nil
	}
	return f.confirmFn(ctx, in)
}

func (f *fakeAPI) ListFiles(ctx context.Context) (*api.FileList, error) {
	if f.filesFn == nil {
		return &api.FileList{}, nil
	}
	return f.filesFn(ctx)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testStore(t *testing.T) *local.Store {
	t.Helper()
	store, err := local.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
