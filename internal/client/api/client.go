// Package api talks to the sync server over HTTP/JSON on behalf of the
// device.
package api

import (
	"context"
	"encoding/json"
	"time"
)

// Turn is one completed exchange to report to the server.
type Turn struct {
	ChapterID     string
	TurnIndex     int
	UserMessage   string
	AgentResponse string
	Outcome       json.RawMessage
}

// TurnRecord is a turn as returned by the recovery fetch.
type TurnRecord struct {
	TurnIndex     int             `json:"turn_index"`
	UserMessage   string          `json:"user_message"`
	AgentResponse string          `json:"agent_response"`
	TurnOutcome   json.RawMessage `json:"turn_outcome"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SessionState is the materialized remote state for a (user, chapter) pair.
// HasData=false means there is nothing to resume.
type SessionState struct {
	HasData    bool            `json:"has_data"`
	SessionID  string          `json:"session_id"`
	Turns      []TurnRecord    `json:"turns"`
	Memory     json.RawMessage `json:"memory"`
	AgentState json.RawMessage `json:"agent_state"`
	ReportMD   string          `json:"report_md"`
}

// SessionSummary is a listing row for a chapter's sessions.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	TurnCount    int       `json:"turn_count"`
}

// UploadGrant is a time-limited authorization to PUT a file straight to
// object storage.
type UploadGrant struct {
	UploadURL       string            `json:"upload_url"`
	StorageKey      string            `json:"storage_key"`
	RequiredHeaders map[string]string `json:"required_headers"`
}

// ConfirmUpload reports a finished direct upload.
type ConfirmUpload struct {
	StorageKey    string `json:"storage_key"`
	Filename      string `json:"filename"`
	ChapterID     string `json:"chapter_id"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	SessionID     string `json:"session_id,omitempty"`
}

// QuotaUsage is the post-confirm storage accounting.
type QuotaUsage struct {
	UsedBytes  int64 `json:"quota_used_bytes"`
	LimitBytes int64 `json:"quota_limit_bytes"`
}

// FileInfo is one listed workspace submission.
type FileInfo struct {
	ID            int64     `json:"id"`
	Filename      string    `json:"filename"`
	ChapterID     string    `json:"chapter_id"`
	StorageKey    string    `json:"storage_key"`
	FileSizeBytes int64     `json:"file_size_bytes"`
	SubmittedAt   time.Time `json:"submitted_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	DownloadURL   string    `json:"download_url"`
}

// FileList is the files listing plus quota usage.
type FileList struct {
	Files           []FileInfo `json:"files"`
	QuotaUsedBytes  int64      `json:"quota_used_bytes"`
	QuotaLimitBytes int64      `json:"quota_limit_bytes"`
}

// Client is the server API surface the device-side services use.
type Client interface {
	Ping(ctx context.Context) error

	RegisterSession(ctx context.Context, chapterID, courseID string) (sessionID string, err error)
	ListSessions(ctx context.Context, chapterID string) ([]SessionSummary, error)
	FetchSessionState(ctx context.Context, chapterID, courseID string) (*SessionState, error)

	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	UpsertMemory(ctx context.Context, sessionID, chapterID string, memory, agentState json.RawMessage) error
	UpsertReport(ctx context.Context, sessionID, chapterID, reportMD string) error

	RequestUploadGrant(ctx context.Context, chapterID, filename string, sizeBytes int64) (*UploadGrant, error)
	ConfirmUpload(ctx context.Context, in ConfirmUpload) (*QuotaUsage, error)
	ListFiles(ctx context.Context) (*FileList, error)
}
