package models

import (
	"encoding/json"
	"time"
)

// MemorySnapshot is the latest known memory digest for a session. One row per
// session; writes are full replacements, no history is kept.
type MemorySnapshot struct {
	SessionID string
	UserID    string
	ChapterID string

	Memory json.RawMessage
	// AgentState optionally carries opaque agent-internal state alongside
	// the digest.
	AgentState json.RawMessage

	UpdatedAt time.Time
}

// ReportSnapshot is the latest generated progress report for a session.
// Same single-row, last-write-wins semantics as MemorySnapshot.
type ReportSnapshot struct {
	SessionID string
	UserID    string
	ChapterID string

	ReportMD string

	UpdatedAt time.Time
}
