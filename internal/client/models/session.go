// Package models defines the device-local data models.
package models

import (
	"encoding/json"
	"time"
)

// Session is the device's record of the active session for a chapter. One
// row per chapter: starting or recovering a session replaces it.
type Session struct {
	SessionID    string
	ChapterID    string
	CourseID     string
	LastActiveAt time.Time
}

// Turn is one locally recorded exchange.
type Turn struct {
	SessionID     string
	ChapterID     string
	TurnIndex     int
	UserMessage   string
	AgentResponse string
	Outcome       json.RawMessage
	CreatedAt     time.Time
}

// MemorySnapshot is the local copy of the session memory digest.
type MemorySnapshot struct {
	SessionID  string
	ChapterID  string
	Memory     json.RawMessage
	AgentState json.RawMessage
	UpdatedAt  time.Time
}

// ReportSnapshot is the local copy of the generated progress report.
type ReportSnapshot struct {
	SessionID string
	ChapterID string
	ReportMD  string
	UpdatedAt time.Time
}
