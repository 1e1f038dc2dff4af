package models

import (
	"encoding/json"
	"time"
)

// TurnRecord is one completed user/agent exchange. Rows are immutable once
// written; (SessionID, TurnIndex) is unique and the index is assigned by the
// agent process, not by the store.
type TurnRecord struct {
	ID        int64
	UserID    string
	SessionID string
	ChapterID string

	TurnIndex     int
	UserMessage   string
	AgentResponse string
	// Outcome is a free-form structured payload describing the turn result.
	Outcome json.RawMessage

	CreatedAt time.Time
}
