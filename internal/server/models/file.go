package models

import "time"

// SubmittedFile is a workspace artifact a learner explicitly persisted. The
// bytes live in object storage under StorageKey; this row is created only
// after the device confirms the direct upload succeeded.
type SubmittedFile struct {
	ID        int64
	UserID    string
	SessionID string
	ChapterID string

	Filename   string
	StorageKey string
	SizeBytes  int64

	SubmittedAt time.Time
	UpdatedAt   time.Time
}
