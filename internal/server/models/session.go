// Package models defines server-side data models persisted in the database.
package models

import "time"

// Session is one continuous tutoring conversation instance, owned by exactly
// one user and chapter. The owning user is immutable after creation.
type Session struct {
	// ID is the opaque session token generated at registration.
	ID string
	// UserID is the owning user.
	UserID string
	// ChapterID identifies the chapter the session belongs to.
	ChapterID string
	// CourseID optionally scopes the session to a course.
	CourseID string

	CreatedAt time.Time
	// LastActiveAt is bumped on every accepted turn append and decides which
	// session a recovering device resumes.
	LastActiveAt time.Time
}

// SessionSummary is a lightweight listing row for a chapter's sessions.
type SessionSummary struct {
	SessionID    string
	CreatedAt    time.Time
	LastActiveAt time.Time
	TurnCount    int
}
