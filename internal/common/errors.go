// Package common defines shared constants and sentinel errors used across
// the client and server layers. Callers should match sentinels with
// errors.Is and structured errors with errors.As.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Ownership mismatch. Never downgraded to a fresh-start fallback.
	ErrorAccessDenied = errors.New("access denied")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors (bad filename, bad storage key, bad payload).
	ErrorValidation = errors.New("validation error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
)

// QuotaExceededError is returned when an upload grant or confirmation would
// push a user's submitted files past the storage quota. It carries the
// numbers the UI needs to render an actionable message.
type QuotaExceededError struct {
	UsedBytes  int64
	LimitBytes int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("storage quota exceeded (used %dMB / %dMB)",
		e.UsedBytes/(1024*1024), e.LimitBytes/(1024*1024))
}
