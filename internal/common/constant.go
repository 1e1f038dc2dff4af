package common

// Wire-level error codes shared by the REST API and the client's error
// mapping. The desktop shows these to decide between silent fallback
// (SESSION_NOT_FOUND) and a hard failure (SESSION_ACCESS_DENIED).
const (
	CodeSessionNotFound     = "SESSION_NOT_FOUND"
	CodeSessionAccessDenied = "SESSION_ACCESS_DENIED"
	CodeQuotaExceeded       = "QUOTA_EXCEEDED"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternalError       = "INTERNAL_ERROR"
)
