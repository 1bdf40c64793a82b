package errors

import "net/http"

// Error code constants. Errors carry code + params; clients own presentation.

// Rate limit error codes.
const (
	CodeRateLimited = "RATE_LIMITED"
)

// Privacy (GDPR lifecycle) error codes.
const (
	CodeExportInProgress   = "EXPORT_ALREADY_IN_PROGRESS"
	CodeDeletionInProgress = "DELETION_ALREADY_IN_PROGRESS"
	CodeNoActiveDeletion   = "NO_ACTIVE_DELETION_REQUEST"
	CodeExportNotFound     = "EXPORT_NOT_FOUND"
	CodeUserNotFound       = "USER_NOT_FOUND"
)

// Moderation error codes.
const (
	CodeContentBlocked   = "CONTENT_BLOCKED"
	CodeReviewNotPending = "REVIEW_NOT_PENDING"
	CodeReviewNotFound   = "REVIEW_NOT_FOUND"
)

// Auth error codes.
const (
	CodeAuthFailed   = "AUTH_FAILED"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
)

// Validation error codes.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
)

// Convenience constructors using predefined codes.

// ErrRateLimitedf creates a 429 error carrying the retry-after hint.
func ErrRateLimitedf(retryAfterSeconds int) *AppError {
	return (&AppError{
		Code:       CodeRateLimited,
		Message:    "too many requests, please try again later",
		HTTPStatus: http.StatusTooManyRequests,
	}).WithParams(map[string]interface{}{
		"retry_after_seconds": retryAfterSeconds,
	})
}

// ErrExportInProgressf signals a duplicate export request.
func ErrExportInProgressf() *AppError {
	return &AppError{
		Code:       CodeExportInProgress,
		Message:    "a data export request is already in progress",
		HTTPStatus: http.StatusConflict,
		Err:        ErrAlreadyInProgress,
	}
}

// ErrDeletionInProgressf signals a duplicate deletion request.
func ErrDeletionInProgressf() *AppError {
	return &AppError{
		Code:       CodeDeletionInProgress,
		Message:    "a data deletion request is already in progress",
		HTTPStatus: http.StatusConflict,
		Err:        ErrAlreadyInProgress,
	}
}

// ErrNoActiveDeletionf signals cancellation without a cancellable request.
func ErrNoActiveDeletionf() *AppError {
	return &AppError{
		Code:       CodeNoActiveDeletion,
		Message:    "no active deletion request found",
		HTTPStatus: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}
