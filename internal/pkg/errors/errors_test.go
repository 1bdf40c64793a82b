package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_ErrorString(t *testing.T) {
	e := New("USER_NOT_FOUND", "user not found", http.StatusNotFound)
	if got := e.Error(); got != "USER_NOT_FOUND: user not found" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(errors.New("row missing"), "USER_NOT_FOUND", "user not found", http.StatusNotFound)
	if got := wrapped.Error(); got != "USER_NOT_FOUND: user not found: row missing" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := ErrDeletionInProgressf()
	if !errors.Is(err, ErrAlreadyInProgress) {
		t.Error("ErrDeletionInProgressf should unwrap to ErrAlreadyInProgress")
	}
	if !errors.Is(ErrNoActiveDeletionf(), ErrNotFound) {
		t.Error("ErrNoActiveDeletionf should unwrap to ErrNotFound")
	}
}

func TestIsAppError(t *testing.T) {
	appErr, ok := IsAppError(fmt.Errorf("handler: %w", ErrExportInProgressf()))
	if !ok {
		t.Fatal("IsAppError failed to find wrapped AppError")
	}
	if appErr.Code != CodeExportInProgress {
		t.Errorf("code = %q, want %q", appErr.Code, CodeExportInProgress)
	}
	if appErr.HTTPStatus != http.StatusConflict {
		t.Errorf("status = %d, want 409", appErr.HTTPStatus)
	}

	if _, ok := IsAppError(errors.New("plain")); ok {
		t.Error("plain error reported as AppError")
	}
}

func TestErrRateLimitedf_Params(t *testing.T) {
	err := ErrRateLimitedf(42)
	if err.HTTPStatus != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", err.HTTPStatus)
	}
	if err.Params["retry_after_seconds"] != 42 {
		t.Errorf("retry_after_seconds = %v, want 42", err.Params["retry_after_seconds"])
	}
}
