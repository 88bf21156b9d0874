package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode is a stable, machine-readable failure code.
type ErrorCode string

const (
	ErrContextMissing   ErrorCode = "CONTEXT_MISSING"     // origin title/url absent
	ErrNoRecentDownload ErrorCode = "NO_RECENT_DOWNLOAD"  // nothing in the recency window
	ErrNotStable        ErrorCode = "DOWNLOAD_NOT_STABLE" // candidate still being written
	ErrFileNotFound     ErrorCode = "FILE_NOT_FOUND"
	ErrIOFailure        ErrorCode = "IO_FAILURE"
	ErrIndexUnavailable ErrorCode = "INDEX_UNAVAILABLE" // never surfaced to users
	ErrNotFound         ErrorCode = "NOT_FOUND"
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrUnexpected       ErrorCode = "UNEXPECTED"
)

// CtxError is a classified failure with a code, a human-readable message and
// optional structured details.
type CtxError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Details   map[string]any

	cause error
}

// Error implements the error interface.
func (e *CtxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying OS or driver error, if any.
func (e *CtxError) Unwrap() error {
	return e.cause
}

// NewContextMissing reports that capture was attempted without provenance.
func NewContextMissing(missing []string) *CtxError {
	return &CtxError{
		Code:    ErrContextMissing,
		Message: "origin title and origin url are required for capture",
		Details: map[string]any{"missing": missing},
	}
}

// NewNoRecentDownload reports that no candidate appeared within the window.
func NewNoRecentDownload(withinSeconds int) *CtxError {
	return &CtxError{
		Code:    ErrNoRecentDownload,
		Message: fmt.Sprintf("no file appeared in the downloads directory within the last %d seconds", withinSeconds),
		Details: map[string]any{"within_seconds": withinSeconds},
	}
}

// NewNotStable reports that candidates exist but are still changing.
func NewNotStable(candidates int) *CtxError {
	return &CtxError{
		Code:      ErrNotStable,
		Message:   "download is still being written; retry shortly",
		Retryable: true,
		Details:   map[string]any{"candidates": candidates},
	}
}

// NewFileNotFound reports a missing or non-regular target path.
func NewFileNotFound(path string) *CtxError {
	return &CtxError{
		Code:    ErrFileNotFound,
		Message: fmt.Sprintf("file does not exist or is not a regular file: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewIOFailure wraps an OS-level failure on path.
func NewIOFailure(path string, err error) *CtxError {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	return &CtxError{
		Code:    ErrIOFailure,
		Message: fmt.Sprintf("i/o failure on %s", path),
		Details: map[string]any{"path": path, "reason": reason},
		cause:   err,
	}
}

// NewIndexUnavailable marks a shadow index failure. Callers log and drop it.
func NewIndexUnavailable(err error) *CtxError {
	msg := "search index unavailable"
	if err != nil {
		msg = fmt.Sprintf("search index unavailable: %v", err)
	}
	return &CtxError{
		Code:    ErrIndexUnavailable,
		Message: msg,
		cause:   err,
	}
}

// NewNotFound reports an unknown capture id.
func NewNotFound(id string) *CtxError {
	return &CtxError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("capture not found: %s", id),
		Details: map[string]any{"id": id},
	}
}

// NewInvalidRequest reports bad caller input.
func NewInvalidRequest(msg string) *CtxError {
	return &CtxError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewUnexpected wraps an unclassified failure.
func NewUnexpected(err error) *CtxError {
	msg := "unexpected failure"
	if err != nil {
		msg = err.Error()
	}
	return &CtxError{
		Code:    ErrUnexpected,
		Message: msg,
		cause:   err,
	}
}

// Wrap classifies err. A CtxError anywhere in the chain is returned as is;
// anything else becomes ErrUnexpected.
func Wrap(err error) *CtxError {
	if err == nil {
		return nil
	}
	var cErr *CtxError
	if stderrors.As(err, &cErr) {
		return cErr
	}
	return NewUnexpected(err)
}

// Is checks if err is a CtxError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CtxError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// Object is the wire form of a CtxError, shared by the CLI envelope and MCP
// error results.
type Object struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details"`
}

// Object returns the wire form. Unexpected failures carry a generic message
// and no details so driver errors and paths don't leak.
func (e *CtxError) Object() Object {
	if e.Code == ErrUnexpected {
		return Object{Code: e.Code, Message: "an unexpected error occurred", Details: map[string]any{}}
	}
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return Object{Code: e.Code, Message: e.Message, Retryable: e.Retryable, Details: details}
}
