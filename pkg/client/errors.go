package client

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyMember    = errors.New("already a member of this room")
	ErrAlreadyReviewed  = errors.New("already reviewed this room")
	ErrInvalidState     = errors.New("operation not allowed in current room state")
	ErrNotReady         = errors.New("not every member is ready")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnavailable      = errors.New("service unavailable")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")

	// ErrUnknownOutcome is returned when a mutation was sent but no response
	// came back. The server may or may not have applied it; only the next
	// poll can tell.
	ErrUnknownOutcome = errors.New("outcome unknown")
)

var codeErrors = map[string]error{
	"capacity_exceeded": ErrRoomFull,
	"already_member":    ErrAlreadyMember,
	"already_reviewed":  ErrAlreadyReviewed,
	"invalid_state":     ErrInvalidState,
	"not_ready":         ErrNotReady,
	"not_found":         ErrNotFound,
	"permission_denied": ErrPermissionDenied,
	"invalid_input":     ErrInvalidInput,
	"unavailable":       ErrUnavailable,
	"rate_limited":      ErrRateLimited,
	"unauthorized":      ErrUnauthorized,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func newAPIError(status int, code, message string) *APIError {
	kind, ok := codeErrors[code]
	if !ok {
		switch {
		case status == 401:
			kind = ErrUnauthorized
		case status == 404:
			kind = ErrNotFound
		case status == 429:
			kind = ErrRateLimited
		case status >= 500:
			kind = ErrUnavailable
		}
	}
	return &APIError{Status: status, Code: code, Message: message, kind: kind}
}

// Recoverable reports whether the caller should simply re-poll and re-render.
// Every domain rejection is recoverable; only authentication failures and
// malformed requests are not.
func Recoverable(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrInvalidInput)
}
