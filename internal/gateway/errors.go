package gateway

import (
	"context"
	"errors"
	"net/http"

	"stream-gateway/internal/admission"
)

var (
	// ErrUserNotFound is returned when no session exists for a user id.
	ErrUserNotFound = errors.New("user not found")

	// ErrVideoNotFound is returned when the catalog has no entry for a video id.
	ErrVideoNotFound = errors.New("video not found")

	// ErrLockUnavailable means the session store can no longer guarantee
	// exclusive access because a previous holder failed inside the locked
	// region. The store must not be trusted for the call that received it.
	ErrLockUnavailable = errors.New("session store lock unavailable")

	// ErrRouteNotFound is returned for a method and path the gateway does not serve.
	ErrRouteNotFound = errors.New("route not found")

	// ErrOverloaded is returned when an admission permit could not be obtained.
	ErrOverloaded = errors.New("server is currently overloaded")

	// ErrInvalidRequest is returned for malformed identifiers or bitrates.
	ErrInvalidRequest = errors.New("invalid request")
)

// OutcomeKind names the result class of a dispatched request.
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeRouteNotFound   OutcomeKind = "route_not_found"
	OutcomeUserNotFound    OutcomeKind = "user_not_found"
	OutcomeVideoNotFound   OutcomeKind = "video_not_found"
	OutcomeInvalidRequest  OutcomeKind = "invalid_request"
	OutcomeOverloaded      OutcomeKind = "overloaded"
	OutcomeLockUnavailable OutcomeKind = "lock_unavailable"
	OutcomeInternal        OutcomeKind = "internal_error"
)

// Outcome pairs a result class with its HTTP status.
type Outcome struct {
	Kind   OutcomeKind
	Status int
}

// Classify maps err to exactly one Outcome. A nil error is a success.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Outcome{Kind: OutcomeSuccess, Status: http.StatusOK}
	case errors.Is(err, ErrRouteNotFound):
		return Outcome{Kind: OutcomeRouteNotFound, Status: http.StatusNotFound}
	case errors.Is(err, ErrUserNotFound):
		return Outcome{Kind: OutcomeUserNotFound, Status: http.StatusNotFound}
	case errors.Is(err, ErrVideoNotFound):
		return Outcome{Kind: OutcomeVideoNotFound, Status: http.StatusNotFound}
	case errors.Is(err, ErrInvalidRequest):
		return Outcome{Kind: OutcomeInvalidRequest, Status: http.StatusBadRequest}
	case errors.Is(err, ErrOverloaded),
		errors.Is(err, admission.ErrGateClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return Outcome{Kind: OutcomeOverloaded, Status: http.StatusServiceUnavailable}
	case errors.Is(err, ErrLockUnavailable):
		return Outcome{Kind: OutcomeLockUnavailable, Status: http.StatusInternalServerError}
	default:
		return Outcome{Kind: OutcomeInternal, Status: http.StatusInternalServerError}
	}
}
