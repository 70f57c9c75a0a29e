package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Taxonomy. Every error returned to a caller wraps exactly one of these.
var (
	ErrValidation          = fmt.Errorf("validation failed")
	ErrNotFound            = fmt.Errorf("not found")
	ErrUpstreamUnavailable = fmt.Errorf("upstream unavailable")
	ErrPersistence         = fmt.Errorf("persistence failure")
	ErrConflict            = fmt.Errorf("conflict")
	ErrUnauthenticated     = fmt.Errorf("unauthenticated")
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrInvalidID             = fmt.Errorf("%w: invalid UUID", ErrValidation)
	ErrEmptyParticipants     = fmt.Errorf("%w: chat must have at least one participant", ErrValidation)
	ErrDuplicateParticipants = fmt.Errorf("%w: duplicate participants are not allowed", ErrValidation)
	ErrEmptyContent          = fmt.Errorf("%w: message content cannot be empty", ErrValidation)
	ErrContentTooLong        = fmt.Errorf("%w: message content too long", ErrValidation)

	ErrChatNotFound        = fmt.Errorf("chat %w", ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)

	ErrChatAlreadyExists = fmt.Errorf("%w: chat already exists", ErrConflict)
	ErrAlreadyMember     = fmt.Errorf("%w: the user is already a member of the chat", ErrConflict)
	ErrUserAlreadyExists = fmt.Errorf("%w: user already exists", ErrConflict)
)

// Reason tells why a participant could not be verified.
type Reason string

const (
	ReasonNotFound    Reason = "not_found"
	ReasonUnavailable Reason = "unavailable"
)

// ParticipantFailure is one rejected participant of a request.
type ParticipantFailure struct {
	UserID string `json:"user_id"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail"`
}

// ParticipantError aggregates every participant that failed verification.
// It matches ErrNotFound and, when at least one lookup could not complete,
// ErrUpstreamUnavailable as well.
type ParticipantError struct {
	Failures []ParticipantFailure
}

func (e *ParticipantError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		switch f.Reason {
		case ReasonUnavailable:
			parts = append(parts, fmt.Sprintf("User %s could not be verified: %s", f.UserID, f.Detail))
		default:
			parts = append(parts, fmt.Sprintf("User %s not found: %s", f.UserID, f.Detail))
		}
	}
	return strings.Join(parts, "; ")
}

func (e *ParticipantError) Unwrap() []error {
	errs := []error{ErrNotFound}
	for _, f := range e.Failures {
		if f.Reason == ReasonUnavailable {
			return append(errs, ErrUpstreamUnavailable)
		}
	}
	return errs
}

// HTTPStatus maps an error of the taxonomy to the status returned by the API.
// Unavailability wins over not-found so that a partial outage is never
// reported as a client mistake.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case goerrors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case goerrors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case goerrors.Is(err, ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case goerrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case goerrors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// MapToGRPCError converts an error of the taxonomy into a gRPC status error.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case goerrors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case goerrors.Is(err, ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case goerrors.Is(err, ErrUpstreamUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	case goerrors.Is(err, ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case goerrors.Is(err, ErrConflict):
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, "internal server error")
	}
}

// AsParticipantError exposes the per-participant failures of err, if any.
func AsParticipantError(err error) (*ParticipantError, bool) {
	var pErr *ParticipantError
	if goerrors.As(err, &pErr) {
		return pErr, true
	}
	return nil, false
}
