package keydates

import (
	"context"
	"errors"

	apperrors "datedriven/internal/common/errors"
)

// SourceClient is one independent date-suggestion backend.
//
// Query must honour ctx cancellation and return candidates attributed to ID().
// Zero candidates with a nil error is a valid answer.
type SourceClient interface {
	ID() string
	Query(ctx context.Context, item Item) ([]Candidate, error)
}

// ContextProvider supplies background text for an item's subject, e.g. an
// encyclopedia summary, that is passed to the sources.
type ContextProvider interface {
	Summary(ctx context.Context, subject string) (string, error)
}

// ErrorKind is the recorded outcome of a failed source query.
type ErrorKind string

const (
	ErrorTimeout           ErrorKind = "timeout"
	ErrorTransport         ErrorKind = "transport_error"
	ErrorMalformedResponse ErrorKind = "malformed_response"
)

// ClassifyError maps a source error onto an ErrorKind. Errors that are not
// recognisably timeouts or malformed payloads count as transport errors.
func ClassifyError(err error) ErrorKind {
	switch {
	case errors.Is(err, apperrors.ErrSourceTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ErrorTimeout
	case errors.Is(err, apperrors.ErrSourceMalformedResponse):
		return ErrorMalformedResponse
	default:
		return ErrorTransport
	}
}
