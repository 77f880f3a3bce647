// Package apperr defines the error taxonomy shared across the service.
package apperr

import "errors"

var (
	ErrEmptyInput = errors.New("note text is empty")
	ErrNotFound   = errors.New("not found")
	ErrUnparsable = errors.New("model output could not be interpreted")
)

// FailureKind classifies a failed call to an AI backend.
type FailureKind string

const (
	AuthFailure       FailureKind = "auth_failure"
	RateLimited       FailureKind = "rate_limited"
	Timeout           FailureKind = "timeout"
	MalformedResponse FailureKind = "malformed_response"
	NetworkError      FailureKind = "network_error"
)

// ProviderError describes a failed provider call in user-readable terms.
// Raw protocol details go into Detail and never replace the message.
type ProviderError struct {
	Kind   FailureKind
	Detail string
}

func (e *ProviderError) Error() string {
	msg := "the AI provider request failed"
	switch e.Kind {
	case AuthFailure:
		msg = "authentication with the AI provider failed"
	case RateLimited:
		msg = "the AI provider is rate limiting requests"
	case Timeout:
		msg = "the AI provider did not respond in time"
	case MalformedResponse:
		msg = "the AI provider returned an unexpected response"
	case NetworkError:
		msg = "could not reach the AI provider"
	}
	if e.Detail != "" {
		return msg + ": " + e.Detail
	}
	return msg
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind FailureKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}
