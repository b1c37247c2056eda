package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	Timeout Kind = iota
	ServerRejected
	BadResponseShape
	Unreachable
	// Canceled means the caller abandoned the call. The run controller uses
	// it to abort superseded requests; it is never shown for the latest run.
	Canceled
)

func (k Kind) String() string {
	switch k {
	case Timeout:
		return "Timeout"
	case ServerRejected:
		return "ServerRejected"
	case BadResponseShape:
		return "BadResponseShape"
	case Unreachable:
		return "Unreachable"
	case Canceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Error is a classified transport failure. Status and Body are set for
// ServerRejected; Cause carries the underlying error when there is one.
type Error struct {
	Kind   Kind
	Status int
	Body   string
	Cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case Timeout:
		return "scenario service timed out"
	case ServerRejected:
		if e.Body != "" {
			return fmt.Sprintf("scenario service rejected request: HTTP %d: %s", e.Status, e.Body)
		}
		return fmt.Sprintf("scenario service rejected request: HTTP %d", e.Status)
	case BadResponseShape:
		return fmt.Sprintf("scenario service returned a malformed response: %v", e.Cause)
	case Unreachable:
		return fmt.Sprintf("scenario service unreachable: %v", e.Cause)
	case Canceled:
		return "scenario request canceled"
	default:
		return fmt.Sprintf("scenario transport error: %v", e.Cause)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// IsKind reports whether err is a transport Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}
