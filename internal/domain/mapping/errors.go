package mapping

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by GetByCode when no record carries the requested
// code. It never triggers a fallback demotion.
var ErrNotFound = errors.New("mapping not found")

// ValidationError reports malformed query, filter, or pagination input with
// enough detail for the caller to fix the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DuplicateKeyError reports a single-record insert conflict inside a batch.
type DuplicateKeyError struct {
	Code string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate mapping code %q", e.Code)
}

// AuthRequiredError means the store demands credentials this process does not
// have. The fallback coordinator demotes on it.
type AuthRequiredError struct {
	Err error
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("store requires authentication: %v", e.Err)
}

func (e *AuthRequiredError) Unwrap() error { return e.Err }

// UnreachableError means a connection-level failure or timeout against the
// store. The fallback coordinator demotes on it.
type UnreachableError struct {
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("store unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// FailureClass partitions store errors into the classes the fallback
// coordinator and the HTTP layer branch on.
type FailureClass int

const (
	ClassInternal FailureClass = iota
	ClassValidation
	ClassNotFound
	ClassDuplicate
	ClassAuthRequired
	ClassUnreachable
)

// Kind returns the stable error kind string exposed on the wire.
func (c FailureClass) Kind() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassDuplicate:
		return "duplicate_key"
	case ClassAuthRequired:
		return "auth_required"
	case ClassUnreachable:
		return "unreachable"
	default:
		return "internal"
	}
}

// Classify maps an error to its failure class. A deadline expiry counts as
// Unreachable; caller cancellation does not, so a cancelled request never
// demotes the active store.
func Classify(err error) FailureClass {
	var ve *ValidationError
	var de *DuplicateKeyError
	var ae *AuthRequiredError
	var ue *UnreachableError

	switch {
	case err == nil:
		return ClassInternal
	case errors.As(err, &ve):
		return ClassValidation
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.As(err, &de):
		return ClassDuplicate
	case errors.As(err, &ae):
		return ClassAuthRequired
	case errors.Is(err, context.Canceled):
		return ClassInternal
	case errors.As(err, &ue), errors.Is(err, context.DeadlineExceeded):
		return ClassUnreachable
	default:
		return ClassInternal
	}
}
