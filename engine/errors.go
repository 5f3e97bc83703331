/*
errors.go - Error taxonomy shared by every engine component

PURPOSE:
  All error kinds in one place, each with retryability, a suggested retry
  delay, and one fixed non-technical user-facing message. Raw internal
  messages are for logs only and must never reach end users.

ERROR CATEGORIES:
  1. Not found        - referenced template/record absent
  2. Validation       - caller-supplied data fails a declared rule
  3. Template         - structural defect in a template (authoring bug)
  4. Generation       - substitution/rendering failed unexpectedly
  5. Database/Network - persistence-layer failures, retryable
  6. Rate limit       - retryable with delay
  7. Configuration    - fatal startup misconfiguration

PROPAGATION POLICY:
  The pure components (substitution, classification, analytics) never
  return errors for expected bad input - they report it structurally in
  their result. Only structural template defects and internal invariant
  violations surface as KindTemplate/KindGeneration errors.

USAGE:
  err := &engine.Error{Kind: engine.KindValidation, Detail: "name is empty"}
  if engine.IsRetryable(err) { ... }
  msg := engine.UserMessage(err) // safe to display

SEE ALSO:
  - store.go: Store implementations wrap failures as KindDatabase
  - api: maps kinds to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindValidation    ErrorKind = "validation"
	KindTemplate      ErrorKind = "template"
	KindGeneration    ErrorKind = "generation"
	KindDatabase      ErrorKind = "database"
	KindNetwork       ErrorKind = "network"
	KindRateLimit     ErrorKind = "rate_limit"
	KindConfiguration ErrorKind = "configuration"
)

// kindProps is the static property table per kind. Static data, not
// behavior: kept as one auditable table rather than scattered literals.
var kindProps = map[ErrorKind]struct {
	Retryable   bool
	RetryDelay  time.Duration
	UserMessage string
}{
	KindNotFound:      {false, 0, "The requested record could not be found."},
	KindValidation:    {false, 0, "Please check your input"},
	KindTemplate:      {false, 0, "This template has a configuration problem. Please contact an administrator."},
	KindGeneration:    {false, 0, "Document generation failed. Please try again or contact support."},
	KindDatabase:      {true, 1 * time.Second, "A temporary storage problem occurred. Please try again."},
	KindNetwork:       {true, 2 * time.Second, "A network problem occurred. Please try again."},
	KindRateLimit:     {true, 5 * time.Second, "Too many requests. Please wait a moment and try again."},
	KindConfiguration: {false, 0, "The service is misconfigured. Please contact an administrator."},
}

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTemplateNotFound is returned when a referenced template doesn't exist.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrDocumentNotFound is returned when a referenced document doesn't exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNumberConflict is returned when a document number collides with an
	// already-committed one. The caller bumps the counter, re-proposes, and
	// retries exactly once before surfacing the conflict.
	ErrNumberConflict = errors.New("document number already in use")

	// ErrDuplicateEvent is returned when an event ID is appended twice.
	// Expected behavior for retried writes; safe to ignore.
	ErrDuplicateEvent = errors.New("duplicate event id")
)

// =============================================================================
// STRUCTURED ERROR - Kind plus log-only detail
// =============================================================================

// Error carries a kind, a detail string for logs, and an optional cause.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a kinded error with a formatted detail string.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying cause.
func WrapError(kind ErrorKind, err error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf extracts the taxonomy kind, defaulting to KindGeneration for
// errors the engine didn't produce.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrTemplateNotFound), errors.Is(err, ErrDocumentNotFound):
		return KindNotFound
	case errors.Is(err, ErrNumberConflict), errors.Is(err, ErrDuplicateEvent):
		return KindValidation
	}
	return KindGeneration
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return kindProps[KindOf(err)].Retryable
}

// RetryDelay returns the suggested wait before retrying, 0 if not retryable.
func RetryDelay(err error) time.Duration {
	return kindProps[KindOf(err)].RetryDelay
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// UserMessage returns the fixed, non-technical message for an error.
// Validation errors append their detail since it is caller-authored.
func UserMessage(err error) string {
	kind := KindOf(err)
	msg := kindProps[kind].UserMessage
	if kind == KindValidation {
		var e *Error
		if errors.As(err, &e) && e.Detail != "" {
			return fmt.Sprintf("%s: %s", msg, e.Detail)
		}
		return msg + "."
	}
	return msg
}
