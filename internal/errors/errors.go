// Package errors defines the failure taxonomy of a mirror run.
//
// Every failure is an OperationError whose Op names the failing concern.
// OperationError.Is matches on Op alone, so the sentinel values below can be
// used with the standard library errors.Is to classify a wrapped error:
//
//	if errors.Is(err, mirrorerrors.ErrConfiguration) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
)

// Operation names used by the sentinels.
const (
	OpConfiguration    = "configuration"
	OpWorkingDirectory = "working-directory"
	OpProcess          = "process"
	OpCorruptWorkspace = "corrupt-workspace"
	OpCopy             = "copy"
	OpPush             = "push"
)

// Sentinels for errors.Is classification. Their Err is nil.
var (
	ErrConfiguration           = &OperationError{Op: OpConfiguration}
	ErrInvalidWorkingDirectory = &OperationError{Op: OpWorkingDirectory}
	ErrProcess                 = &OperationError{Op: OpProcess}
	ErrCorruptWorkspace        = &OperationError{Op: OpCorruptWorkspace}
	ErrCopy                    = &OperationError{Op: OpCopy}
	ErrPush                    = &OperationError{Op: OpPush}
)

// OperationError represents an error that occurred during a mirror operation
type OperationError struct {
	Op  string // The operation being performed
	Err error  // The underlying error
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	return e.Err
}

// New creates a new OperationError
func New(op string, err error) *OperationError {
	return &OperationError{
		Op:  op,
		Err: err,
	}
}

// Newf creates a new OperationError with a formatted cause. %w verbs are honored.
func Newf(op string, format string, args ...any) *OperationError {
	return New(op, fmt.Errorf(format, args...))
}

// Is implements error matching for OperationError
func (e *OperationError) Is(target error) bool {
	t, ok := target.(*OperationError)
	if !ok {
		return false
	}
	return e.Op == t.Op
}

// IsUserError reports whether err stems from caller input rather than the
// environment. Configuration and working directory problems are user errors.
func IsUserError(err error) bool {
	return stderrors.Is(err, ErrConfiguration) || stderrors.Is(err, ErrInvalidWorkingDirectory)
}
