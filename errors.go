package buffercmp

import "github.com/pkg/errors"

// PreconditionError indicates the comparison was rejected before any device work
// was attempted: buffer dtype or element count disagree with the comparator's
// shape, or the comparator was constructed for an unsupported element type.
//
// It is never conflated with a mismatch verdict: a malformed comparison returns
// an error, not false.
type PreconditionError struct {
	err error
}

// Error implements the error interface.
func (e *PreconditionError) Error() string { return e.err.Error() }

// Unwrap supports errors.Is/As chains.
func (e *PreconditionError) Unwrap() error { return e.err }

func preconditionErrorf(format string, args ...any) error {
	return &PreconditionError{err: errors.Errorf(format, args...)}
}

// ExecError wraps a failure reported by PJRT while compiling or running the
// comparison kernel (memory allocation failure, device fault, client already in
// an error state).
type ExecError struct {
	err error
}

// Error implements the error interface.
func (e *ExecError) Error() string { return e.err.Error() }

// Unwrap supports errors.Is/As chains and exposes the underlying PJRT error.
func (e *ExecError) Unwrap() error { return e.err }

func execError(cause error, format string, args ...any) error {
	if cause == nil {
		return &ExecError{err: errors.Errorf(format, args...)}
	}
	return &ExecError{err: errors.WithMessagef(cause, format, args...)}
}
