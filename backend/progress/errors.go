package progress

import "github.com/pkg/errors"

// ErrNotFound means the record does not exist. For course progress this is
// the expected "not started" outcome, not a failure.
var ErrNotFound = errors.New("progress: not found")

// StorageError reports a backend that was unreachable or rejected an
// operation. Writes are idempotent upserts so callers may simply retry.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err; it returns nil when err is nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return "progress storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Cause lets errors.Cause see through the wrapper.
func (e *StorageError) Cause() error { return e.Err }

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) *ValidationError {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "invalid input"
	}
	return e.Err.Error()
}
