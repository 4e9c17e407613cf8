package core

import (
	"errors"

	"github.com/coregx/sqlmap/internal/dialects"
	"github.com/coregx/sqlmap/internal/eval"
	"github.com/coregx/sqlmap/internal/schema"
)

// Predefined errors returned by statement building and execution.
var (
	// ErrConfiguration is returned when table metadata contradicts itself.
	ErrConfiguration = schema.ErrConfiguration
	// ErrColumnNotFound is returned when a field name is absent from a table.
	ErrColumnNotFound = schema.ErrColumnNotFound
	// ErrInvalidRowType is returned when a value is not an instance of the mapped type.
	ErrInvalidRowType = schema.ErrInvalidRowType
	// ErrUnevaluable is returned when a value expression cannot be resolved.
	ErrUnevaluable = eval.ErrUnevaluable
	// ErrUnsupportedDialect is returned when a driver name has no registered dialect.
	ErrUnsupportedDialect = dialects.ErrUnsupportedDialect

	// ErrUnsupportedPredicate is returned for a predicate shape the compiler does not know.
	ErrUnsupportedPredicate = errors.New("unsupported predicate")
	// ErrNoKey is returned when an operation by key targets a type without key columns.
	ErrNoKey = errors.New("table has no key columns")
	// ErrUnsupported is returned when the dialect cannot express an operation.
	ErrUnsupported = errors.New("operation not supported by dialect")
	// ErrNoRows is returned when a query that expects a row returns none.
	ErrNoRows = errors.New("no rows in result set")
)

// WrapError wraps an error with additional context message.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
