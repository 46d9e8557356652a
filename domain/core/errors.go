package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Data errors
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrUnknownFeature   = errors.New("unknown feature")
	ErrInvalidSchema    = errors.New("invalid dataset schema")

	// Numeric degeneracy
	ErrNumericDegeneracy = errors.New("numeric degeneracy")
	ErrZeroVariance      = fmt.Errorf("%w: zero variance", ErrNumericDegeneracy)
	ErrSingularMatrix    = fmt.Errorf("%w: singular design matrix", ErrNumericDegeneracy)
	ErrDegenerateFold    = fmt.Errorf("%w: degenerate fold", ErrNumericDegeneracy)

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
)

// NewInsufficientDataError reports a sample that fell below the required size.
func NewInsufficientDataError(what string, have, need int) error {
	return fmt.Errorf("%w: %s has %d observations, need %d", ErrInsufficientData, what, have, need)
}

// NewSchemaError reports an invalid dataset column declaration.
func NewSchemaError(column string, reason string) error {
	return fmt.Errorf("%w: column %q: %s", ErrInvalidSchema, column, reason)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsNumericDegeneracy(err error) bool {
	return errors.Is(err, ErrNumericDegeneracy)
}
