package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
)

var (
	// ErrDuplicate marks a write rejected by a unique constraint.
	ErrDuplicate = errors.New("duplicate key")
	// ErrMissingReference marks a write rejected by a foreign key.
	ErrMissingReference = errors.New("missing reference")
	// ErrStaleState marks a conditional update whose precondition no longer held.
	ErrStaleState = errors.New("stale state")
)

// ConstraintError carries the constraint that rejected a write.
type ConstraintError struct {
	Kind       error
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%v on %s: %v", e.Kind, e.Constraint, e.Err)
}

// Is matches the error kind so callers can use errors.Is(err, ErrDuplicate).
func (e *ConstraintError) Is(target error) bool {
	return target == e.Kind
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// ConstraintOf returns the name of the violated constraint, if any.
func ConstraintOf(err error) string {
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Constraint
	}
	return ""
}

func classify(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch string(pqErr.Code) {
	case pgerrcode.UniqueViolation:
		return &ConstraintError{Kind: ErrDuplicate, Constraint: pqErr.Constraint, Err: err}
	case pgerrcode.ForeignKeyViolation:
		return &ConstraintError{Kind: ErrMissingReference, Constraint: pqErr.Constraint, Err: err}
	}
	return err
}
