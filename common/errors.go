package common

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound indicates a referenced entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the acting user may not perform the operation
	ErrForbidden = errors.New("forbidden")

	// ErrConflict indicates a uniqueness violation
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput indicates an empty required field or a malformed id
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable indicates the underlying store could not serve the request
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// OpError describes a failed operation on a single entity.
type OpError struct {
	Op     string
	Entity string
	ID     uint
	Err    error
}

func (e *OpError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s %s %d: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Fail builds an OpError, translating store errors into the taxonomy above.
func Fail(op, entity string, id uint, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Entity: entity, ID: id, Err: Translate(err)}
}

// Translate maps gorm and driver errors onto the sentinel errors. Errors that
// already carry a sentinel, and context cancellation, are returned unchanged.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden), errors.Is(err, ErrConflict),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrStorageUnavailable):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
}
