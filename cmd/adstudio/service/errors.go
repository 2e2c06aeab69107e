package service

import (
	"errors"
	"fmt"

	"github.com/lyzr/adstudio/cmd/adstudio/repository"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrImmutableVersion = errors.New("version is frozen")
	ErrAlreadyActive    = errors.New("another version is already active")
	ErrDraftConflict    = errors.New("stream already has a draft")
	ErrStaleLayout      = errors.New("mixer layout has changed")
)

// DraftConflictError names the draft that blocks a new one
type DraftConflictError struct {
	DraftID string
}

func (e *DraftConflictError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDraftConflict, e.DraftID)
}

func (e *DraftConflictError) Is(target error) bool { return target == ErrDraftConflict }

// AlreadyActiveError names the version currently active
type AlreadyActiveError struct {
	ActiveID string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("%s: %s (use forceFreeze to replace it)", ErrAlreadyActive, e.ActiveID)
}

func (e *AlreadyActiveError) Is(target error) bool { return target == ErrAlreadyActive }

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// notFound translates a storage miss into ErrNotFound and leaves other errors alone
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}
