package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateField = errors.New("duplicate field")
	ErrValidation     = errors.New("validation failed")
	ErrAuth           = errors.New("authentication failed")
	ErrUserNotFound   = errors.New("user not found")
	ErrReportNotFound = errors.New("report not found")
	ErrNoArchive      = errors.New("report archive is not configured")
	ErrArchiveMissing = errors.New("report is not in the archive")
)

// DuplicateFieldError reports a username or email that another account
// already uses. It matches ErrDuplicateField.
type DuplicateFieldError struct {
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("that %s is taken, please choose a different one", e.Field)
}

func (e *DuplicateFieldError) Is(target error) bool {
	return target == ErrDuplicateField
}

// ValidationError is a constraint violation on a single form field. It
// matches ErrValidation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
