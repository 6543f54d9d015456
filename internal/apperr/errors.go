package apperr

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrAlreadyExists  = errors.New("already exists")
	ErrAlreadyApplied = errors.New("already applied")
	ErrRedirect       = errors.New("redirect required")
)
