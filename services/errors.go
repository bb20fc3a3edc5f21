package services

import "errors"

// Expected business outcomes. Controllers match these with errors.Is
// and map them to HTTP statuses; nothing here is retried internally.
var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidScore    = errors.New("invalid score")
	ErrVersionConflict = errors.New("version conflict")
	ErrConflict        = errors.New("conflict")
)
