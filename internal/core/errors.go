package core

import "errors"

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("expense not found")
	ErrForbidden          = errors.New("expense belongs to another account")

	ErrEmptyUsername      = errors.New("empty username")
	ErrEmptyPassword      = errors.New("empty password")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidUnitPrice   = errors.New("unit price cannot be negative")
	ErrInvalidPage        = errors.New("page must be at least 1")
	ErrInvalidPageSize    = errors.New("page size must be at least 1")
)
