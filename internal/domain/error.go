package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidState       = errors.New("transition not allowed from current state")
	ErrValidation         = errors.New("invalid argument")
	ErrConflict           = errors.New("concurrent update conflict")
	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
