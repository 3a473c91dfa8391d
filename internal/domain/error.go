package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidExecContext  = errors.New("invalid execution context")
	ErrReadDatabaseRow     = errors.New("failed to read database row")
	ErrJobTerminal         = errors.New("job already in a terminal state")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrEmbeddingDisabled   = errors.New("embedding provider disabled")
)
