package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrNotReady        = errors.New("analysis is not complete yet")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyRunning  = errors.New("analysis run already in progress")
	ErrStoreFailure    = errors.New("persistence layer failure")

	ErrInvalidExecContext = errors.New("invalid sql execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// StageError marks a failure inside one of the analysis stages. The orchestrator
// records its message as the job's terminal error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
