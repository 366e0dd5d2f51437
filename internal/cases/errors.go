package cases

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("case not found")
	ErrNoFiles            = errors.New("no files to process")
	ErrCaseBusy           = errors.New("case is already being processed")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidInput       = errors.New("invalid input")
	ErrQueueNotConfigured = errors.New("case queue not configured")
)

const (
	ErrorCodeValidation = "validation_error"
	ErrorCodeNotFound   = "not_found"
	ErrorCodeConflict   = "conflict"
	ErrorCodeIntegrity  = "integrity_fault"
	ErrorCodeInternal   = "internal_error"
)

// StorageTruncationError means a stored report came back shorter or longer
// than what was written. The case status is left as written.
type StorageTruncationError struct {
	CaseID   string
	Expected int
	Stored   int
}

func (e *StorageTruncationError) Error() string {
	return fmt.Sprintf("case %s: stored report length %d does not match written length %d", e.CaseID, e.Stored, e.Expected)
}
