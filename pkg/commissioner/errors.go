package commissioner

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by every commissioner operation. Callers match
// them with errors.Is; context is layered on with fmt.Errorf and %w.
var (
	ErrInvalidArgs     = errors.New("invalid arguments")
	ErrInvalidState    = errors.New("invalid state")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrRejected        = errors.New("rejected by the network")
	ErrTimeout         = errors.New("timed out")
	ErrTransportFailed = errors.New("transport failed")
	ErrSecurity        = errors.New("security error")
	ErrCancelled       = errors.New("cancelled")
	ErrIO              = errors.New("i/o error")
)

// RejectedError carries the numeric status of a network rejection. It
// matches ErrRejected under errors.Is.
type RejectedError struct {
	Status uint8
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by the network with status %d", e.Status)
}

// Is reports a match against the ErrRejected kind.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// StatusOf extracts the rejection status from an error chain. The
// second result is false when the chain carries no RejectedError.
func StatusOf(err error) (uint8, bool) {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Status, true
	}
	return 0, false
}
