package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrFetchFailure       = errors.New("fetch failed")
	ErrSaveFailure        = errors.New("save failed")
	ErrDuplicateDocument  = errors.New("document already exists")
	ErrMalformedStructure = errors.New("malformed parsed structure")
	ErrNotFound           = errors.New("document not found")
	ErrInvalidID          = errors.New("invalid document identifier")
	ErrNotOpen            = errors.New("document is not open")
	ErrStale              = errors.New("result discarded: request is no longer relevant")
	ErrClosed             = errors.New("session is shut down")
)

// OpError is a collaborator failure converted at the session boundary.
// It matches both its Kind and the underlying cause with errors.Is.
type OpError struct {
	Op   string
	ID   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.ID, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause.
func (e *OpError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewOpError wraps err unless it is nil or already an *OpError.
func NewOpError(op, id string, kind, err error) error {
	if err == nil {
		return nil
	}
	var existing *OpError
	if errors.As(err, &existing) {
		return err
	}
	return &OpError{Op: op, ID: id, Kind: kind, Err: err}
}
