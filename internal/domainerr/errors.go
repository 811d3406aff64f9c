// Package domainerr holds the error kinds shared by the scheduling and lab
// workflow managers. Every rejected operation surfaces one of these so callers
// can decide between retrying, correcting the request, or giving up.
package domainerr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrConflictOnWrite means an atomic commit lost a race. The caller must
	// re-run the whole operation from a fresh read.
	ErrConflictOnWrite = errors.New("concurrent modification, retry the operation")

	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrResourceNotEligible = errors.New("resource not eligible")
	ErrNotPermitted        = errors.New("actor not permitted")
)

// InvalidTransitionError carries the current and attempted status of an entity.
type InvalidTransitionError struct {
	Entity  string
	Current string
	Target  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %q to %q", e.Entity, e.Current, e.Target)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ResourceNotEligibleError is returned when a resource is inactive or has the wrong role.
type ResourceNotEligibleError struct {
	ResourceID uuid.UUID
	Reason     string
}

func (e *ResourceNotEligibleError) Error() string {
	return fmt.Sprintf("resource %s not eligible: %s", e.ResourceID, e.Reason)
}

func (e *ResourceNotEligibleError) Unwrap() error { return ErrResourceNotEligible }

// NotPermittedError is returned when the acting resource may not perform an operation.
type NotPermittedError struct {
	ActorID uuid.UUID
	Action  string
}

func (e *NotPermittedError) Error() string {
	return fmt.Sprintf("actor %s may not %s", e.ActorID, e.Action)
}

func (e *NotPermittedError) Unwrap() error { return ErrNotPermitted }
