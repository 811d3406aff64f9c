package resource

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/domainerr"
)

type Role string

const (
	RoleClinician     Role = "clinician"
	RoleLabTechnician Role = "lab_technician"
)

func (r Role) Valid() bool {
	return r == RoleClinician || r == RoleLabTechnician
}

var ErrResourceNotFound = errors.New("resource not found")

// Resource is a schedulable staff member. Staff administration owns the
// record; the scheduling core only reads it.
type Resource struct {
	ID           uuid.UUID
	Name         string
	Role         Role
	DepartmentID *uuid.UUID
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Department struct {
	ID   uuid.UUID
	Name string
	Code string
}

// Directory is the read side of the staff roster.
type Directory interface {
	GetActiveResource(ctx context.Context, id uuid.UUID) (*Resource, error)
	// ListActiveResources returns active resources of role, optionally limited
	// to one department, ordered by id.
	ListActiveResources(ctx context.Context, role Role, departmentID *uuid.UUID) ([]Resource, error)
}

// Require checks that r is active and carries role.
func Require(r *Resource, role Role) error {
	if r == nil {
		return ErrResourceNotFound
	}
	if !r.Active {
		return &domainerr.ResourceNotEligibleError{ResourceID: r.ID, Reason: "inactive"}
	}
	if r.Role != role {
		return &domainerr.ResourceNotEligibleError{
			ResourceID: r.ID,
			Reason:     "role " + string(r.Role) + " is not " + string(role),
		}
	}
	return nil
}

func RequireClinician(r *Resource) error     { return Require(r, RoleClinician) }
func RequireLabTechnician(r *Resource) error { return Require(r, RoleLabTechnician) }

// Lookup fetches id from dir and checks it carries role. A missing or inactive
// resource is reported as not eligible.
func Lookup(ctx context.Context, dir Directory, id uuid.UUID, role Role) (*Resource, error) {
	r, err := dir.GetActiveResource(ctx, id)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return nil, &domainerr.ResourceNotEligibleError{ResourceID: id, Reason: "not found or inactive"}
		}
		return nil, err
	}
	if err := Require(r, role); err != nil {
		return nil, err
	}
	return r, nil
}
