package labtest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/resource"
)

var ErrNoAssigneeAvailable = errors.New("no lab technician available")

// LoadCounter reports how many active tests a technician holds.
type LoadCounter interface {
	CountActive(ctx context.Context, technicianID uuid.UUID) (int, error)
}

type Candidate struct {
	Technician resource.Resource
	Load       int
}

// Balancer picks the least loaded technician from a department pool,
// widening to every active technician when the department has none.
type Balancer struct {
	directory resource.Directory
}

func NewBalancer(directory resource.Directory) *Balancer {
	return &Balancer{directory: directory}
}

// CandidatePool returns the active technicians of departmentID, or all active
// technicians when that set is empty. The pool is ordered by id.
func (b *Balancer) CandidatePool(ctx context.Context, departmentID *uuid.UUID) ([]resource.Resource, error) {
	var (
		pool []resource.Resource
		err  error
	)
	if departmentID != nil {
		pool, err = b.directory.ListActiveResources(ctx, resource.RoleLabTechnician, departmentID)
		if err != nil {
			return nil, fmt.Errorf("list department technicians: %w", err)
		}
	}
	if len(pool) == 0 {
		pool, err = b.directory.ListActiveResources(ctx, resource.RoleLabTechnician, nil)
		if err != nil {
			return nil, fmt.Errorf("list technicians: %w", err)
		}
	}

	slices.SortFunc(pool, func(a, b resource.Resource) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return pool, nil
}

// Pick locks the candidate pool inside repo's transaction, then reads fresh
// counts and returns the least loaded technician.
func (b *Balancer) Pick(ctx context.Context, repo Repository, departmentID *uuid.UUID) (*Candidate, error) {
	pool, err := b.CandidatePool(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoAssigneeAvailable
	}

	ids := make([]uuid.UUID, len(pool))
	for i, r := range pool {
		ids[i] = r.ID
	}
	if err := repo.LockTechnicians(ctx, ids); err != nil {
		return nil, fmt.Errorf("lock technicians: %w", err)
	}

	return LeastLoaded(ctx, repo, pool)
}

// LeastLoaded ranks pool by active count. Ties go to the smaller id string.
func LeastLoaded(ctx context.Context, counter LoadCounter, pool []resource.Resource) (*Candidate, error) {
	if len(pool) == 0 {
		return nil, ErrNoAssigneeAvailable
	}

	var best *Candidate
	for _, r := range pool {
		load, err := counter.CountActive(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("count workload for %s: %w", r.ID, err)
		}
		if best == nil || load < best.Load ||
			(load == best.Load && r.ID.String() < best.Technician.ID.String()) {
			best = &Candidate{Technician: r, Load: load}
		}
	}
	return best, nil
}
