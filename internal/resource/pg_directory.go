package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanResource(row pgx.Row) (*Resource, error) {
	var r Resource
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.Role,
		&r.DepartmentID,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResourceNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (d *PgDirectory) GetActiveResource(ctx context.Context, id uuid.UUID) (*Resource, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, name, role, department_id, is_active, created_at, updated_at
		FROM staff
		WHERE id = $1 AND is_active
	`, id)
	return scanResource(row)
}

func (d *PgDirectory) ListActiveResources(ctx context.Context, role Role, departmentID *uuid.UUID) ([]Resource, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, name, role, department_id, is_active, created_at, updated_at
		FROM staff
		WHERE role = $1
		  AND is_active
		  AND ($2::uuid IS NULL OR department_id = $2)
		ORDER BY id
	`, role, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list active %s: %w", role, err)
	}
	defer rows.Close()

	var result []Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *PgDirectory) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	var dep Department
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, code FROM departments WHERE id = $1
	`, id).Scan(&dep.ID, &dep.Name, &dep.Code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("department %s: %w", id, ErrResourceNotFound)
		}
		return nil, err
	}
	return &dep, nil
}
