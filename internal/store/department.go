package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campushub/apiserver/types"
)

// DepartmentRepository handles persistence for departments.
type DepartmentRepository struct {
	db *sql.DB
}

func NewDepartmentRepository(db *sql.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) List(ctx context.Context) ([]types.Department, error) {
	const query = `
		SELECT id, code, name, faculty, created_at, updated_at
		FROM departments
		ORDER BY code`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	departments := make([]types.Department, 0)
	for rows.Next() {
		var dept types.Department
		if err := rows.Scan(&dept.ID, &dept.Code, &dept.Name, &dept.Faculty, &dept.CreatedAt, &dept.UpdatedAt); err != nil {
			return nil, err
		}
		departments = append(departments, dept)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return departments, nil
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id int) (types.Department, error) {
	const query = `
		SELECT id, code, name, faculty, created_at, updated_at
		FROM departments
		WHERE id = $1`
	var dept types.Department
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&dept.ID,
		&dept.Code,
		&dept.Name,
		&dept.Faculty,
		&dept.CreatedAt,
		&dept.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Department{}, ErrNotFound
		}
		return types.Department{}, err
	}
	return dept, nil
}

func (r *DepartmentRepository) Create(ctx context.Context, dept types.Department) (types.Department, error) {
	now := time.Now()
	dept.CreatedAt = now
	dept.UpdatedAt = now

	const query = `
		INSERT INTO departments (code, name, faculty, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, dept.Code, dept.Name, dept.Faculty, dept.CreatedAt, dept.UpdatedAt).Scan(&dept.ID); err != nil {
		return types.Department{}, mapUniqueViolation(err)
	}
	return dept, nil
}

func (r *DepartmentRepository) Update(ctx context.Context, dept types.Department) (types.Department, error) {
	dept.UpdatedAt = time.Now()

	const query = `
		UPDATE departments
		SET code = $1, name = $2, faculty = $3, updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query, dept.Code, dept.Name, dept.Faculty, dept.UpdatedAt, dept.ID)
	if err != nil {
		return types.Department{}, mapUniqueViolation(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Department{}, err
	}
	if affected == 0 {
		return types.Department{}, ErrNotFound
	}
	return dept, nil
}

// Delete removes a department. The profile foreign keys are ON DELETE
// RESTRICT, so a referenced department surfaces ErrDepartmentInUse.
func (r *DepartmentRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM departments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrDepartmentInUse
		}
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
