package services

import (
	"context"

	"github.com/campushub/apiserver/types"
)

// DepartmentRepository defines persistence operations for departments.
type DepartmentRepository interface {
	List(ctx context.Context) ([]types.Department, error)
	GetByID(ctx context.Context, id int) (types.Department, error)
	Create(ctx context.Context, dept types.Department) (types.Department, error)
	Update(ctx context.Context, dept types.Department) (types.Department, error)
	Delete(ctx context.Context, id int) error
}

// DepartmentService encapsulates department use-cases.
type DepartmentService struct {
	repo DepartmentRepository
}

func NewDepartmentService(repo DepartmentRepository) *DepartmentService {
	return &DepartmentService{repo: repo}
}

func (s *DepartmentService) List(ctx context.Context) ([]types.Department, error) {
	return s.repo.List(ctx)
}

func (s *DepartmentService) Get(ctx context.Context, id int) (types.Department, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *DepartmentService) Create(ctx context.Context, dept types.Department) (types.Department, error) {
	return s.repo.Create(ctx, dept)
}

func (s *DepartmentService) Update(ctx context.Context, dept types.Department) (types.Department, error) {
	return s.repo.Update(ctx, dept)
}

func (s *DepartmentService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
