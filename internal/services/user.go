package services

import (
	"context"

	"github.com/campushub/apiserver/types"
)

// UserService encapsulates account read and profile-picture use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfilePicture(ctx context.Context, id int, key string) error {
	return s.repo.UpdateProfilePicture(ctx, id, key)
}
