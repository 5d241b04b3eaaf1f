package locations

import (
	"context"
	"fmt"
	"strings"

	"github.com/agfood/agfood/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Location, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("locations: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	if strings.TrimSpace(location.Name) == "" {
		return Location{}, fmt.Errorf("locations: name is required: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, location)
}

func (s *Service) Update(ctx context.Context, id int64, location Location) error {
	if id <= 0 {
		return fmt.Errorf("locations: invalid id: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(location.Name) == "" {
		return fmt.Errorf("locations: name is required: %w", shared.ErrValidation)
	}
	return s.repo.Update(ctx, id, location)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("locations: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
