package clients

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

func (s *Service) validate(c Client) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("clients: name is required: %w", shared.ErrValidation)
	}
	return nil
}

func (s *Service) List(ctx context.Context, search string) ([]Client, error) {
	return s.repo.List(ctx, search)
}

func (s *Service) Get(ctx context.Context, id int64) (Client, error) {
	if id <= 0 {
		return Client{}, fmt.Errorf("clients: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, client Client) (Client, error) {
	if err := s.validate(client); err != nil {
		return Client{}, err
	}
	return s.repo.Create(ctx, client)
}

func (s *Service) Update(ctx context.Context, id int64, client Client) error {
	if id <= 0 {
		return fmt.Errorf("clients: invalid id: %w", shared.ErrValidation)
	}
	if err := s.validate(client); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, client)
}

// Delete refuses while the client has any invoice or payment, so the
// financial history stays intact.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("clients: invalid id: %w", shared.ErrValidation)
	}
	invoices, payments, err := s.repo.CountReferences(ctx, id)
	if err != nil {
		return err
	}
	if invoices > 0 || payments > 0 {
		return fmt.Errorf("clients: %d invoices and %d payments reference this client: %w",
			invoices, payments, shared.ErrConflict)
	}
	return s.repo.Delete(ctx, id)
}
