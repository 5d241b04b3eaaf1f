package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/shared"
)

// LedgerPort lets product edits emit adjustment movements.
type LedgerPort interface {
	AdjustStock(ctx context.Context, input ledger.AdjustmentInput) (*ledger.Movement, error)
}

type Service struct {
	repo   Repository
	ledger LedgerPort
}

func NewService(repo Repository, ledgerPort LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledgerPort}
}

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("products: name is required: %w", shared.ErrValidation)
	}
	if p.Price < 0 {
		return fmt.Errorf("products: price cannot be negative: %w", shared.ErrValidation)
	}
	if p.ReorderPoint < 0 {
		return fmt.Errorf("products: reorder point cannot be negative: %w", shared.ErrValidation)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("products: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	if strings.TrimSpace(barcode) == "" {
		return Product{}, fmt.Errorf("products: barcode required: %w", shared.ErrValidation)
	}
	return s.repo.GetByBarcode(ctx, barcode)
}

// Create adds a product. A nonzero opening quantity is logged as an
// Initial movement atomically with the insert.
func (s *Service) Create(ctx context.Context, product Product, initialQty int64, actor string) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	if initialQty < 0 {
		return Product{}, fmt.Errorf("products: opening stock cannot be negative: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, product, initialQty, actor)
}

// Update edits product master fields. A nonzero stockDelta additionally
// emits an Adjustment movement through the ledger, which enforces the
// non-negativity guard.
func (s *Service) Update(ctx context.Context, id int64, product Product, stockDelta int64, actor string) error {
	if id <= 0 {
		return fmt.Errorf("products: invalid id: %w", shared.ErrValidation)
	}
	if err := s.validate(product); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return err
	}
	if stockDelta != 0 {
		_, err := s.ledger.AdjustStock(ctx, ledger.AdjustmentInput{
			ProductID:  id,
			Delta:      stockDelta,
			Type:       ledger.MovementAdjustment,
			Reason:     "Product edit",
			ActingUser: actor,
		})
		return err
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("products: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
