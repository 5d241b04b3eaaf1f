package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agfood/agfood/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCurrentStock(ctx context.Context, productID int64) (int64, error)
	GetLocationStock(ctx context.Context, productID, locationID int64) (int64, error)
	GetLowStock(ctx context.Context) ([]LowStockProduct, error)
	EarliestExpiry(ctx context.Context, productID int64) (*time.Time, error)
	ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error)
	ListBatches(ctx context.Context, productID int64) ([]Batch, error)
	AddBatch(ctx context.Context, b Batch) (int64, error)
	SetBatchBlocked(ctx context.Context, batchID int64, blocked bool) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts posted movements.
type MetricsPort interface {
	MovementPosted()
}

// Service coordinates stock ledger operations.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// AdjustStock applies a signed delta to a product's cached quantity and
// appends one movement, atomically. A zero delta succeeds without
// writing anything. The acting user is an explicit parameter; the ledger
// holds no ambient user state.
func (s *Service) AdjustStock(ctx context.Context, input AdjustmentInput) (*Movement, error) {
	if input.ProductID == 0 {
		return nil, fmt.Errorf("ledger: product required: %w", shared.ErrValidation)
	}
	if input.Delta == 0 {
		return nil, nil
	}
	if input.Type == "" {
		input.Type = MovementAdjustment
	}

	movement := Movement{
		ProductID:   input.ProductID,
		Quantity:    input.Delta,
		Type:        input.Type,
		Reason:      input.Reason,
		ReferenceID: input.ReferenceID,
		LocationID:  input.LocationID,
		BatchID:     input.BatchID,
		Unit:        input.Unit,
		UnitQty:     input.UnitQty,
		CostPerUnit: input.CostPerUnit,
		ActingUser:  actorOrDefault(input.ActingUser),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.CurrentStockForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		next, err := NextQuantity(current, input.Delta)
		if err != nil {
			return err
		}
		if err := tx.SetCurrentStock(ctx, input.ProductID, next); err != nil {
			return err
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordMovement(ctx, movement)
	return &movement, nil
}

// RecalculateCurrentStock rebuilds the cache from the movement log for one
// product. Safe to repeat; never touches other products.
func (s *Service) RecalculateCurrentStock(ctx context.Context, productID int64) (int64, error) {
	if productID == 0 {
		return 0, fmt.Errorf("ledger: product required: %w", shared.ErrValidation)
	}
	var total int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.CurrentStockForUpdate(ctx, productID); err != nil {
			return err
		}
		sum, err := tx.SumMovements(ctx, productID)
		if err != nil {
			return err
		}
		total = sum
		return tx.SetCurrentStock(ctx, productID, sum)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// TransferStock moves quantity between two locations. Both legs commit in
// a single transaction so stock can never go missing or double-count.
func (s *Service) TransferStock(ctx context.Context, input TransferInput) error {
	if input.ProductID == 0 || input.FromLocationID == 0 || input.ToLocationID == 0 {
		return fmt.Errorf("ledger: product and locations required: %w", shared.ErrValidation)
	}
	if input.FromLocationID == input.ToLocationID {
		return ErrSameLocation
	}
	if input.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	actor := actorOrDefault(input.ActingUser)
	out := Movement{
		ProductID:  input.ProductID,
		Quantity:   -input.Quantity,
		Type:       MovementTransfer,
		Reason:     "Transfer Out",
		LocationID: &input.FromLocationID,
		ActingUser: actor,
	}
	in := Movement{
		ProductID:  input.ProductID,
		Quantity:   input.Quantity,
		Type:       MovementTransfer,
		Reason:     "Transfer In",
		LocationID: &input.ToLocationID,
		ActingUser: actor,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		available, err := tx.LocationStock(ctx, input.ProductID, input.FromLocationID)
		if err != nil {
			return err
		}
		if available < input.Quantity {
			return ErrNegativeStock
		}
		for _, leg := range []*Movement{&out, &in} {
			current, err := tx.CurrentStockForUpdate(ctx, input.ProductID)
			if err != nil {
				return err
			}
			next, err := NextQuantity(current, leg.Quantity)
			if err != nil {
				return err
			}
			if err := tx.SetCurrentStock(ctx, input.ProductID, next); err != nil {
				return err
			}
			id, err := tx.InsertMovement(ctx, *leg)
			if err != nil {
				return err
			}
			leg.ID = id
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordMovement(ctx, out)
	s.recordMovement(ctx, in)
	return nil
}

// GetStock returns the cached global quantity, or the derived per-location
// total when a location is given.
func (s *Service) GetStock(ctx context.Context, productID int64, locationID *int64) (int64, error) {
	if productID == 0 {
		return 0, fmt.Errorf("ledger: product required: %w", shared.ErrValidation)
	}
	if locationID == nil {
		return s.repo.GetCurrentStock(ctx, productID)
	}
	return s.repo.GetLocationStock(ctx, productID, *locationID)
}

// GetEarliestExpiry reports the soonest unblocked expiry and its status,
// or nil when the product has no dated batches.
func (s *Service) GetEarliestExpiry(ctx context.Context, productID int64) (*ExpiryInfo, error) {
	date, err := s.repo.EarliestExpiry(ctx, productID)
	if err != nil {
		return nil, err
	}
	if date == nil {
		return nil, nil
	}
	return &ExpiryInfo{Date: *date, Status: ClassifyExpiry(*date, time.Now())}, nil
}

// GetLowStockProducts lists products strictly below their reorder point.
func (s *Service) GetLowStockProducts(ctx context.Context) ([]LowStockProduct, error) {
	return s.repo.GetLowStock(ctx)
}

// GetMovementHistory returns the most recent movements, newest first.
func (s *Service) GetMovementHistory(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if productID == 0 {
		return nil, fmt.Errorf("ledger: product required: %w", shared.ErrValidation)
	}
	return s.repo.ListMovements(ctx, productID, limit)
}

// ListBatches returns all batches for a product.
func (s *Service) ListBatches(ctx context.Context, productID int64) ([]Batch, error) {
	return s.repo.ListBatches(ctx, productID)
}

// AddBatch registers a batch; batch numbers are unique per product.
func (s *Service) AddBatch(ctx context.Context, b Batch) (int64, error) {
	if b.ProductID == 0 || strings.TrimSpace(b.BatchNo) == "" {
		return 0, fmt.Errorf("ledger: product and batch number required: %w", shared.ErrValidation)
	}
	return s.repo.AddBatch(ctx, b)
}

// SetBatchBlocked toggles a batch's blocked flag.
func (s *Service) SetBatchBlocked(ctx context.Context, batchID int64, blocked bool) error {
	return s.repo.SetBatchBlocked(ctx, batchID, blocked)
}

func (s *Service) recordMovement(ctx context.Context, m Movement) {
	if s.metrics != nil {
		s.metrics.MovementPosted()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    m.ActingUser,
			Action:   fmt.Sprintf("ledger:%s", m.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", m.ID),
			Meta: map[string]any{
				"product_id": m.ProductID,
				"quantity":   m.Quantity,
				"reason":     m.Reason,
			},
		})
	}
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}
