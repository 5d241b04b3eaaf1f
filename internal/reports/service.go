package reports

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/agfood/agfood/internal/ledger"
)

// LedgerPort is the slice of the ledger the reports read from.
type LedgerPort interface {
	GetLowStockProducts(ctx context.Context) ([]ledger.LowStockProduct, error)
	GetMovementHistory(ctx context.Context, productID int64, limit int) ([]ledger.Movement, error)
}

// StorePort abstracts the reporting queries.
type StorePort interface {
	Dashboard(ctx context.Context) (Dashboard, error)
	ExpiryOverview(ctx context.Context) ([]ExpiryRow, error)
}

// Service composes reporting reads. The dashboard is deduplicated with
// singleflight so concurrent refreshes share one set of queries.
type Service struct {
	repo  StorePort
	stock LedgerPort

	dashGroup singleflight.Group
	now       func() time.Time
}

func NewService(repo StorePort, stock LedgerPort) *Service {
	return &Service{repo: repo, stock: stock, now: time.Now}
}

// GetDashboard returns the overview snapshot.
func (s *Service) GetDashboard(ctx context.Context) (Dashboard, error) {
	ch := s.dashGroup.DoChan("dashboard", func() (interface{}, error) {
		return s.repo.Dashboard(ctx)
	})
	select {
	case <-ctx.Done():
		return Dashboard{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Dashboard{}, res.Err
		}
		return res.Val.(Dashboard), nil
	}
}

// GetLowStock lists products whose cached quantity is below reorder point.
func (s *Service) GetLowStock(ctx context.Context) ([]ledger.LowStockProduct, error) {
	return s.stock.GetLowStockProducts(ctx)
}

// GetExpiryOverview lists the earliest expiry per product with its status.
func (s *Service) GetExpiryOverview(ctx context.Context) ([]ExpiryRow, error) {
	rows, err := s.repo.ExpiryOverview(ctx)
	if err != nil {
		return nil, err
	}
	today := s.now()
	for i := range rows {
		rows[i].Status = string(ledger.ClassifyExpiry(rows[i].ExpiryDate, today))
	}
	return rows, nil
}

// GetMovementHistory returns the most recent movements for a product.
func (s *Service) GetMovementHistory(ctx context.Context, productID int64, limit int) ([]ledger.Movement, error) {
	return s.stock.GetMovementHistory(ctx, productID, limit)
}
