package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agfood/agfood/internal/ledger"
)

type stubStore struct {
	dashboard Dashboard
	expiry    []ExpiryRow
	calls     int
}

func (s *stubStore) Dashboard(ctx context.Context) (Dashboard, error) {
	s.calls++
	return s.dashboard, nil
}

func (s *stubStore) ExpiryOverview(ctx context.Context) ([]ExpiryRow, error) {
	out := make([]ExpiryRow, len(s.expiry))
	copy(out, s.expiry)
	return out, nil
}

type stubLedger struct{}

func (stubLedger) GetLowStockProducts(ctx context.Context) ([]ledger.LowStockProduct, error) {
	return []ledger.LowStockProduct{{ProductID: 1, Name: "Rice"}}, nil
}

func (stubLedger) GetMovementHistory(ctx context.Context, productID int64, limit int) ([]ledger.Movement, error) {
	return nil, nil
}

func TestGetDashboard(t *testing.T) {
	store := &stubStore{dashboard: Dashboard{ProductCount: 3, InvoicedTotal: 450}}
	svc := NewService(store, stubLedger{})

	dash, err := svc.GetDashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), dash.ProductCount)
	require.InDelta(t, 450.0, dash.InvoicedTotal, 0.001)
}

func TestGetExpiryOverviewStatuses(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	store := &stubStore{expiry: []ExpiryRow{
		{ProductID: 1, ExpiryDate: today.AddDate(0, 0, -1)},
		{ProductID: 2, ExpiryDate: today.AddDate(0, 0, 5)},
		{ProductID: 3, ExpiryDate: today.AddDate(0, 2, 0)},
	}}
	svc := NewService(store, stubLedger{})
	svc.now = func() time.Time { return today }

	rows, err := svc.GetExpiryOverview(context.Background())
	require.NoError(t, err)
	require.Equal(t, "expired", rows[0].Status)
	require.Equal(t, "soon", rows[1].Status)
	require.Equal(t, "ok", rows[2].Status)
}

func TestGetLowStock(t *testing.T) {
	svc := NewService(&stubStore{}, stubLedger{})
	items, err := svc.GetLowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
}
