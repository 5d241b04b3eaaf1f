package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agfood/agfood/internal/shared"
)

type memoryRepo struct {
	stock     map[int64]int64
	movements []Movement
	batches   []Batch
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo

	// staged state, applied on commit
	stock     map[int64]int64
	movements []Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stock: make(map[int64]int64)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, stock: make(map[int64]int64)}
	for k, v := range r.stock {
		tx.stock[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.stock = tx.stock
	r.movements = append(r.movements, tx.movements...)
	return nil
}

func (tx *memoryTx) CurrentStockForUpdate(ctx context.Context, productID int64) (int64, error) {
	qty, ok := tx.stock[productID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return qty, nil
}

func (tx *memoryTx) SetCurrentStock(ctx context.Context, productID, qty int64) error {
	tx.stock[productID] = qty
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.movements = append(tx.movements, m)
	return m.ID, nil
}

func (tx *memoryTx) LocationStock(ctx context.Context, productID, locationID int64) (int64, error) {
	var sum int64
	for _, m := range append(tx.repo.movements, tx.movements...) {
		if m.ProductID == productID && m.LocationID != nil && *m.LocationID == locationID {
			sum += m.Quantity
		}
	}
	return sum, nil
}

func (tx *memoryTx) SumMovements(ctx context.Context, productID int64) (int64, error) {
	var sum int64
	for _, m := range append(tx.repo.movements, tx.movements...) {
		if m.ProductID == productID {
			sum += m.Quantity
		}
	}
	return sum, nil
}

func (r *memoryRepo) GetCurrentStock(ctx context.Context, productID int64) (int64, error) {
	qty, ok := r.stock[productID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return qty, nil
}

func (r *memoryRepo) GetLocationStock(ctx context.Context, productID, locationID int64) (int64, error) {
	var sum int64
	for _, m := range r.movements {
		if m.ProductID == productID && m.LocationID != nil && *m.LocationID == locationID {
			sum += m.Quantity
		}
	}
	return sum, nil
}

func (r *memoryRepo) GetLowStock(ctx context.Context) ([]LowStockProduct, error) {
	return nil, nil
}

func (r *memoryRepo) EarliestExpiry(ctx context.Context, productID int64) (*time.Time, error) {
	var earliest *time.Time
	for _, b := range r.batches {
		if b.ProductID != productID || b.Blocked || b.ExpiryDate == nil {
			continue
		}
		if earliest == nil || b.ExpiryDate.Before(*earliest) {
			earliest = b.ExpiryDate
		}
	}
	return earliest, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	var out []Movement
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].ProductID == productID {
			out = append(out, r.movements[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memoryRepo) ListBatches(ctx context.Context, productID int64) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryRepo) AddBatch(ctx context.Context, b Batch) (int64, error) {
	r.nextID++
	b.ID = r.nextID
	r.batches = append(r.batches, b)
	return b.ID, nil
}

func (r *memoryRepo) SetBatchBlocked(ctx context.Context, batchID int64, blocked bool) error {
	for i := range r.batches {
		if r.batches[i].ID == batchID {
			r.batches[i].Blocked = blocked
			return nil
		}
	}
	return shared.ErrNotFound
}

func TestAdjustStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 10
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	movement, err := svc.AdjustStock(ctx, AdjustmentInput{ProductID: 1, Delta: 5, Reason: "Restock", ActingUser: "ani"})
	require.NoError(t, err)
	require.Equal(t, int64(15), repo.stock[1])
	require.Equal(t, MovementAdjustment, movement.Type)
	require.Equal(t, "ani", movement.ActingUser)

	movement, err = svc.AdjustStock(ctx, AdjustmentInput{ProductID: 1, Delta: -15})
	require.NoError(t, err)
	require.Equal(t, int64(0), repo.stock[1])
	require.Equal(t, "system", movement.ActingUser)
}

func TestAdjustStockRejectsNegative(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 4
	svc := NewService(repo, nil, nil)

	_, err := svc.AdjustStock(context.Background(), AdjustmentInput{ProductID: 1, Delta: -5})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, int64(4), repo.stock[1])
	require.Empty(t, repo.movements)
}

func TestAdjustStockZeroDeltaIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 4
	svc := NewService(repo, nil, nil)

	movement, err := svc.AdjustStock(context.Background(), AdjustmentInput{ProductID: 1, Delta: 0})
	require.NoError(t, err)
	require.Nil(t, movement)
	require.Empty(t, repo.movements)
}

func TestRecalculateCurrentStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 99 // drifted cache
	repo.movements = []Movement{
		{ProductID: 1, Quantity: 10},
		{ProductID: 1, Quantity: -3},
		{ProductID: 2, Quantity: 7},
	}
	svc := NewService(repo, nil, nil)

	total, err := svc.RecalculateCurrentStock(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(7), total)
	require.Equal(t, int64(7), repo.stock[1])
}

func TestTransferStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 20
	from, to := int64(1), int64(2)
	repo.movements = []Movement{{ProductID: 1, Quantity: 20, LocationID: &from}}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	err := svc.TransferStock(ctx, TransferInput{ProductID: 1, FromLocationID: from, ToLocationID: to, Quantity: 8, ActingUser: "ani"})
	require.NoError(t, err)

	// cache unchanged, legs cancel out
	require.Equal(t, int64(20), repo.stock[1])

	fromQty, err := repo.GetLocationStock(ctx, 1, from)
	require.NoError(t, err)
	require.Equal(t, int64(12), fromQty)

	toQty, err := repo.GetLocationStock(ctx, 1, to)
	require.NoError(t, err)
	require.Equal(t, int64(8), toQty)

	legs := repo.movements[1:]
	require.Len(t, legs, 2)
	require.Equal(t, "Transfer Out", legs[0].Reason)
	require.Equal(t, "Transfer In", legs[1].Reason)
}

type captureAudit struct {
	logs []shared.AuditLog
}

func (a *captureAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestTransferStockAuditsMovementIDs(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 10
	from, to := int64(1), int64(2)
	repo.movements = []Movement{{ProductID: 1, Quantity: 10, LocationID: &from}}
	audit := &captureAudit{}
	svc := NewService(repo, audit, nil)

	err := svc.TransferStock(context.Background(), TransferInput{ProductID: 1, FromLocationID: from, ToLocationID: to, Quantity: 4})
	require.NoError(t, err)

	require.Len(t, audit.logs, 2)
	require.Equal(t, "1", audit.logs[0].EntityID)
	require.Equal(t, "2", audit.logs[1].EntityID)
}

func TestTransferStockValidation(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 20
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	err := svc.TransferStock(ctx, TransferInput{ProductID: 1, FromLocationID: 3, ToLocationID: 3, Quantity: 5})
	require.ErrorIs(t, err, ErrSameLocation)

	err = svc.TransferStock(ctx, TransferInput{ProductID: 1, FromLocationID: 1, ToLocationID: 2, Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	// nothing at the source location
	err = svc.TransferStock(ctx, TransferInput{ProductID: 1, FromLocationID: 1, ToLocationID: 2, Quantity: 5})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Empty(t, repo.movements)
}

func TestGetStockPerLocation(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock[1] = 30
	loc := int64(5)
	repo.movements = []Movement{
		{ProductID: 1, Quantity: 12, LocationID: &loc},
		{ProductID: 1, Quantity: -2, LocationID: &loc},
	}
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	global, err := svc.GetStock(ctx, 1, nil)
	require.NoError(t, err)
	require.Equal(t, int64(30), global)

	atLoc, err := svc.GetStock(ctx, 1, &loc)
	require.NoError(t, err)
	require.Equal(t, int64(10), atLoc)
}

func TestGetEarliestExpiry(t *testing.T) {
	repo := newMemoryRepo()
	soon := time.Now().AddDate(0, 0, 3)
	later := time.Now().AddDate(0, 1, 0)
	blocked := time.Now().AddDate(0, 0, -10)
	repo.batches = []Batch{
		{ID: 1, ProductID: 1, BatchNo: "A", ExpiryDate: &later},
		{ID: 2, ProductID: 1, BatchNo: "B", ExpiryDate: &soon},
		{ID: 3, ProductID: 1, BatchNo: "C", ExpiryDate: &blocked, Blocked: true},
	}
	svc := NewService(repo, nil, nil)

	info, err := svc.GetEarliestExpiry(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.True(t, info.Date.Equal(soon))
	require.Equal(t, ExpirySoon, info.Status)

	info, err = svc.GetEarliestExpiry(context.Background(), 2)
	require.NoError(t, err)
	require.Nil(t, info)
}
