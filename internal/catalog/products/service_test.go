package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/shared"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product)}
}

func (r *memoryRepo) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range r.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) GetByBarcode(ctx context.Context, barcode string) (Product, error) {
	for _, p := range r.products {
		if p.Barcode == barcode {
			return p, nil
		}
	}
	return Product{}, shared.ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, product Product, initialQty int64, actor string) (Product, error) {
	for _, existing := range r.products {
		if existing.Name == product.Name {
			return Product{}, shared.ErrConflict
		}
	}
	r.nextID++
	product.ID = r.nextID
	product.CurrentStock = initialQty
	r.products[product.ID] = product
	return product, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, product Product) error {
	existing, ok := r.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	product.CurrentStock = existing.CurrentStock
	r.products[id] = product
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.products[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.products, id)
	return nil
}

type stubLedger struct {
	adjustments []ledger.AdjustmentInput
	err         error
}

func (s *stubLedger) AdjustStock(ctx context.Context, input ledger.AdjustmentInput) (*ledger.Movement, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.adjustments = append(s.adjustments, input)
	return &ledger.Movement{ProductID: input.ProductID, Quantity: input.Delta}, nil
}

func TestCreateProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &stubLedger{})
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Name: "Rice 5kg", Price: 12.5}, 40, "ani")
	require.NoError(t, err)
	require.Equal(t, int64(40), created.CurrentStock)

	_, err = svc.Create(ctx, Product{Name: ""}, 0, "ani")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{Name: "Oil", Price: -1}, 0, "ani")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{Name: "Oil"}, -5, "ani")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{Name: "Rice 5kg"}, 0, "ani")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestUpdateProductEmitsAdjustment(t *testing.T) {
	repo := newMemoryRepo()
	stub := &stubLedger{}
	svc := NewService(repo, stub)
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Name: "Rice"}, 10, "ani")
	require.NoError(t, err)

	err = svc.Update(ctx, created.ID, Product{Name: "Rice Premium"}, 5, "ani")
	require.NoError(t, err)
	require.Len(t, stub.adjustments, 1)
	require.Equal(t, int64(5), stub.adjustments[0].Delta)
	require.Equal(t, ledger.MovementAdjustment, stub.adjustments[0].Type)
	require.Equal(t, "ani", stub.adjustments[0].ActingUser)

	// no delta, no movement
	err = svc.Update(ctx, created.ID, Product{Name: "Rice Premium"}, 0, "ani")
	require.NoError(t, err)
	require.Len(t, stub.adjustments, 1)
}
