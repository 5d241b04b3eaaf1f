package clients

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agfood/agfood/internal/shared"
)

type memoryRepo struct {
	clients  map[int64]Client
	invoices map[int64]int
	payments map[int64]int
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		clients:  map[int64]Client{},
		invoices: map[int64]int{},
		payments: map[int64]int{},
	}
}

func (r *memoryRepo) List(ctx context.Context, search string) ([]Client, error) {
	var out []Client
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Client, error) {
	c, ok := r.clients[id]
	if !ok {
		return Client{}, shared.ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) Create(ctx context.Context, client Client) (Client, error) {
	r.nextID++
	client.ID = r.nextID
	r.clients[client.ID] = client
	return client, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, client Client) error {
	if _, ok := r.clients[id]; !ok {
		return shared.ErrNotFound
	}
	client.ID = id
	r.clients[id] = client
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.clients[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.clients, id)
	return nil
}

func (r *memoryRepo) CountReferences(ctx context.Context, id int64) (int, int, error) {
	return r.invoices[id], r.payments[id], nil
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Client{Name: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteUnreferencedClient(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Client{Name: "Depot Nord"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteClientWithInvoicesFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Client{Name: "Depot Nord"})
	require.NoError(t, err)
	repo.invoices[created.ID] = 1

	err = svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Depot Nord", got.Name)
}

func TestDeleteClientWithPaymentsFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, Client{Name: "Depot Nord"})
	require.NoError(t, err)
	repo.payments[created.ID] = 2

	err = svc.Delete(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)
}
