package invoicing

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/shared"
)

type memoryRepo struct {
	products  map[int64]ProductSnapshot
	stock     map[int64]int64
	invoices  []Invoice
	movements []ledger.Movement
	payments  []Payment
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo

	stock     map[int64]int64
	invoices  []Invoice
	movements []ledger.Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[int64]ProductSnapshot),
		stock:    make(map[int64]int64),
	}
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
	r.invoices = append(r.invoices, tx.invoices...)
	r.movements = append(r.movements, tx.movements...)
	return nil
}

func (tx *memoryTx) ProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error) {
	snap, ok := tx.repo.products[productID]
	if !ok {
		return ProductSnapshot{}, shared.ErrNotFound
	}
	return snap, nil
}

func (tx *memoryTx) MaxInvoiceSeq(ctx context.Context, prefix string) (int, error) {
	max := 0
	for _, inv := range append(tx.repo.invoices, tx.invoices...) {
		suffix, ok := strings.CutPrefix(inv.Number, prefix+"-")
		if !ok {
			continue
		}
		if seq, err := strconv.Atoi(suffix); err == nil && seq > max {
			max = seq
		}
	}
	return max, nil
}

func (tx *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	tx.repo.nextID++
	inv.ID = tx.repo.nextID
	tx.invoices = append(tx.invoices, inv)
	return inv.ID, nil
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

func (tx *memoryTx) InsertMovement(ctx context.Context, m ledger.Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.movements = append(tx.movements, m)
	return m.ID, nil
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	for i := range r.invoices {
		if r.invoices[i].ID == id {
			inv := r.invoices[i]
			return &inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) ListInvoices(ctx context.Context, filter string, limit int) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if filter == "" || strings.Contains(inv.Number, filter) || strings.Contains(inv.ClientName, filter) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListClientInvoices(ctx context.Context, clientID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range r.invoices {
		if inv.ClientID != nil && *inv.ClientID == clientID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListRecentInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	out := make([]Invoice, len(r.invoices))
	copy(out, r.invoices)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *memoryRepo) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	r.payments = append(r.payments, p)
	return p.ID, nil
}

func (r *memoryRepo) ListClientPayments(ctx context.Context, clientID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) ClientBalance(ctx context.Context, clientID int64) (float64, error) {
	var balance float64
	for _, inv := range r.invoices {
		if inv.ClientID != nil && *inv.ClientID == clientID {
			balance += inv.Total
		}
	}
	for _, p := range r.payments {
		if p.ClientID == clientID {
			balance -= p.Amount
		}
	}
	return balance, nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil)
	svc.now = func() time.Time {
		return time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestCreateInvoice(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = ProductSnapshot{ID: 1, Name: "Rice 5kg", SKU: "RC5", UOM: "bag", Price: 12.5}
	repo.products[2] = ProductSnapshot{ID: 2, Name: "Oil 1L", Price: 4.0}
	repo.stock[1] = 50
	repo.stock[2] = 20
	svc := newTestService(repo)

	id, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []LineInput{
			{ProductID: 1, Qty: 4},
			{ProductID: 2, Qty: 3, UnitPrice: 5.0},
		},
		ClientName: "Corner Shop",
		ActingUser: "ani",
	})
	require.NoError(t, err)

	inv, err := svc.GetInvoice(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "INV-20260315-0001", inv.Number)
	require.InDelta(t, 4*12.5+3*5.0, inv.Total, 0.001)
	require.Len(t, inv.Items, 2)
	require.Equal(t, "RC5", inv.Items[0].SKU)
	require.InDelta(t, 50.0, inv.Items[0].LineTotal, 0.001)

	require.Equal(t, int64(46), repo.stock[1])
	require.Equal(t, int64(17), repo.stock[2])
	require.Len(t, repo.movements, 2)
	require.Equal(t, ledger.MovementSale, repo.movements[0].Type)
	require.Equal(t, "Invoice", repo.movements[0].Reason)
	require.Equal(t, id, *repo.movements[0].ReferenceID)
	require.Equal(t, "ani", repo.movements[0].ActingUser)
}

func TestCreateInvoiceNumberSequence(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = ProductSnapshot{ID: 1, Name: "Rice", Price: 1}
	repo.stock[1] = 100
	repo.invoices = []Invoice{{ID: 900, Number: "INV-20260315-0007"}}
	svc := newTestService(repo)

	id, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []LineInput{{ProductID: 1, Qty: 1}},
	})
	require.NoError(t, err)

	inv, err := svc.GetInvoice(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "INV-20260315-0008", inv.Number)
}

func TestCreateInvoiceRollsBackOnShortStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = ProductSnapshot{ID: 1, Name: "Rice", Price: 1}
	repo.products[2] = ProductSnapshot{ID: 2, Name: "Oil", Price: 1}
	repo.stock[1] = 10
	repo.stock[2] = 1
	svc := newTestService(repo)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items: []LineInput{
			{ProductID: 1, Qty: 5},
			{ProductID: 2, Qty: 3},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// first line must not stick
	require.Equal(t, int64(10), repo.stock[1])
	require.Equal(t, int64(1), repo.stock[2])
	require.Empty(t, repo.invoices)
	require.Empty(t, repo.movements)
}

func TestCreateInvoiceLocationPrecheck(t *testing.T) {
	repo := newMemoryRepo()
	repo.products[1] = ProductSnapshot{ID: 1, Name: "Rice", Price: 1}
	repo.stock[1] = 100
	loc := int64(2)
	repo.movements = []ledger.Movement{{ProductID: 1, Quantity: 3, LocationID: &loc}}
	svc := newTestService(repo)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		Items:      []LineInput{{ProductID: 1, Qty: 5}},
		LocationID: &loc,
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Empty(t, repo.invoices)
}

func TestCreateInvoiceValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateInvoice(ctx, CreateInvoiceInput{})
	require.ErrorIs(t, err, ErrEmptyInvoice)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{Items: []LineInput{{ProductID: 1, Qty: 0}}})
	require.ErrorIs(t, err, ErrBadLine)

	_, err = svc.CreateInvoice(ctx, CreateInvoiceInput{Items: []LineInput{{ProductID: 42, Qty: 1}}})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordPaymentAndBalance(t *testing.T) {
	repo := newMemoryRepo()
	client := int64(7)
	repo.invoices = []Invoice{{ID: 1, ClientID: &client, Total: 300}}
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, Payment{ClientID: client, Amount: 120, Method: "cash"}, "ani")
	require.NoError(t, err)

	balance, err := svc.GetClientBalance(ctx, client)
	require.NoError(t, err)
	require.InDelta(t, 180.0, balance, 0.001)

	_, err = svc.RecordPayment(ctx, Payment{ClientID: client, Amount: 0}, "ani")
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordPayment(ctx, Payment{Amount: 10}, "ani")
	require.ErrorIs(t, err, shared.ErrValidation)
}

type captureAudit struct {
	logs []shared.AuditLog
}

func (a *captureAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestRecordPaymentAuditsActor(t *testing.T) {
	repo := newMemoryRepo()
	audit := &captureAudit{}
	svc := NewService(repo, audit, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, Payment{ClientID: 7, Amount: 50}, "ani")
	require.NoError(t, err)

	_, err = svc.RecordPayment(ctx, Payment{ClientID: 7, Amount: 25}, "")
	require.NoError(t, err)

	require.Len(t, audit.logs, 2)
	require.Equal(t, "ani", audit.logs[0].Actor)
	require.Equal(t, "system", audit.logs[1].Actor)
}

func TestGetRecommendations(t *testing.T) {
	repo := newMemoryRepo()
	client := int64(7)
	repo.invoices = []Invoice{
		{ID: 1, ClientID: &client, Items: []InvoiceItem{
			{ProductID: 1, Name: "Rice", Qty: 2},
			{ProductID: 2, Name: "Oil", Qty: 5},
		}},
		{ID: 2, ClientID: &client, Items: []InvoiceItem{
			{ProductID: 1, Name: "Rice", Qty: 4},
		}},
	}
	svc := newTestService(repo)

	recs, err := svc.GetRecommendations(context.Background(), client, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, int64(1), recs[0].ProductID)
	require.Equal(t, int64(6), recs[0].TotalQty)
	require.Equal(t, int64(2), recs[1].ProductID)
}

func TestGetRecommendationsGlobalFallback(t *testing.T) {
	repo := newMemoryRepo()
	other := int64(3)
	repo.invoices = []Invoice{
		{ID: 1, ClientID: &other, Items: []InvoiceItem{{ProductID: 9, Name: "Sugar", Qty: 7}}},
	}
	svc := newTestService(repo)

	recs, err := svc.GetRecommendations(context.Background(), 42, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, int64(9), recs[0].ProductID)
}

func TestRankByQuantityTiesKeepFirstSeen(t *testing.T) {
	invoices := []Invoice{
		{Items: []InvoiceItem{
			{ProductID: 1, Name: "A", Qty: 3},
			{ProductID: 2, Name: "B", Qty: 3},
		}},
	}
	recs := rankByQuantity(invoices, 10)
	require.Len(t, recs, 2)
	require.Equal(t, int64(1), recs[0].ProductID)
	require.Equal(t, int64(2), recs[1].ProductID)
}

func TestNumberFormatting(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	prefix := NumberPrefix(date)
	require.Equal(t, "INV-20260315", prefix)
	require.Equal(t, "INV-20260315-0042", FormatNumber(prefix, 42))
}
