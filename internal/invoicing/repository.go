package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/platform/db"
	"github.com/agfood/agfood/internal/shared"
)

// Repository persists invoices and payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations CreateInvoice needs.
// Stock mutation goes through the ledger helpers so the deduction commits
// or rolls back together with the invoice row.
type TxRepository interface {
	ProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error)
	MaxInvoiceSeq(ctx context.Context, prefix string) (int, error)
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	LocationStock(ctx context.Context, productID, locationID int64) (int64, error)
	CurrentStockForUpdate(ctx context.Context, productID int64) (int64, error)
	SetCurrentStock(ctx context.Context, productID, qty int64) error
	InsertMovement(ctx context.Context, m ledger.Movement) (int64, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a serializable transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) ProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error) {
	var p ProductSnapshot
	err := r.tx.QueryRow(ctx,
		`SELECT id, name, COALESCE(sku, ''), COALESCE(barcode, ''), COALESCE(uom, ''), price FROM products WHERE id = $1`,
		productID).Scan(&p.ID, &p.Name, &p.SKU, &p.Barcode, &p.UOM, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductSnapshot{}, shared.ErrNotFound
		}
		return ProductSnapshot{}, err
	}
	return p, nil
}

// MaxInvoiceSeq returns the highest 4-digit suffix among invoice numbers
// sharing the day's prefix, zero when the day has none.
func (r *txRepo) MaxInvoiceSeq(ctx context.Context, prefix string) (int, error) {
	var number string
	err := r.tx.QueryRow(ctx,
		`SELECT number FROM invoices WHERE number LIKE $1 ORDER BY number DESC LIMIT 1`,
		prefix+"-%").Scan(&number)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	suffix := strings.TrimPrefix(number, prefix+"-")
	seq, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, fmt.Errorf("invoicing: malformed invoice number %q: %w", number, err)
	}
	return seq, nil
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.tx.QueryRow(ctx,
		`INSERT INTO invoices (number, client_id, client_name, invoice_date, total_amount, items, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW()) RETURNING id`,
		inv.Number, inv.ClientID, inv.ClientName, inv.Date, inv.Total, string(items)).Scan(&id)
	if err != nil {
		return 0, db.MapError(err)
	}
	return id, nil
}

func (r *txRepo) LocationStock(ctx context.Context, productID, locationID int64) (int64, error) {
	return ledger.LocationStock(ctx, r.tx, productID, locationID)
}

func (r *txRepo) CurrentStockForUpdate(ctx context.Context, productID int64) (int64, error) {
	return ledger.CurrentStockForUpdate(ctx, r.tx, productID)
}

func (r *txRepo) SetCurrentStock(ctx context.Context, productID, qty int64) error {
	return ledger.SetCurrentStock(ctx, r.tx, productID, qty)
}

func (r *txRepo) InsertMovement(ctx context.Context, m ledger.Movement) (int64, error) {
	return ledger.InsertMovement(ctx, r.tx, m)
}

const invoiceColumns = `id, number, client_id, client_name, invoice_date, total_amount, items, created_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var items string
	if err := row.Scan(&inv.ID, &inv.Number, &inv.ClientID, &inv.ClientName, &inv.Date, &inv.Total, &items, &inv.CreatedAt); err != nil {
		return Invoice{}, err
	}
	if err := json.Unmarshal([]byte(items), &inv.Items); err != nil {
		return Invoice{}, fmt.Errorf("invoicing: corrupt line item snapshot on invoice %d: %w", inv.ID, err)
	}
	return inv, nil
}

// GetInvoice fetches one invoice with its deserialized snapshot.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *Repository) queryInvoices(ctx context.Context, query string, args ...any) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// ListInvoices returns invoices, optionally filtered by a substring of
// the number or client name, newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter string, limit int) ([]Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	if filter == "" {
		return r.queryInvoices(ctx,
			`SELECT `+invoiceColumns+` FROM invoices ORDER BY invoice_date DESC, id DESC LIMIT $1`, limit)
	}
	return r.queryInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices
		 WHERE number ILIKE $1 OR client_name ILIKE $1
		 ORDER BY invoice_date DESC, id DESC LIMIT $2`, "%"+filter+"%", limit)
}

// ListClientInvoices returns one client's invoices, newest first.
func (r *Repository) ListClientInvoices(ctx context.Context, clientID int64) ([]Invoice, error) {
	return r.queryInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE client_id = $1 ORDER BY invoice_date DESC, id DESC`, clientID)
}

// ListRecentInvoices returns the most recent invoices across all clients.
func (r *Repository) ListRecentInvoices(ctx context.Context, limit int) ([]Invoice, error) {
	return r.queryInvoices(ctx,
		`SELECT `+invoiceColumns+` FROM invoices ORDER BY invoice_date DESC, id DESC LIMIT $1`, limit)
}

// InsertPayment records a client payment.
func (r *Repository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO client_payments (client_id, amount, method, reference, invoice_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id`,
		p.ClientID, p.Amount, p.Method, p.Reference, p.InvoiceID).Scan(&id)
	if err != nil {
		return 0, db.MapError(err)
	}
	return id, nil
}

// ListClientPayments returns one client's payments, newest first.
func (r *Repository) ListClientPayments(ctx context.Context, clientID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, client_id, amount, COALESCE(method, ''), COALESCE(reference, ''), invoice_id, created_at
		 FROM client_payments WHERE client_id = $1 ORDER BY created_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Amount, &p.Method, &p.Reference, &p.InvoiceID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ClientBalance computes invoice totals minus payment totals.
func (r *Repository) ClientBalance(ctx context.Context, clientID int64) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT SUM(total_amount) FROM invoices WHERE client_id = $1), 0)
		      - COALESCE((SELECT SUM(amount) FROM client_payments WHERE client_id = $1), 0)`,
		clientID).Scan(&balance)
	return balance, err
}
