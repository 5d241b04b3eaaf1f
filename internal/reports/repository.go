// Package reports provides read-only reporting over the stock ledger
// and invoices. Empty results are empty slices, never errors.
package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Dashboard is a summary snapshot for the overview screen.
type Dashboard struct {
	ProductCount    int64   `json:"product_count"`
	ClientCount     int64   `json:"client_count"`
	LowStockCount   int64   `json:"low_stock_count"`
	TotalStockUnits int64   `json:"total_stock_units"`
	InvoiceCount    int64   `json:"invoice_count"`
	InvoicedTotal   float64 `json:"invoiced_total"`
	InvoicesToday   int64   `json:"invoices_today"`
	RevenueToday    float64 `json:"revenue_today"`
}

// ExpiryRow is one product in the expiry overview.
type ExpiryRow struct {
	ProductID   int64     `json:"product_id"`
	ProductName string    `json:"product_name"`
	BatchNo     string    `json:"batch_no"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Status      string    `json:"status"`
}

// Repository runs reporting queries against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Dashboard aggregates headline counts and totals in one round trip each.
func (r *Repository) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM clients),
			(SELECT COUNT(*) FROM products WHERE current_stock_quantity < reorder_point),
			(SELECT COALESCE(SUM(current_stock_quantity), 0) FROM products),
			(SELECT COUNT(*) FROM invoices),
			(SELECT COALESCE(SUM(total_amount), 0) FROM invoices),
			(SELECT COUNT(*) FROM invoices WHERE invoice_date = CURRENT_DATE),
			(SELECT COALESCE(SUM(total_amount), 0) FROM invoices WHERE invoice_date = CURRENT_DATE)`).
		Scan(&d.ProductCount, &d.ClientCount, &d.LowStockCount, &d.TotalStockUnits,
			&d.InvoiceCount, &d.InvoicedTotal, &d.InvoicesToday, &d.RevenueToday)
	return d, err
}

// ExpiryOverview returns the earliest dated unblocked batch per product,
// soonest first. Products without dated batches are omitted.
func (r *Repository) ExpiryOverview(ctx context.Context) ([]ExpiryRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (b.product_id)
			b.product_id, p.name, b.batch_no, b.expiry_date
		FROM batches b
		JOIN products p ON p.id = b.product_id
		WHERE b.blocked = FALSE AND b.expiry_date IS NOT NULL
		ORDER BY b.product_id, b.expiry_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ExpiryRow, 0)
	for rows.Next() {
		var row ExpiryRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.BatchNo, &row.ExpiryDate); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
