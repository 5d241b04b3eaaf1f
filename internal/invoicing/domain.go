package invoicing

import (
	"fmt"
	"time"

	"github.com/agfood/agfood/internal/shared"
)

// InvoiceItem is one frozen line of the invoice snapshot. Captured at
// sale time; later product edits never touch it. The JSON shape is the
// wire format document rendering and history views parse.
type InvoiceItem struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Qty       int64   `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
	SKU       string  `json:"sku,omitempty"`
	Barcode   string  `json:"barcode,omitempty"`
	UOM       string  `json:"uom,omitempty"`
}

// Invoice is an immutable sale record.
type Invoice struct {
	ID         int64         `json:"id"`
	Number     string        `json:"number"`
	ClientID   *int64        `json:"client_id,omitempty"`
	ClientName string        `json:"client_name"`
	Date       time.Time     `json:"date"`
	Total      float64       `json:"total"`
	Items      []InvoiceItem `json:"items"`
	CreatedAt  time.Time     `json:"created_at"`
}

// LineInput is one requested invoice line. UnitPrice overrides the
// product's list price when positive.
type LineInput struct {
	ProductID int64   `json:"product_id"`
	Qty       int64   `json:"qty"`
	UnitPrice float64 `json:"unit_price"`
}

// CreateInvoiceInput carries everything needed to create an invoice.
type CreateInvoiceInput struct {
	Items      []LineInput
	ClientID   *int64
	ClientName string
	LocationID *int64
	Date       time.Time
	Number     string
	ActingUser string
}

// Payment is a client payment, optionally linked to one invoice.
type Payment struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method,omitempty"`
	Reference string    `json:"reference,omitempty"`
	InvoiceID *int64    `json:"invoice_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recommendation ranks a product by historically purchased quantity.
type Recommendation struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	TotalQty  int64  `json:"total_qty"`
}

// ProductSnapshot is the product state captured into a line item.
type ProductSnapshot struct {
	ID      int64
	Name    string
	SKU     string
	Barcode string
	UOM     string
	Price   float64
}

var (
	// ErrEmptyInvoice rejects invoices without any line.
	ErrEmptyInvoice = fmt.Errorf("invoicing: at least one item required: %w", shared.ErrValidation)
	// ErrBadLine rejects lines without a product or positive quantity.
	ErrBadLine = fmt.Errorf("invoicing: each item needs a product and a positive quantity: %w", shared.ErrValidation)
	// ErrInvalidAmount rejects non-positive payment amounts.
	ErrInvalidAmount = fmt.Errorf("invoicing: amount must be positive: %w", shared.ErrValidation)
)

// NumberPrefix formats the daily invoice number prefix, e.g. INV-20240115.
func NumberPrefix(date time.Time) string {
	return "INV-" + date.Format("20060102")
}

// FormatNumber renders the full invoice number from prefix and sequence.
func FormatNumber(prefix string, seq int) string {
	return fmt.Sprintf("%s-%04d", prefix, seq)
}
