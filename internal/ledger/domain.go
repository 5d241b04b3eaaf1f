package ledger

import (
	"fmt"
	"time"

	"github.com/agfood/agfood/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementInitial records opening stock when a product is created.
	MovementInitial MovementType = "Initial"
	// MovementAdjustment indicates manual adjustments.
	MovementAdjustment MovementType = "Adjustment"
	// MovementSale is an invoice-driven deduction.
	MovementSale MovementType = "Sale"
	// MovementPurchase is an inbound receipt.
	MovementPurchase MovementType = "Purchase"
	// MovementTransfer tags both legs of a cross-location move.
	MovementTransfer MovementType = "Transfer"
	// MovementStocktake reconciles counted stock.
	MovementStocktake MovementType = "Stocktake"
	// MovementScanIn is a barcode-driven receipt.
	MovementScanIn MovementType = "Scan-in"
)

// Movement is one append-only ledger entry. Never updated or deleted
// except by cascading product deletion.
type Movement struct {
	ID          int64        `json:"id"`
	ProductID   int64        `json:"product_id"`
	Quantity    int64        `json:"quantity"`
	Type        MovementType `json:"movement_type"`
	Reason      string       `json:"reason,omitempty"`
	ReferenceID *int64       `json:"reference_id,omitempty"`
	LocationID  *int64       `json:"location_id,omitempty"`
	BatchID     *int64       `json:"batch_id,omitempty"`
	Unit        string       `json:"unit,omitempty"`
	UnitQty     int64        `json:"unit_qty,omitempty"`
	CostPerUnit float64      `json:"cost_per_unit,omitempty"`
	ActingUser  string       `json:"acting_user"`
	CreatedAt   time.Time    `json:"created_at"`
}

// AdjustmentInput describes a request to adjust stock.
type AdjustmentInput struct {
	ProductID   int64
	Delta       int64
	Type        MovementType
	Reason      string
	ReferenceID *int64
	LocationID  *int64
	BatchID     *int64
	Unit        string
	UnitQty     int64
	CostPerUnit float64
	ActingUser  string
}

// TransferInput describes a cross-location move.
type TransferInput struct {
	ProductID      int64
	FromLocationID int64
	ToLocationID   int64
	Quantity       int64
	ActingUser     string
}

// Batch is a dated sub-quantity of a product used for expiry tracking.
type Batch struct {
	ID         int64      `json:"id"`
	ProductID  int64      `json:"product_id"`
	BatchNo    string     `json:"batch_no"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	Blocked    bool       `json:"blocked"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ExpiryStatus classifies a batch expiry date against today.
type ExpiryStatus string

const (
	// ExpiryExpired means the date is strictly before today.
	ExpiryExpired ExpiryStatus = "expired"
	// ExpirySoon means the date falls within the next seven days inclusive.
	ExpirySoon ExpiryStatus = "soon"
	// ExpiryOK means the date is more than seven days out.
	ExpiryOK ExpiryStatus = "ok"
)

// ExpiryInfo is the earliest unblocked expiry for a product.
type ExpiryInfo struct {
	Date   time.Time    `json:"date"`
	Status ExpiryStatus `json:"status"`
}

// LowStockProduct reports a product below its reorder point.
type LowStockProduct struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	CurrentQty   int64  `json:"current_qty"`
	ReorderPoint int64  `json:"reorder_point"`
}

var (
	// ErrNegativeStock is returned when a movement would drive the cached
	// quantity below zero. No partial state is left behind.
	ErrNegativeStock = fmt.Errorf("ledger: negative stock not allowed: %w", shared.ErrInsufficientStock)
	// ErrInvalidQuantity indicates a zero or wrongly signed quantity.
	ErrInvalidQuantity = fmt.Errorf("ledger: invalid quantity: %w", shared.ErrValidation)
	// ErrSameLocation rejects transfers where source equals destination.
	ErrSameLocation = fmt.Errorf("ledger: source and destination location must differ: %w", shared.ErrValidation)
)

// NextQuantity applies a signed delta to the cached quantity, enforcing
// the non-negativity invariant shared by adjustments, transfers and
// invoice deductions.
func NextQuantity(current, delta int64) (int64, error) {
	next := current + delta
	if next < 0 {
		return 0, ErrNegativeStock
	}
	return next, nil
}

// ClassifyExpiry maps an expiry date to its status relative to today.
// Expired strictly before today, soon within seven days inclusive.
func ClassifyExpiry(date, today time.Time) ExpiryStatus {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	d, now := day(date), day(today)
	switch {
	case d.Before(now):
		return ExpiryExpired
	case !d.After(now.AddDate(0, 0, 7)):
		return ExpirySoon
	default:
		return ExpiryOK
	}
}
