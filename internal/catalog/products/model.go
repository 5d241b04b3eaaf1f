package products

import (
	"time"
)

// Product represents a sellable, stockable item. CurrentStock is a
// materialized view of the movement log; the ledger owns every write
// to it.
type Product struct {
	ID           int64     `json:"id"`
	Barcode      string    `json:"barcode,omitempty"`
	SKU          string    `json:"sku,omitempty"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	UOM          string    `json:"uom,omitempty"`
	ReorderPoint int64     `json:"reorder_point"`
	Price        float64   `json:"price"`
	SupplierID   *int64    `json:"supplier_id,omitempty"`
	CurrentStock int64     `json:"current_stock_quantity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search     string
	Category   string
	LocationID *int64
	Page       int
	Limit      int
}
