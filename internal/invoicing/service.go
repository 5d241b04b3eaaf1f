package invoicing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/agfood/agfood/internal/ledger"
	"github.com/agfood/agfood/internal/shared"
)

// recommendationWindow bounds the global fallback when a client has no
// purchase history of their own.
const recommendationWindow = 200

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	ListInvoices(ctx context.Context, filter string, limit int) ([]Invoice, error)
	ListClientInvoices(ctx context.Context, clientID int64) ([]Invoice, error)
	ListRecentInvoices(ctx context.Context, limit int) ([]Invoice, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	ListClientPayments(ctx context.Context, clientID int64) ([]Payment, error)
	ClientBalance(ctx context.Context, clientID int64) (float64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts committed invoices.
type MetricsPort interface {
	InvoiceCreated()
}

// Service coordinates invoice creation and the client money ledger.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics MetricsPort
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

// CreateInvoice validates the requested lines, then inside one
// serializable transaction generates the invoice number, persists the
// invoice row with its frozen line snapshot, and deducts stock per line
// through the ledger. Any failure rolls everything back; there is no
// state where the invoice exists without its movements or vice versa.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (int64, error) {
	if len(input.Items) == 0 {
		return 0, ErrEmptyInvoice
	}
	for _, line := range input.Items {
		if line.ProductID == 0 || line.Qty <= 0 {
			return 0, ErrBadLine
		}
	}

	date := input.Date
	if date.IsZero() {
		date = s.now()
	}
	actor := input.ActingUser
	if actor == "" {
		actor = "system"
	}

	var invoiceID int64
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items := make([]InvoiceItem, 0, len(input.Items))
		var total float64
		for _, line := range input.Items {
			snap, err := tx.ProductSnapshot(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("invoicing: unknown product %d: %w", line.ProductID, shared.ErrValidation)
				}
				return err
			}
			price := line.UnitPrice
			if price <= 0 {
				price = snap.Price
			}
			lineTotal := float64(line.Qty) * price
			total += lineTotal
			items = append(items, InvoiceItem{
				ProductID: snap.ID,
				Name:      snap.Name,
				Qty:       line.Qty,
				UnitPrice: price,
				LineTotal: lineTotal,
				SKU:       snap.SKU,
				Barcode:   snap.Barcode,
				UOM:       snap.UOM,
			})
		}

		if input.LocationID != nil {
			for _, item := range items {
				available, err := tx.LocationStock(ctx, item.ProductID, *input.LocationID)
				if err != nil {
					return err
				}
				if item.Qty > available {
					return fmt.Errorf("invoicing: %q has %d at location, %d requested: %w",
						item.Name, available, item.Qty, shared.ErrInsufficientStock)
				}
			}
		}

		number = input.Number
		if number == "" {
			prefix := NumberPrefix(date)
			seq, err := tx.MaxInvoiceSeq(ctx, prefix)
			if err != nil {
				return err
			}
			number = FormatNumber(prefix, seq+1)
		}

		id, err := tx.InsertInvoice(ctx, Invoice{
			Number:     number,
			ClientID:   input.ClientID,
			ClientName: input.ClientName,
			Date:       date,
			Total:      total,
			Items:      items,
		})
		if err != nil {
			return err
		}
		invoiceID = id

		for _, item := range items {
			current, err := tx.CurrentStockForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			next, err := ledger.NextQuantity(current, -item.Qty)
			if err != nil {
				return err
			}
			if err := tx.SetCurrentStock(ctx, item.ProductID, next); err != nil {
				return err
			}
			ref := invoiceID
			if _, err := tx.InsertMovement(ctx, ledger.Movement{
				ProductID:   item.ProductID,
				Quantity:    -item.Qty,
				Type:        ledger.MovementSale,
				Reason:      "Invoice",
				ReferenceID: &ref,
				LocationID:  input.LocationID,
				ActingUser:  actor,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if s.metrics != nil {
		s.metrics.InvoiceCreated()
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "invoicing:create",
			Entity:   "invoice",
			EntityID: number,
			Meta:     map[string]any{"invoice_id": invoiceID, "lines": len(input.Items)},
		})
	}
	return invoiceID, nil
}

// GetInvoice fetches one invoice with its deserialized snapshot.
func (s *Service) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns invoices optionally filtered by a substring of
// number or client name.
func (s *Service) ListInvoices(ctx context.Context, filter string, limit int) ([]Invoice, error) {
	return s.repo.ListInvoices(ctx, filter, limit)
}

// ListClientInvoices returns one client's invoices.
func (s *Service) ListClientInvoices(ctx context.Context, clientID int64) ([]Invoice, error) {
	return s.repo.ListClientInvoices(ctx, clientID)
}

// ListClientPayments returns one client's payments.
func (s *Service) ListClientPayments(ctx context.Context, clientID int64) ([]Payment, error) {
	return s.repo.ListClientPayments(ctx, clientID)
}

// GetClientBalance returns invoice totals minus payment totals.
func (s *Service) GetClientBalance(ctx context.Context, clientID int64) (float64, error) {
	return s.repo.ClientBalance(ctx, clientID)
}

// RecordPayment applies a payment against a client's running balance.
// The acting user is an explicit parameter, same as invoice creation.
func (s *Service) RecordPayment(ctx context.Context, p Payment, actingUser string) (int64, error) {
	if p.ClientID == 0 {
		return 0, fmt.Errorf("invoicing: client required: %w", shared.ErrValidation)
	}
	if p.Amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if actingUser == "" {
		actingUser = "system"
	}
	id, err := s.repo.InsertPayment(ctx, p)
	if err != nil {
		return 0, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actingUser,
			Action:   "invoicing:payment",
			Entity:   "client_payment",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"client_id": p.ClientID, "amount": p.Amount},
		})
	}
	return id, nil
}

// GetRecommendations ranks products by quantity across the client's
// invoice history, falling back to the most recent invoices globally
// when the client has none. Descending quantity, first-seen order on ties.
func (s *Service) GetRecommendations(ctx context.Context, clientID int64, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = 10
	}
	invoices, err := s.repo.ListClientInvoices(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		invoices, err = s.repo.ListRecentInvoices(ctx, recommendationWindow)
		if err != nil {
			return nil, err
		}
	}
	return rankByQuantity(invoices, limit), nil
}

func rankByQuantity(invoices []Invoice, limit int) []Recommendation {
	totals := make(map[int64]*Recommendation)
	var order []int64
	for _, inv := range invoices {
		for _, item := range inv.Items {
			if item.ProductID == 0 {
				continue
			}
			rec, ok := totals[item.ProductID]
			if !ok {
				rec = &Recommendation{ProductID: item.ProductID, Name: item.Name}
				totals[item.ProductID] = rec
				order = append(order, item.ProductID)
			}
			rec.TotalQty += item.Qty
		}
	}
	out := make([]Recommendation, 0, len(order))
	for _, id := range order {
		out = append(out, *totals[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalQty > out[j].TotalQty
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
